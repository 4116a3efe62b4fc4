package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"governance-voting-backend/cache"
	"governance-voting-backend/database"
	"governance-voting-backend/handlers"
	"governance-voting-backend/ledger"
	"governance-voting-backend/models"
	"governance-voting-backend/mq"
	"governance-voting-backend/routes"
	ws "governance-voting-backend/websocket"

	"github.com/joho/godotenv"
)

// 全局引用，优雅关闭时使用
var (
	mqAdapter *mq.Adapter
	hub       *ws.Hub
)

func main() {
	// 加载.env文件（不存在时静默使用环境变量）
	if err := godotenv.Load(); err == nil {
		log.Println("已加载.env配置文件")
	}

	// 初始化数据库连接
	if err := database.InitDB(); err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}

	// 初始化Redis连接。失败时降级运行：
	// 排序闸门退回进程内实现，审计事件直接落库。
	redisErr := cache.InitRedis()
	if redisErr != nil {
		log.Printf("警告: Redis初始化失败，降级为单实例模式: %v", redisErr)
	}

	// 选择排序闸门策略
	gate := buildGate()

	// 初始化消息队列适配器（自动选择RocketMQ或Redis MQ）
	var auditPublisher ledger.AuditPublisher
	mqAdapter = mq.NewAdapter()
	if err := mqAdapter.Initialize(); err != nil {
		log.Printf("警告: 审计事件队列初始化失败，事件仅记录日志: %v", err)
	} else {
		auditPublisher = mqAdapter
	}

	// 创建投票账本
	voteLedger := ledger.NewLedger(database.DB, gate, auditPublisher)

	// 启动WebSocket Hub，实时推送计票结果
	hub = ws.NewHub()
	go hub.Run()

	// 注册审计事件处理函数
	if mqAdapter.IsInitialized() {
		if err := mqAdapter.RegisterHandler(auditConsumer(voteLedger)); err != nil {
			log.Printf("警告: 注册审计事件处理函数失败: %v", err)
		} else {
			log.Println("审计事件处理函数注册成功")
		}
	}

	// 将账本和适配器传递给处理程序
	handlers.InitHandler(voteLedger, mqAdapter)

	// 设置路由并启动服务器
	router := routes.SetupRouter(ws.NewHandler(hub))
	srv := routes.StartServer(router)

	log.Printf("审计事件队列状态: %v", mqAdapter.GetQueueStats())

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务器强制关闭: %v", err)
	}

	database.CloseDB()
	cache.CloseRedis()
	mqAdapter.Close()

	log.Println("服务器优雅关闭")
}

// buildGate 根据Redis可用性选择排序闸门实现。
// 多实例部署依赖分布式锁；Redis不可用时退回进程内闸门。
func buildGate() ledger.Gate {
	if cache.Available() {
		locks, err := cache.NewDistributedLockService()
		if err == nil {
			log.Println("排序闸门使用Redis分布式锁")
			return ledger.NewRedisGate(locks)
		}
		log.Printf("警告: 创建分布式锁服务失败，退回进程内闸门: %v", err)
	}

	log.Println("排序闸门使用进程内实现")
	return ledger.NewLocalGate()
}

// auditConsumer 返回审计事件处理函数：把事件持久化为审计日志，
// 然后通过WebSocket向订阅该投票的客户端广播最新计票结果。
func auditConsumer(voteLedger *ledger.Ledger) mq.Handler {
	return func(event ledger.AuditEvent) error {
		detail := fmt.Sprintf("vote_hash=%s", event.VoteHash)
		if event.NotifyMembers {
			// 成员通知由外部协作方投递，这里只在审计日志中标记
			detail += " notify_members=true"
		}

		entry := models.AuditLog{
			CorrelationID: event.CorrelationID,
			Event:         event.Event,
			PollID:        event.PollID,
			VoteID:        event.VoteID,
			Detail:        detail,
		}
		if err := database.DB.Create(&entry).Error; err != nil {
			return fmt.Errorf("写入审计日志失败: %v", err)
		}

		results, err := voteLedger.CountVotesByOption(event.PollID)
		if err != nil {
			// 广播失败不影响审计日志已写入的事实
			log.Printf("获取投票 %d 计票结果失败: %v", event.PollID, err)
			return nil
		}

		hub.BroadcastToPoll(event.PollID, &ws.Message{
			Type:    "results_update",
			PollID:  event.PollID,
			Payload: results,
		})

		return nil
	}
}
