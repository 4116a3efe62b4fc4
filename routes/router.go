package routes

import (
	"log"
	"net/http"
	"os"
	"time"

	"governance-voting-backend/handlers"
	"governance-voting-backend/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server 是HTTP服务器的封装
type Server struct {
	*http.Server
}

// SetupRouter 设置和配置Gin路由
func SetupRouter(ws *websocket.Handler) *gin.Engine {
	router := gin.Default()

	// 配置CORS中间件
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // 生产环境中应限制为前端域名
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-User-ID", "X-Admin-Key"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 初始化限流器
	handlers.InitRateLimiters()

	api := router.Group("/api")
	{
		api.Use(handlers.RateLimitMiddleware())

		// 健康检查端点
		api.GET("/health", handlers.HealthCheck)
		api.GET("/status", handlers.SystemStatus)

		polls := api.Group("/polls")
		{
			polls.POST("", handlers.CreatePoll)
			polls.GET("", handlers.GetPolls)

			// 回执码查询必须先于:id注册，避免路由冲突
			polls.GET("/receipts/:code", handlers.VerifyReceipt)
			polls.GET("/integrity", handlers.GetGlobalIntegrity)

			polls.GET("/:id", handlers.GetPoll)
			polls.POST("/:id/votes", handlers.SubmitVote)
			polls.GET("/:id/results", handlers.GetResults)
			polls.GET("/:id/integrity", handlers.GetIntegrity)

			// 实时结果推送
			if ws != nil {
				polls.GET("/:id/ws", ws.HandleConnection)
			}
		}

		// 管理员相关API
		admin := api.Group("/admin")
		{
			admin.POST("/audit/retry-dead-letters", handlers.RetryAuditDeadLetters)
		}
	}

	return router
}

// StartServer 启动HTTP服务器
func StartServer(router *gin.Engine) *Server {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8090"
	}

	addr := ":" + port

	srv := &Server{
		&http.Server{
			Addr:    addr,
			Handler: router,
		},
	}

	go func() {
		log.Printf("服务器启动在 %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	return srv
}
