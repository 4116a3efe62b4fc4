package handlers

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"

	"governance-voting-backend/ledger"

	"github.com/gin-gonic/gin"
)

// defaultAdminKey 开发环境默认管理密钥，生产环境必须通过ADMIN_API_KEY覆盖
const defaultAdminKey = "admin"

// adminKey 读取管理密钥配置
func adminKey() string {
	if key := os.Getenv("ADMIN_API_KEY"); key != "" {
		return key
	}
	return defaultAdminKey
}

// requireAdminKey 校验X-Admin-Key请求头。完整性报告包含链级细节，只对审计方开放。
func requireAdminKey(c *gin.Context) bool {
	provided := c.GetHeader("X-Admin-Key")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(adminKey())) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"error": "无效的管理密钥"})
		return false
	}
	return true
}

// GetIntegrity 校验单个投票的哈希链并返回审计报告。
// 链断裂体现在报告里，HTTP层面仍然是200。
func GetIntegrity(c *gin.Context) {
	if !requireAdminKey(c) {
		return
	}

	pollIDStr := c.Param("id")
	pollID, err := strconv.ParseUint(pollIDStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的投票ID格式"})
		return
	}

	report, err := voteLedger.ValidateChain(uint(pollID))
	if err != nil {
		if errors.Is(err, ledger.ErrPollNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "投票未找到"})
			return
		}
		log.Printf("校验投票 %d 的哈希链失败: %v", pollID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "完整性校验失败"})
		return
	}

	if !report.Valid {
		log.Printf("投票 %d 的哈希链校验发现 %d 处断裂", pollID, len(report.BrokenLinks))
	}

	c.JSON(http.StatusOK, report)
}

// RetryAuditDeadLetters 把审计死信队列中的事件重新入队（仅Redis MQ模式可用）
func RetryAuditDeadLetters(c *gin.Context) {
	if !requireAdminKey(c) {
		return
	}

	if mqAdapter == nil || !mqAdapter.IsInitialized() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "审计事件队列未初始化"})
		return
	}

	if err := mqAdapter.RetryDeadLetters(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "死信事件已重新入队"})
}

// GetGlobalIntegrity 校验所有有投票记录的链并返回汇总报告
func GetGlobalIntegrity(c *gin.Context) {
	if !requireAdminKey(c) {
		return
	}

	report, err := voteLedger.ValidateAll()
	if err != nil {
		log.Printf("全局哈希链校验失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "完整性校验失败"})
		return
	}

	c.JSON(http.StatusOK, report)
}
