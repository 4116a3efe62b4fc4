package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"governance-voting-backend/ledger"
	"governance-voting-backend/mq"

	"github.com/gin-gonic/gin"
)

// 全局账本与消息队列适配器引用
var (
	voteLedger *ledger.Ledger
	mqAdapter  *mq.Adapter
)

// InitHandler 初始化处理程序，注入账本和消息队列适配器
func InitHandler(l *ledger.Ledger, adapter *mq.Adapter) {
	voteLedger = l
	mqAdapter = adapter
	log.Println("投票账本已设置到处理程序")
}

// VoteInput 投票提交的输入结构
type VoteInput struct {
	OptionID uint `json:"option_id" binding:"required"`
}

// VoteReceipt 投票提交成功后的响应，只包含回执信息，不含投票者身份
type VoteReceipt struct {
	ReceiptCode string `json:"receipt_code"`
	VoteHash    string `json:"vote_hash"`
	PrevHash    string `json:"prev_hash"`
}

// SubmitVote 处理投票提交请求。
// 投票者身份来自X-User-ID请求头（由上游会话服务注入）。
func SubmitVote(c *gin.Context) {
	pollIDStr := c.Param("id")
	pollID, err := strconv.ParseUint(pollIDStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的投票ID格式"})
		return
	}

	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少用户标识"})
		return
	}

	var input VoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vote, err := voteLedger.Append(c.Request.Context(), uint(pollID), userID, input.OptionID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrPollNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "投票未找到"})
		case errors.Is(err, ledger.ErrPollNotActive):
			c.JSON(http.StatusForbidden, gin.H{"error": "投票不在进行中"})
		case errors.Is(err, ledger.ErrOptionNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "选项不存在或不属于该投票"})
		case errors.Is(err, ledger.ErrDuplicateVote):
			c.JSON(http.StatusConflict, gin.H{"error": "您已经在此投票中投过票"})
		case errors.Is(err, ledger.ErrContention):
			// 链锁竞争是可重试的瞬态失败
			c.Header("Retry-After", "1")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "投票处理繁忙，请稍后重试"})
		default:
			log.Printf("投票 %d 追加失败: %v", pollID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "记录投票失败"})
		}
		return
	}

	c.JSON(http.StatusCreated, VoteReceipt{
		ReceiptCode: vote.ReceiptCode,
		VoteHash:    vote.VoteHash,
		PrevHash:    vote.PrevHash,
	})
}

// VerifyReceipt 处理回执码查询。命中与未命中返回同一结构。
func VerifyReceipt(c *gin.Context) {
	code := c.Param("code")

	result, err := voteLedger.VerifyReceipt(code)
	if err != nil {
		log.Printf("回执码查询失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "回执码查询失败"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetResults 返回投票的按选项计票结果
func GetResults(c *gin.Context) {
	pollIDStr := c.Param("id")
	pollID, err := strconv.ParseUint(pollIDStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的投票ID格式"})
		return
	}

	results, err := voteLedger.CountVotesByOption(uint(pollID))
	if err != nil {
		if errors.Is(err, ledger.ErrPollNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "投票未找到"})
			return
		}
		log.Printf("统计投票 %d 结果失败: %v", pollID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取投票结果失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"poll_id": uint(pollID),
		"results": results,
	})
}
