package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"governance-voting-backend/database"
	"governance-voting-backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreatePollInput defines the expected input structure for creating a poll
type CreatePollInput struct {
	Title         string              `json:"title" binding:"required"`
	Description   string              `json:"description,omitempty"`
	PollType      models.PollType     `json:"poll_type" binding:"omitempty,oneof=informal binding straw"`
	IsAnonymous   bool                `json:"is_anonymous"`
	NotifyMembers bool                `json:"notify_members"`
	StartAt       time.Time           `json:"start_at" binding:"required"`
	EndAt         time.Time           `json:"end_at" binding:"required"`
	Options       []CreateOptionInput `json:"options" binding:"required,min=2,dive"`
}

// CreateOptionInput defines the structure for options when creating a poll
type CreateOptionInput struct {
	Text       string `json:"text" binding:"required"`
	OrderIndex int    `json:"order_index"`
}

// CreatePoll handles the creation of a new poll with its options
func CreatePoll(c *gin.Context) {
	var input CreatePollInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !input.EndAt.After(input.StartAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "结束时间必须晚于开始时间"})
		return
	}

	pollType := input.PollType
	if pollType == "" {
		pollType = models.PollTypeInformal
	}

	poll := models.Poll{
		Title:         input.Title,
		Description:   input.Description,
		PollType:      pollType,
		IsAnonymous:   input.IsAnonymous,
		NotifyMembers: input.NotifyMembers,
		StartAt:       input.StartAt,
		EndAt:         input.EndAt,
	}

	// 投票和选项在同一事务中创建
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&poll).Error; err != nil {
			return err
		}

		options := make([]models.PollOption, len(input.Options))
		for i, optInput := range input.Options {
			orderIndex := optInput.OrderIndex
			if orderIndex == 0 {
				orderIndex = i
			}
			options[i] = models.PollOption{
				PollID:     poll.ID,
				Text:       optInput.Text,
				OrderIndex: orderIndex,
			}
		}

		return tx.Create(&options).Error
	})
	if err != nil {
		log.Printf("创建投票失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建投票失败"})
		return
	}

	var createdPoll models.Poll
	if err := database.DB.Preload("Options").First(&createdPoll, poll.ID).Error; err != nil {
		log.Printf("重新加载新建投票失败: %v", err)
		c.JSON(http.StatusCreated, poll)
		return
	}

	log.Printf("投票创建成功: ID=%d, Title=%s, PollType=%s", createdPoll.ID, createdPoll.Title, createdPoll.PollType)
	c.JSON(http.StatusCreated, createdPoll)
}

// GetPolls retrieves a list of all polls with their options
func GetPolls(c *gin.Context) {
	var polls []models.Poll
	if err := database.DB.Preload("Options").Order("created_at desc").Find(&polls).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取投票列表失败"})
		return
	}
	c.JSON(http.StatusOK, polls)
}

// GetPoll handles retrieving a single poll by ID, including its derived status
func GetPoll(c *gin.Context) {
	pollIDStr := c.Param("id")
	pollID, err := strconv.ParseUint(pollIDStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的投票ID格式"})
		return
	}

	var poll models.Poll
	if err := database.DB.Preload("Options").First(&poll, uint(pollID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "投票未找到"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "获取投票数据失败"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":             poll.ID,
		"title":          poll.Title,
		"description":    poll.Description,
		"poll_type":      poll.PollType,
		"is_anonymous":   poll.IsAnonymous,
		"notify_members": poll.NotifyMembers,
		"status":         poll.Status(),
		"start_at":       poll.StartAt,
		"end_at":         poll.EndAt,
		"options":        poll.Options,
		"created_at":     poll.CreatedAt,
		"updated_at":     poll.UpdatedAt,
	})
}
