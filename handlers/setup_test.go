package handlers

import (
	"fmt"
	"testing"
	"time"

	"governance-voting-backend/database"
	"governance-voting-backend/ledger"
	"governance-voting-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestEnvironment sets up the Gin router and in-memory SQLite database for testing.
func SetupTestEnvironment(t *testing.T) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	// 处理程序通过全局变量访问数据库和账本
	database.DB = db
	InitHandler(ledger.NewLedger(db, ledger.NewLocalGate(), nil), nil)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	// 路由结构与routes.SetupRouter保持一致
	router := gin.New()
	api := router.Group("/api")
	{
		api.GET("/health", HealthCheck)
		api.GET("/status", SystemStatus)

		polls := api.Group("/polls")
		{
			polls.POST("", CreatePoll)
			polls.GET("", GetPolls)
			polls.GET("/receipts/:code", VerifyReceipt)
			polls.GET("/integrity", GetGlobalIntegrity)
			polls.GET("/:id", GetPoll)
			polls.POST("/:id/votes", SubmitVote)
			polls.GET("/:id/results", GetResults)
			polls.GET("/:id/integrity", GetIntegrity)
		}
	}

	return router, db
}

// CreateActivePoll inserts an active poll with three ordered options.
func CreateActivePoll(t *testing.T, db *gorm.DB, anonymous bool) *models.Poll {
	poll := &models.Poll{
		Title:       "Board election",
		PollType:    models.PollTypeBinding,
		IsAnonymous: anonymous,
		StartAt:     time.Now().Add(-time.Hour),
		EndAt:       time.Now().Add(time.Hour),
		Options: []models.PollOption{
			{Text: "Candidate A", OrderIndex: 0},
			{Text: "Candidate B", OrderIndex: 1},
			{Text: "Candidate C", OrderIndex: 2},
		},
	}
	require.NoError(t, db.Create(poll).Error)
	return poll
}
