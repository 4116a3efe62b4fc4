package ledger

import (
	"fmt"
	"testing"
	"time"

	"governance-voting-backend/database"
	"governance-voting-backend/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 为每个测试创建独立的内存SQLite数据库
func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// SQLite串行访问，避免并发测试下的表锁错误
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// newTestLedger 创建基于内存数据库和进程内闸门的账本
func newTestLedger(t *testing.T) (*Ledger, *gorm.DB) {
	db := newTestDB(t)
	return NewLedger(db, NewLocalGate(), nil), db
}

// makeActivePoll 创建一个进行中的投票，带三个选项
func makeActivePoll(t *testing.T, db *gorm.DB, anonymous bool) *models.Poll {
	poll := &models.Poll{
		Title:       "Community budget allocation",
		PollType:    models.PollTypeBinding,
		IsAnonymous: anonymous,
		StartAt:     time.Now().Add(-time.Hour),
		EndAt:       time.Now().Add(time.Hour),
		Options: []models.PollOption{
			{Text: "Option A", OrderIndex: 0},
			{Text: "Option B", OrderIndex: 1},
			{Text: "Option C", OrderIndex: 2},
		},
	}
	require.NoError(t, db.Create(poll).Error)
	return poll
}

// capturingPublisher 记录发布的审计事件，供断言使用
type capturingPublisher struct {
	events []AuditEvent
}

func (p *capturingPublisher) Publish(event AuditEvent) error {
	p.events = append(p.events, event)
	return nil
}
