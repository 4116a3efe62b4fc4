package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"governance-voting-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxHashRetries 哈希或回执码唯一约束冲突时的重试上限。
// 冲突概率极低，但必须有界处理而不是无限循环。
const maxHashRetries = 3

// AuditEvent 投票提交后发给审计协作方的事件
type AuditEvent struct {
	CorrelationID string `json:"correlation_id"`
	Event         string `json:"event"`
	PollID        uint   `json:"poll_id"`
	VoteID        uint   `json:"vote_id"`
	VoteHash      string `json:"vote_hash"`
	NotifyMembers bool   `json:"notify_members"`
	Timestamp     int64  `json:"timestamp"`
}

// AuditPublisher 审计事件发布接口，由消息队列适配器实现
type AuditPublisher interface {
	Publish(event AuditEvent) error
}

// Ledger 哈希链投票账本。Append是唯一的写入口；
// 回执查询、完整性校验和结果统计都是读侧操作，不经过闸门。
type Ledger struct {
	db    *gorm.DB
	gate  Gate
	audit AuditPublisher // 可为nil（审计协作方不可用时降级为仅日志）
}

// NewLedger 创建投票账本
func NewLedger(db *gorm.DB, gate Gate, audit AuditPublisher) *Ledger {
	return &Ledger{db: db, gate: gate, audit: audit}
}

// DB 返回账本使用的数据库连接
func (l *Ledger) DB() *gorm.DB {
	return l.db
}

// Append 向投票的哈希链追加一条投票记录：
//  1. 校验投票处于进行中状态
//  2. 校验选项属于该投票
//  3. 实名投票校验用户未投过票
//  4. 获取该投票的排序闸门
//  5. 闸门内读链尾、取时间戳、算哈希、插入，整体在一个事务中
//  6. 提交后发布审计事件并返回完整记录
//
// 闸门获取之前的失败无任何副作用；进入闸门后要么提交要么回滚。
func (l *Ledger) Append(ctx context.Context, pollID uint, userID string, optionID uint) (*models.Vote, error) {
	poll, err := l.fetchPoll(pollID)
	if err != nil {
		return nil, err
	}

	if poll.Status() != models.PollStatusActive {
		return nil, ErrPollNotActive
	}

	if !optionBelongsToPoll(poll, optionID) {
		return nil, ErrOptionNotFound
	}

	// 实名投票的重复检查。闸门外先快速失败，闸门内事务里再复查一次，
	// 避免两个并发请求同时通过这里的检查。
	if !poll.IsAnonymous {
		voted, err := l.hasUserVoted(l.db, pollID, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if voted {
			return nil, ErrDuplicateVote
		}
	}

	release, err := l.gate.Acquire(ctx, pollID)
	if err != nil {
		return nil, err
	}
	defer release()

	voter := IdentifiedVoter(userID)
	if poll.IsAnonymous {
		voter = AnonymousVoter()
	}

	var vote *models.Vote
	for attempt := 1; ; attempt++ {
		vote, err = l.appendOnce(poll, userID, voter, optionID)
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < maxHashRetries {
			// 哈希/回执码撞上唯一约束，换新时间戳重试
			log.Printf("投票 %d 哈希唯一约束冲突，第 %d 次重试", pollID, attempt)
			continue
		}
		if errors.Is(err, ErrDuplicateVote) {
			return nil, ErrDuplicateVote
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	l.publishAudit(poll, vote)

	return vote, nil
}

// appendOnce 在一个事务内执行一次"读链尾-算哈希-插入"
func (l *Ledger) appendOnce(poll *models.Poll, userID string, voter VoterRef, optionID uint) (*models.Vote, error) {
	var vote models.Vote

	err := l.db.Transaction(func(tx *gorm.DB) error {
		// 实名投票在闸门内复查，堵住校验层的并发窗口
		if !poll.IsAnonymous {
			voted, err := l.hasUserVoted(tx, poll.ID, userID)
			if err != nil {
				return err
			}
			if voted {
				return ErrDuplicateVote
			}
		}

		prevHash, tailTS, err := l.tailOf(tx, poll.ID)
		if err != nil {
			return err
		}

		// 链内时间戳单调不减，即使时钟回拨
		timestampNS := time.Now().UnixNano()
		if timestampNS < tailTS {
			timestampNS = tailTS
		}

		voteHash := ComputeVoteHash(voter, optionID, timestampNS, prevHash)

		vote = models.Vote{
			PollID:      poll.ID,
			OptionID:    optionID,
			UserID:      userID,
			TimestampNS: timestampNS,
			PrevHash:    prevHash,
			VoteHash:    voteHash,
			ReceiptCode: DeriveReceiptCode(voteHash),
		}

		return tx.Create(&vote).Error
	})
	if err != nil {
		return nil, err
	}

	return &vote, nil
}

// tailOf 读取链尾哈希和链尾时间戳，空链返回创世占位值
func (l *Ledger) tailOf(tx *gorm.DB, pollID uint) (string, int64, error) {
	var tail models.Vote
	err := tx.Where("poll_id = ?", pollID).
		Order("timestamp_ns DESC, id DESC").
		First(&tail).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return GenesisSentinel, 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	return tail.VoteHash, tail.TimestampNS, nil
}

// fetchPoll 获取投票及其选项，不存在时返回ErrPollNotFound
func (l *Ledger) fetchPoll(pollID uint) (*models.Poll, error) {
	var poll models.Poll
	err := l.db.Preload("Options").First(&poll, pollID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &poll, nil
}

// hasUserVoted 检查用户是否已在该投票中投过票
func (l *Ledger) hasUserVoted(tx *gorm.DB, pollID uint, userID string) (bool, error) {
	var count int64
	err := tx.Model(&models.Vote{}).
		Where("poll_id = ? AND user_id = ?", pollID, userID).
		Count(&count).Error
	return count > 0, err
}

// optionBelongsToPoll 检查选项是否属于该投票
func optionBelongsToPoll(poll *models.Poll, optionID uint) bool {
	for _, opt := range poll.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// publishAudit 提交后发布审计事件。发布失败只记录日志，不影响已提交的投票。
func (l *Ledger) publishAudit(poll *models.Poll, vote *models.Vote) {
	event := AuditEvent{
		CorrelationID: uuid.NewString(),
		Event:         "vote_cast",
		PollID:        poll.ID,
		VoteID:        vote.ID,
		VoteHash:      vote.VoteHash,
		NotifyMembers: poll.NotifyMembers,
		Timestamp:     time.Now().Unix(),
	}

	if l.audit == nil {
		log.Printf("审计协作方不可用，事件仅记录日志: correlation=%s poll=%d vote=%d",
			event.CorrelationID, event.PollID, event.VoteID)
		return
	}

	if err := l.audit.Publish(event); err != nil {
		log.Printf("发布审计事件失败: correlation=%s, 错误: %v", event.CorrelationID, err)
	}
}
