package models

import (
	"time"

	"gorm.io/gorm"
)

// PollType classifies the governance weight of a poll.
type PollType string

const (
	PollTypeInformal PollType = "informal" // non-binding sentiment check
	PollTypeBinding  PollType = "binding"  // outcome carries governance weight
	PollTypeStraw    PollType = "straw"    // quick straw poll
)

// PollStatus is derived from the poll timestamps, never stored.
type PollStatus string

const (
	PollStatusScheduled PollStatus = "scheduled"
	PollStatusActive    PollStatus = "active"
	PollStatusClosed    PollStatus = "closed"
)

// Poll represents a governance poll members vote on.
type Poll struct {
	gorm.Model
	Title         string       `gorm:"not null" json:"title"`
	Description   string       `gorm:"type:text" json:"description"`
	PollType      PollType     `gorm:"type:varchar(16);not null;default:'informal'" json:"poll_type"`
	IsAnonymous   bool         `gorm:"not null;default:false" json:"is_anonymous"`
	NotifyMembers bool         `gorm:"not null;default:false" json:"notify_members"`
	StartAt       time.Time    `gorm:"not null" json:"start_at"`
	EndAt         time.Time    `gorm:"not null" json:"end_at"`
	Options       []PollOption `gorm:"foreignKey:PollID" json:"options"`
}

// StatusAt returns the lifecycle state of the poll at the given instant.
// scheduled: now < StartAt; active: StartAt <= now < EndAt; closed: now >= EndAt.
func (p *Poll) StatusAt(now time.Time) PollStatus {
	if now.Before(p.StartAt) {
		return PollStatusScheduled
	}
	if now.Before(p.EndAt) {
		return PollStatusActive
	}
	return PollStatusClosed
}

// Status returns the lifecycle state at the current wall-clock time.
func (p *Poll) Status() PollStatus {
	return p.StatusAt(time.Now())
}

// PollOption represents one selectable option within a poll.
type PollOption struct {
	gorm.Model
	PollID     uint   `gorm:"not null;index" json:"poll_id"`
	Text       string `gorm:"not null" json:"text"`
	OrderIndex int    `gorm:"not null;default:0" json:"order_index"` // stable results ordering
}

// Vote is one link in a poll's hash chain. Rows are append-only: a vote is
// written exactly once by the ledger, and any later mutation is tampering
// that the integrity auditor must surface.
//
// UserID is stored even for anonymous polls (pseudonymous auditability) but
// is never serialized into API responses and is excluded from the hash input
// when the poll is anonymous.
type Vote struct {
	gorm.Model
	PollID      uint   `gorm:"not null;index" json:"poll_id"`
	OptionID    uint   `gorm:"not null;index" json:"option_id"`
	UserID      string `gorm:"type:varchar(64);index" json:"-"`
	TimestampNS int64  `gorm:"not null" json:"timestamp_ns"` // hash input; integer so DB round-trips are exact
	PrevHash    string `gorm:"type:char(64);not null" json:"prev_hash"`
	VoteHash    string `gorm:"type:char(64);not null;uniqueIndex" json:"vote_hash"`
	ReceiptCode string `gorm:"type:char(16);not null;uniqueIndex" json:"receipt_code"`
}

// AuditLog is the persisted audit trail written by the audit event consumer.
// CorrelationID ties a vote-cast event to any downstream notification.
type AuditLog struct {
	gorm.Model
	CorrelationID string `gorm:"type:char(36);not null;index" json:"correlation_id"`
	Event         string `gorm:"type:varchar(32);not null" json:"event"`
	PollID        uint   `gorm:"not null;index" json:"poll_id"`
	VoteID        uint   `json:"vote_id"`
	Detail        string `gorm:"type:text" json:"detail"`
}
