package ledger

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"governance-voting-backend/models"

	"gorm.io/gorm"
)

// ReceiptResult 回执查询结果。命中与未命中返回同一结构，
// 任何情况下都不包含投票者身份。
type ReceiptResult struct {
	Valid      bool   `json:"valid"`
	PollID     uint   `json:"poll_id"`
	PollTitle  string `json:"poll_title"`
	OptionText string `json:"option_text"`
}

// VerifyReceipt 按回执码查找投票记录。
// 命中与未命中都只执行同一条联表查询，工作量相当，
// 避免通过时延探测回执码是否存在。
func (l *Ledger) VerifyReceipt(code string) (*ReceiptResult, error) {
	normalized := NormalizeReceiptCode(code)
	invalid := &ReceiptResult{Valid: false}

	var row struct {
		ReceiptCode string
		PollID      uint
		PollTitle   string
		OptionText  string
	}
	err := l.db.Model(&models.Vote{}).
		Select("votes.receipt_code, votes.poll_id, polls.title AS poll_title, poll_options.text AS option_text").
		Joins("JOIN polls ON polls.id = votes.poll_id").
		Joins("JOIN poll_options ON poll_options.id = votes.option_id").
		Where("votes.receipt_code = ?", normalized).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invalid, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// 常数时间比对存储回执码与输入
	if subtle.ConstantTimeCompare([]byte(row.ReceiptCode), []byte(normalized)) != 1 {
		return invalid, nil
	}

	return &ReceiptResult{
		Valid:      true,
		PollID:     row.PollID,
		PollTitle:  row.PollTitle,
		OptionText: row.OptionText,
	}, nil
}
