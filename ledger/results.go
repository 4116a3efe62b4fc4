package ledger

import (
	"fmt"
	"sort"

	"governance-voting-backend/models"
)

// OptionCount 单个选项的计票结果
type OptionCount struct {
	OptionID   uint   `json:"option_id"`
	OrderIndex int    `json:"order_index"`
	Text       string `json:"text"`
	Count      int64  `json:"count"`
}

// CountVotesByOption 按选项统计一个投票的票数，按order_index排序返回。
// 没有票的选项计为0；不返回任何单票或投票者信息。
func (l *Ledger) CountVotesByOption(pollID uint) ([]OptionCount, error) {
	poll, err := l.fetchPoll(pollID)
	if err != nil {
		return nil, err
	}

	type row struct {
		OptionID uint
		Count    int64
	}
	var rows []row
	err = l.db.Model(&models.Vote{}).
		Select("option_id, COUNT(*) as count").
		Where("poll_id = ?", pollID).
		Group("option_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.OptionID] = r.Count
	}

	results := make([]OptionCount, 0, len(poll.Options))
	for _, opt := range poll.Options {
		results = append(results, OptionCount{
			OptionID:   opt.ID,
			OrderIndex: opt.OrderIndex,
			Text:       opt.Text,
			Count:      counts[opt.ID],
		})
	}

	// 选项预加载不保证顺序，按order_index稳定排序
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].OrderIndex < results[j].OrderIndex
	})

	return results, nil
}
