package ledger

import (
	"fmt"

	"governance-voting-backend/models"
)

// 链断裂原因
const (
	ReasonHashMismatch = "hash mismatch" // 复算哈希与存储值不符
	ReasonLinkMismatch = "link mismatch" // prev_hash与前驱记录对不上
)

// BrokenLink 一处链断裂发现
type BrokenLink struct {
	Index  int    `json:"index"`
	VoteID uint   `json:"vote_id"`
	Reason string `json:"reason"`
}

// ChainReport 单个投票的链校验报告。
// 链断裂是正常的、需要上报的审计发现，不是校验器的错误。
type ChainReport struct {
	PollID      uint         `json:"poll_id"`
	Valid       bool         `json:"valid"`
	TotalVotes  int          `json:"total_votes"`
	BrokenLinks []BrokenLink `json:"broken_links"`
}

// GlobalReport 全部投票链的汇总校验报告
type GlobalReport struct {
	Valid        bool          `json:"valid"`
	PollsChecked int           `json:"polls_checked"`
	Reports      []ChainReport `json:"reports"`
}

// ValidateChain 复算并校验一个投票的整条哈希链。
// 记录按插入顺序遍历：第一条的prev_hash须为创世占位值，
// 之后每条的prev_hash须等于前一条的哈希；每条记录的哈希都重新计算比对。
// 只读，链再破也不返回错误。
func (l *Ledger) ValidateChain(pollID uint) (*ChainReport, error) {
	poll, err := l.fetchPoll(pollID)
	if err != nil {
		return nil, err
	}

	votes, err := l.votesInChainOrder(pollID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	report := &ChainReport{
		PollID:      pollID,
		TotalVotes:  len(votes),
		BrokenLinks: []BrokenLink{},
	}

	prevStored := GenesisSentinel
	prevRecomputed := GenesisSentinel

	for i, vote := range votes {
		recomputed := recomputeHash(poll, &vote)

		// 链接检查：prev_hash与前驱的存储哈希或复算哈希任一吻合即视为链接完好，
		// 这样单处篡改只产生一条发现而不是级联报告
		if vote.PrevHash != prevStored && vote.PrevHash != prevRecomputed {
			report.BrokenLinks = append(report.BrokenLinks, BrokenLink{
				Index:  i,
				VoteID: vote.ID,
				Reason: ReasonLinkMismatch,
			})
		} else if recomputed != vote.VoteHash {
			report.BrokenLinks = append(report.BrokenLinks, BrokenLink{
				Index:  i,
				VoteID: vote.ID,
				Reason: ReasonHashMismatch,
			})
		}

		prevStored = vote.VoteHash
		prevRecomputed = recomputed
	}

	report.Valid = len(report.BrokenLinks) == 0
	return report, nil
}

// ValidateAll 校验所有有投票记录的投票链并汇总结果
func (l *Ledger) ValidateAll() (*GlobalReport, error) {
	var pollIDs []uint
	err := l.db.Model(&models.Vote{}).
		Distinct("poll_id").
		Order("poll_id").
		Pluck("poll_id", &pollIDs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	global := &GlobalReport{
		Valid:        true,
		PollsChecked: len(pollIDs),
		Reports:      []ChainReport{},
	}

	for _, pollID := range pollIDs {
		report, err := l.ValidateChain(pollID)
		if err != nil {
			return nil, err
		}
		if !report.Valid {
			global.Valid = false
		}
		global.Reports = append(global.Reports, *report)
	}

	return global, nil
}

// ChainEntry 离线审计导出的链记录。包含用户ID，仅供特权审计工具使用。
type ChainEntry struct {
	Index       int    `json:"index"`
	VoteID      uint   `json:"vote_id"`
	PollID      uint   `json:"poll_id"`
	OptionID    uint   `json:"option_id"`
	UserID      string `json:"user_id"`
	TimestampNS int64  `json:"timestamp_ns"`
	PrevHash    string `json:"prev_hash"`
	VoteHash    string `json:"vote_hash"`
	ReceiptCode string `json:"receipt_code"`
}

// ExportChain 按链序导出一个投票的全部记录，供离线审计
func (l *Ledger) ExportChain(pollID uint) ([]ChainEntry, error) {
	if _, err := l.fetchPoll(pollID); err != nil {
		return nil, err
	}

	votes, err := l.votesInChainOrder(pollID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	entries := make([]ChainEntry, len(votes))
	for i, vote := range votes {
		entries[i] = ChainEntry{
			Index:       i,
			VoteID:      vote.ID,
			PollID:      vote.PollID,
			OptionID:    vote.OptionID,
			UserID:      vote.UserID,
			TimestampNS: vote.TimestampNS,
			PrevHash:    vote.PrevHash,
			VoteHash:    vote.VoteHash,
			ReceiptCode: vote.ReceiptCode,
		}
	}

	return entries, nil
}

// votesInChainOrder 按插入顺序取出一个投票的全部记录。
// 时间戳可能相等，用自增ID决出同刻顺序。
func (l *Ledger) votesInChainOrder(pollID uint) ([]models.Vote, error) {
	var votes []models.Vote
	err := l.db.Where("poll_id = ?", pollID).
		Order("timestamp_ns ASC, id ASC").
		Find(&votes).Error
	return votes, err
}

// recomputeHash 从存储字段复算一条投票记录的哈希。
// 匿名投票的哈希输入不含用户ID，复算时按投票的匿名标志还原投票者形式。
func recomputeHash(poll *models.Poll, vote *models.Vote) string {
	voter := IdentifiedVoter(vote.UserID)
	if poll.IsAnonymous {
		voter = AnonymousVoter()
	}
	return ComputeVoteHash(voter, vote.OptionID, vote.TimestampNS, vote.PrevHash)
}
