package ledger

import "errors"

var (
	// ErrPollNotFound 投票不存在
	ErrPollNotFound = errors.New("poll not found")

	// ErrOptionNotFound 选项不存在或不属于该投票
	ErrOptionNotFound = errors.New("option does not belong to poll")

	// ErrPollNotActive 投票不在进行中（未开始或已结束）
	ErrPollNotActive = errors.New("poll is not active")

	// ErrDuplicateVote 实名投票中同一用户重复投票
	ErrDuplicateVote = errors.New("user already voted")

	// ErrContention 在限定时间内未能获取排序闸门
	ErrContention = errors.New("could not acquire vote chain lock")

	// ErrPersistence 哈希冲突重试次数耗尽或底层存储失败
	ErrPersistence = errors.New("vote could not be persisted")
)
