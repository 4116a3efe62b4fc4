package ledger

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyReceiptHit(t *testing.T) {
	l, db := newTestLedger(t)
	poll := makeActivePoll(t, db, false)

	vote, err := l.Append(context.Background(), poll.ID, "member-1", poll.Options[1].ID)
	require.NoError(t, err)

	result, err := l.VerifyReceipt(vote.ReceiptCode)
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Equal(t, poll.ID, result.PollID)
	assert.Equal(t, poll.Title, result.PollTitle)
	assert.Equal(t, "Option B", result.OptionText)
}

func TestVerifyReceiptNormalizesInput(t *testing.T) {
	l, db := newTestLedger(t)
	poll := makeActivePoll(t, db, false)

	vote, err := l.Append(context.Background(), poll.ID, "member-1", poll.Options[0].ID)
	require.NoError(t, err)

	// 小写和首尾空白都接受
	result, err := l.VerifyReceipt("  " + strings.ToLower(vote.ReceiptCode) + " ")
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestVerifyReceiptResolvesAcrossPolls(t *testing.T) {
	l, db := newTestLedger(t)
	poll1 := makeActivePoll(t, db, false)
	poll2 := makeActivePoll(t, db, false)

	v1, err := l.Append(context.Background(), poll1.ID, "member-1", poll1.Options[0].ID)
	require.NoError(t, err)
	v2, err := l.Append(context.Background(), poll2.ID, "member-1", poll2.Options[2].ID)
	require.NoError(t, err)

	// 联表查询必须把回执码解析到正确的投票和选项
	r1, err := l.VerifyReceipt(v1.ReceiptCode)
	require.NoError(t, err)
	assert.True(t, r1.Valid)
	assert.Equal(t, poll1.ID, r1.PollID)
	assert.Equal(t, "Option A", r1.OptionText)

	r2, err := l.VerifyReceipt(v2.ReceiptCode)
	require.NoError(t, err)
	assert.True(t, r2.Valid)
	assert.Equal(t, poll2.ID, r2.PollID)
	assert.Equal(t, "Option C", r2.OptionText)
}

func TestVerifyReceiptMiss(t *testing.T) {
	l, db := newTestLedger(t)
	makeActivePoll(t, db, false)

	// 未命中与格式错误返回同一结构，不泄露回执码是否存在
	for _, code := range []string{"0123456789ABCDEF", "short", "", "这不是回执码"} {
		result, err := l.VerifyReceipt(code)
		require.NoError(t, err)
		assert.Equal(t, &ReceiptResult{Valid: false}, result)
	}
}
