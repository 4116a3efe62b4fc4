package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountVotesByOption(t *testing.T) {
	l, db := newTestLedger(t)
	poll := makeActivePoll(t, db, false)

	// 三名成员投票：两票A，一票B
	optionA := poll.Options[0].ID
	optionB := poll.Options[1].ID

	for _, vote := range []struct {
		user   string
		option uint
	}{
		{"m1", optionA},
		{"m2", optionB},
		{"m3", optionA},
	} {
		_, err := l.Append(context.Background(), poll.ID, vote.user, vote.option)
		require.NoError(t, err)
	}

	results, err := l.CountVotesByOption(poll.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// 按order_index排序，无票选项计为0
	assert.Equal(t, "Option A", results[0].Text)
	assert.Equal(t, int64(2), results[0].Count)
	assert.Equal(t, "Option B", results[1].Text)
	assert.Equal(t, int64(1), results[1].Count)
	assert.Equal(t, "Option C", results[2].Text)
	assert.Equal(t, int64(0), results[2].Count)
}

func TestCountVotesByOptionEmptyPoll(t *testing.T) {
	l, db := newTestLedger(t)
	poll := makeActivePoll(t, db, false)

	results, err := l.CountVotesByOption(poll.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, int64(0), r.Count)
	}
}

func TestCountVotesByOptionUnknownPoll(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.CountVotesByOption(9999)
	assert.ErrorIs(t, err, ErrPollNotFound)
}
