package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"governance-voting-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendBuildsChain(t *testing.T) {
	l, db := newTestLedger(t)
	poll := makeActivePoll(t, db, false)

	const n = 5
	for i := 0; i < n; i++ {
		userID := fmt.Sprintf("member-%d", i)
		optionID := poll.Options[i%len(poll.Options)].ID

		vote, err := l.Append(context.Background(), poll.ID, userID, optionID)
		require.NoError(t, err)
		assert.NotEmpty(t, vote.VoteHash)
		assert.Len(t, vote.ReceiptCode, ReceiptCodeLength)
	}

	votes, err := l.votesInChainOrder(poll.ID)
	require.NoError(t, err)
	require.Len(t, votes, n)

	// 第一条挂在创世占位值上，之后每条挂在前一条的哈希上
	prev := GenesisSentinel
	for i, vote := range votes {
		assert.Equal(t, prev, vote.PrevHash, "vote %d", i)
		recomputed := ComputeVoteHash(IdentifiedVoter(vote.UserID), vote.OptionID, vote.TimestampNS, vote.PrevHash)
		assert.Equal(t, recomputed, vote.VoteHash, "vote %d hash must be recomputable", i)
		assert.Equal(t, DeriveReceiptCode(vote.VoteHash), vote.ReceiptCode)
		prev = vote.VoteHash
	}

	// 链内时间戳单调不减
	for i := 1; i < n; i++ {
		assert.GreaterOrEqual(t, votes[i].TimestampNS, votes[i-1].TimestampNS)
	}
}

func TestAppendDuplicateVoteRejected(t *testing.T) {
	l, db := newTestLedger(t)
	poll := makeActivePoll(t, db, false)

	_, err := l.Append(context.Background(), poll.ID, "member-1", poll.Options[0].ID)
	require.NoError(t, err)

	_, err = l.Append(context.Background(), poll.ID, "member-1", poll.Options[1].ID)
	assert.ErrorIs(t, err, ErrDuplicateVote)

	var count int64
	require.NoError(t, db.Model(&models.Vote{}).Where("poll_id = ?", poll.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "rejected vote must leave no row behind")
}

func TestAppendAnonymousPoll(t *testing.T) {
	l, db := newTestLedger(t)
	poll := makeActivePoll(t, db, true)

	// 匿名投票不做单人单票约束
	v1, err := l.Append(context.Background(), poll.ID, "member-1", poll.Options[0].ID)
	require.NoError(t, err)
	v2, err := l.Append(context.Background(), poll.ID, "member-1", poll.Options[1].ID)
	require.NoError(t, err)

	// 用户ID照常落库，但哈希输入中不包含
	assert.Equal(t, "member-1", v1.UserID)
	recomputed := ComputeVoteHash(AnonymousVoter(), v1.OptionID, v1.TimestampNS, v1.PrevHash)
	assert.Equal(t, recomputed, v1.VoteHash)
	assert.Equal(t, v1.VoteHash, v2.PrevHash)
}

func TestAppendValidationErrors(t *testing.T) {
	l, db := newTestLedger(t)

	t.Run("poll not found", func(t *testing.T) {
		_, err := l.Append(context.Background(), 9999, "member-1", 1)
		assert.ErrorIs(t, err, ErrPollNotFound)
	})

	t.Run("poll not started", func(t *testing.T) {
		poll := makeActivePoll(t, db, false)
		require.NoError(t, db.Model(poll).Updates(map[string]interface{}{
			"start_at": time.Now().Add(time.Hour),
			"end_at":   time.Now().Add(2 * time.Hour),
		}).Error)

		_, err := l.Append(context.Background(), poll.ID, "member-1", poll.Options[0].ID)
		assert.ErrorIs(t, err, ErrPollNotActive)
	})

	t.Run("poll closed", func(t *testing.T) {
		poll := makeActivePoll(t, db, false)
		require.NoError(t, db.Model(poll).Updates(map[string]interface{}{
			"start_at": time.Now().Add(-2 * time.Hour),
			"end_at":   time.Now().Add(-time.Hour),
		}).Error)

		_, err := l.Append(context.Background(), poll.ID, "member-1", poll.Options[0].ID)
		assert.ErrorIs(t, err, ErrPollNotActive)
	})

	t.Run("option from another poll", func(t *testing.T) {
		poll := makeActivePoll(t, db, false)
		other := makeActivePoll(t, db, false)

		_, err := l.Append(context.Background(), poll.ID, "member-1", other.Options[0].ID)
		assert.ErrorIs(t, err, ErrOptionNotFound)
	})
}

func TestAppendConcurrentVotersKeepChainIntact(t *testing.T) {
	l, db := newTestLedger(t)
	poll := makeActivePoll(t, db, false)

	const voters = 20
	var wg sync.WaitGroup
	errs := make(chan error, voters)

	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("member-%d", i)
			optionID := poll.Options[i%len(poll.Options)].ID
			_, err := l.Append(context.Background(), poll.ID, userID, optionID)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	report, err := l.ValidateChain(poll.ID)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, voters, report.TotalVotes)
}

func TestAppendPublishesAuditEvent(t *testing.T) {
	db := newTestDB(t)
	publisher := &capturingPublisher{}
	l := NewLedger(db, NewLocalGate(), publisher)
	poll := makeActivePoll(t, db, false)

	vote, err := l.Append(context.Background(), poll.ID, "member-1", poll.Options[0].ID)
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.NotEmpty(t, event.CorrelationID)
	assert.Equal(t, "vote_cast", event.Event)
	assert.Equal(t, poll.ID, event.PollID)
	assert.Equal(t, vote.ID, event.VoteID)
	assert.Equal(t, vote.VoteHash, event.VoteHash)
}
