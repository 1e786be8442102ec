package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escion333/autoUSD-sub000/internal/store"
	"github.com/escion333/autoUSD-sub000/internal/test"
)

func TestOutboundNoncesAreSequentialPerDomain(t *testing.T) {
	test.WithTestStore(t, func(st *store.Store) {
		ctx := context.Background()

		for want := uint64(1); want <= 3; want++ {
			nonce, err := st.NextOutboundNonce(ctx, 10)
			require.NoError(t, err)
			assert.Equal(t, want, nonce)
		}

		// independent sequence per destination
		nonce, err := st.NextOutboundNonce(ctx, 20)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), nonce)
	})
}

func TestCursorRoundTrip(t *testing.T) {
	test.WithTestStore(t, func(st *store.Store) {
		ctx := context.Background()

		nonce, ts, err := st.Cursor(ctx, 10, "0xaa")
		require.NoError(t, err)
		assert.Zero(t, nonce)
		assert.Zero(t, ts)

		require.NoError(t, st.AdvanceCursor(ctx, 10, "0xaa", 5, 1000))
		require.NoError(t, st.AdvanceCursor(ctx, 10, "0xaa", 6, 1001))

		nonce, ts, err = st.Cursor(ctx, 10, "0xaa")
		require.NoError(t, err)
		assert.Equal(t, uint64(6), nonce)
		assert.Equal(t, int64(1001), ts)
	})
}

func TestFailedMessageQueue(t *testing.T) {
	test.WithTestStore(t, func(st *store.Store) {
		ctx := context.Background()

		id, err := st.EnqueueFailedMessage(ctx, store.FailedMessage{
			MessageType: 1,
			DestDomain:  10,
			Recipient:   "0xaa",
			Payload:     []byte{0x01, 0x02},
			GasPayment:  "0",
			LastAttempt: 1000,
		})
		require.NoError(t, err)

		msgs, err := st.ListFailedMessages(ctx)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, id, msgs[0].ID)
		assert.Equal(t, 0, msgs[0].Attempts)

		require.NoError(t, st.RecordRetryAttempt(ctx, id, 1, 2000))
		require.NoError(t, st.ResolveFailedMessage(ctx, id))

		msgs, err = st.ListFailedMessages(ctx)
		require.NoError(t, err)
		assert.Empty(t, msgs)

		m, err := st.FailedMessageByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, m.Attempts)
		assert.True(t, m.Resolved)
	})
}

func TestSettlementDedup(t *testing.T) {
	test.WithTestStore(t, func(st *store.Store) {
		ctx := context.Background()

		fresh, err := st.RecordSettlement(ctx, "0xhash", 10, "500", 1000)
		require.NoError(t, err)
		assert.True(t, fresh)

		fresh, err = st.RecordSettlement(ctx, "0xhash", 10, "500", 1001)
		require.NoError(t, err)
		assert.False(t, fresh)
	})
}

func TestAppliedSettlementMarker(t *testing.T) {
	test.WithTestStore(t, func(st *store.Store) {
		ctx := context.Background()

		fresh, err := st.MarkSettlementApplied(ctx, "0xhash", 1000)
		require.NoError(t, err)
		assert.True(t, fresh)

		fresh, err = st.MarkSettlementApplied(ctx, "0xhash", 1001)
		require.NoError(t, err)
		assert.False(t, fresh)

		require.NoError(t, st.UnmarkSettlementApplied(ctx, "0xhash"))

		fresh, err = st.MarkSettlementApplied(ctx, "0xhash", 1002)
		require.NoError(t, err)
		assert.True(t, fresh)
	})
}

func TestCompleteOldestOperationIsFIFO(t *testing.T) {
	test.WithTestStore(t, func(st *store.Store) {
		ctx := context.Background()

		for i, id := range []string{"op-1", "op-2"} {
			require.NoError(t, st.InsertPendingOperation(ctx, store.PendingOperation{
				CorrelationID: id,
				Kind:          store.OperationKindWithdrawal,
				Amount:        "100",
				TargetDomain:  10,
				CreatedAt:     int64(1000 + i),
			}))
		}

		op, err := st.CompleteOldestOperation(ctx, store.OperationKindWithdrawal, 10)
		require.NoError(t, err)
		require.NotNil(t, op)
		assert.Equal(t, "op-1", op.CorrelationID)

		op, err = st.CompleteOldestOperation(ctx, store.OperationKindWithdrawal, 10)
		require.NoError(t, err)
		require.NotNil(t, op)
		assert.Equal(t, "op-2", op.CorrelationID)

		op, err = st.CompleteOldestOperation(ctx, store.OperationKindWithdrawal, 10)
		require.NoError(t, err)
		assert.Nil(t, op)
	})
}

func TestStaleOperationsSkipFlaggedAndCompleted(t *testing.T) {
	test.WithTestStore(t, func(st *store.Store) {
		ctx := context.Background()

		ops := []store.PendingOperation{
			{CorrelationID: "old", Kind: store.OperationKindDeployment, Amount: "1", TargetDomain: 10, CreatedAt: 100},
			{CorrelationID: "flagged", Kind: store.OperationKindDeployment, Amount: "1", TargetDomain: 10, CreatedAt: 100},
			{CorrelationID: "done", Kind: store.OperationKindDeployment, Amount: "1", TargetDomain: 10, CreatedAt: 100},
			{CorrelationID: "recent", Kind: store.OperationKindDeployment, Amount: "1", TargetDomain: 10, CreatedAt: 900},
		}
		for _, op := range ops {
			require.NoError(t, st.InsertPendingOperation(ctx, op))
		}

		require.NoError(t, st.FlagOperation(ctx, "flagged"))
		require.NoError(t, st.CompleteOperation(ctx, "done"))

		stale, err := st.StaleOperations(ctx, 500)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, "old", stale[0].CorrelationID)
	})
}

func TestRebalanceExecutionMarkers(t *testing.T) {
	test.WithTestStore(t, func(st *store.Store) {
		ctx := context.Background()

		inserted, err := st.InsertRebalanceExecution(ctx, store.RebalanceExecution{
			ExecutionID:  "0xexec",
			SourceDomain: 10,
			TargetDomain: 20,
			Amount:       "500",
			ExecutedAt:   1000,
		})
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = st.InsertRebalanceExecution(ctx, store.RebalanceExecution{
			ExecutionID: "0xexec",
			ExecutedAt:  1001,
		})
		require.NoError(t, err)
		assert.False(t, inserted)

		count, err := st.CountRebalancesSince(ctx, 500)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		last, err := st.LastRebalanceAt(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), last)

		require.NoError(t, st.DeleteRebalanceExecution(ctx, "0xexec"))

		last, err = st.LastRebalanceAt(ctx)
		require.NoError(t, err)
		assert.Zero(t, last)
	})
}
