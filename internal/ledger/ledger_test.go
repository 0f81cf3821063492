package ledger_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/adapters/memory"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/ledger"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func nullLogger() observability.Logger {
	l, _ := test.NewNullLogger()
	return observability.FromLogrus(l)
}

func TestLedger_BalanceIsFoldOfEntries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	l := ledger.New(store, nullLogger())
	customer, booking := uuid.New(), uuid.New()

	require.NoError(t, l.Refund(ctx, customer, booking, 1000, domain.CreditReasonCancelRefund))
	require.NoError(t, l.Refund(ctx, customer, booking, 250, domain.CreditReasonLateCancelRefund))
	require.NoError(t, l.Debit(ctx, customer, booking, 400))

	bal, err := l.Balance(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, int64(850), bal)

	entries := store.CreditEntries(customer)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(-400), entries[2].Amount)
	assert.Equal(t, domain.CreditReasonBookingPayment, entries[2].Reason)
	assert.Equal(t, booking, *entries[2].BookingID)
}

func TestLedger_DebitNeverExceedsBalance(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	l := ledger.New(store, nullLogger())
	customer := uuid.New()

	require.NoError(t, l.Refund(ctx, customer, uuid.New(), 300, domain.CreditReasonCancelRefund))
	err := l.Debit(ctx, customer, uuid.New(), 500)
	assert.True(t, errors.Is(err, domain.ErrInsufficientCredit), "got %v", err)

	bal, err := l.Balance(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, int64(300), bal)
}

func TestLedger_ZeroAmountsWriteNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	l := ledger.New(store, nullLogger())
	customer := uuid.New()

	require.NoError(t, l.Debit(ctx, customer, uuid.New(), 0))
	require.NoError(t, l.Refund(ctx, customer, uuid.New(), 0, domain.CreditReasonCancelRefund))
	_, err := l.Levy(ctx, customer, uuid.New(), 0, domain.FineReasonLateCancel)
	require.NoError(t, err)

	assert.Empty(t, store.CreditEntries(customer))
	assert.Empty(t, store.FineEntries(customer))
}

type flakyStore struct {
	*memory.Store
	mock.Mock
}

func (f *flakyStore) DebitCredit(ctx context.Context, e domain.CreditEntry) error {
	if err := f.Called(e.Amount).Error(0); err != nil {
		return err
	}
	return f.Store.DebitCredit(ctx, e)
}

func TestLedger_DebitRetriesSerializationFailures(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.NewStore()}
	store.On("DebitCredit", int64(-100)).Return(domain.ErrSerializationFailure).Once()
	store.On("DebitCredit", int64(-100)).Return(nil).Once()

	l := ledger.New(store, nullLogger())
	customer := uuid.New()
	require.NoError(t, l.Refund(ctx, customer, uuid.New(), 100, domain.CreditReasonCancelRefund))
	require.NoError(t, l.Debit(ctx, customer, uuid.New(), 100))

	store.AssertExpectations(t)
	bal, err := l.Balance(ctx, customer)
	require.NoError(t, err)
	assert.Zero(t, bal)
}
