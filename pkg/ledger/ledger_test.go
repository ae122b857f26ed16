package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fitkit/pkg/billing"
	"github.com/dmitrymomot/fitkit/pkg/ledger"
)

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	return ledger.New(ledger.NewMemoryStore(), nil)
}

func activationParams(userID uuid.UUID, eventTime time.Time) ledger.UpsertParams {
	periodEnd := eventTime.Add(30 * 24 * time.Hour)
	return ledger.UpsertParams{
		UserID:    userID,
		Platform:  billing.PlatformWeb,
		PlanID:    "premium_monthly",
		Status:    billing.StatusActive,
		PeriodEnd: &periodEnd,
		EventTime: eventTime,
	}
}

func TestLedger_Upsert_CreatesNewRow(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	userID := uuid.New()
	eventTime := time.Now().UTC().Add(-time.Minute)

	sub, err := l.Upsert(context.Background(), activationParams(userID, eventTime))
	require.NoError(t, err)
	require.NotNil(t, sub)

	assert.NotEqual(t, uuid.Nil, sub.ID)
	assert.Equal(t, userID, sub.UserID)
	assert.Equal(t, billing.PlatformWeb, sub.Platform)
	assert.Equal(t, "premium_monthly", sub.PlanID)
	assert.Equal(t, billing.StatusActive, sub.Status)
	assert.True(t, sub.IsActive())
	assert.False(t, sub.StartedAt.IsZero())
	assert.Nil(t, sub.CancelledAt)
	assert.True(t, sub.LastEventAt.Equal(eventTime))
}

func TestLedger_Upsert_TransitionsExistingRow(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	userID := uuid.New()
	eventTime := time.Now().UTC().Add(-time.Hour)

	created, err := l.Upsert(context.Background(), activationParams(userID, eventTime))
	require.NoError(t, err)

	p := activationParams(userID, eventTime.Add(time.Minute))
	p.Status = billing.StatusPaused
	updated, err := l.Upsert(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID, "transitions keep the row identity")
	assert.Equal(t, billing.StatusPaused, updated.Status)
	assert.True(t, updated.StartedAt.Equal(created.StartedAt))
}

func TestLedger_Upsert_RejectsStaleEvent(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	userID := uuid.New()
	eventTime := time.Now().UTC()

	_, err := l.Upsert(context.Background(), activationParams(userID, eventTime))
	require.NoError(t, err)

	stale := activationParams(userID, eventTime.Add(-time.Minute))
	stale.Status = billing.StatusCancelled
	_, err = l.Upsert(context.Background(), stale)
	require.ErrorIs(t, err, ledger.ErrStaleEvent)

	sub, err := l.Get(context.Background(), userID, billing.PlatformWeb)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusActive, sub.Status, "stale delivery must not overwrite newer state")
}

func TestLedger_Upsert_RejectsInvalidTransition(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	userID := uuid.New()
	eventTime := time.Now().UTC().Add(-time.Hour)

	p := activationParams(userID, eventTime)
	p.Status = billing.StatusPaused
	_, err := l.Upsert(context.Background(), p)
	require.NoError(t, err)

	// Paused rows cannot expire; they either recover or get cancelled.
	p = activationParams(userID, eventTime.Add(time.Minute))
	p.Status = billing.StatusExpired
	_, err = l.Upsert(context.Background(), p)
	require.ErrorIs(t, err, ledger.ErrInvalidTransition)
}

func TestLedger_Upsert_CancellationStampsCancelledAt(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	userID := uuid.New()
	eventTime := time.Now().UTC().Add(-time.Hour)

	_, err := l.Upsert(context.Background(), activationParams(userID, eventTime))
	require.NoError(t, err)

	p := activationParams(userID, eventTime.Add(time.Minute))
	p.Status = billing.StatusCancelled
	cancelled, err := l.Upsert(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, billing.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.True(t, cancelled.IsTerminal())
}

func TestLedger_Upsert_RestartsTerminalRow(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	userID := uuid.New()
	eventTime := time.Now().UTC().Add(-2 * time.Hour)

	created, err := l.Upsert(context.Background(), activationParams(userID, eventTime))
	require.NoError(t, err)

	p := activationParams(userID, eventTime.Add(time.Minute))
	p.Status = billing.StatusCancelled
	cancelled, err := l.Upsert(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelledAt)

	restarted, err := l.Upsert(context.Background(), activationParams(userID, eventTime.Add(2*time.Minute)))
	require.NoError(t, err)

	assert.Equal(t, created.ID, restarted.ID, "restart reuses the row, not a new one")
	assert.Equal(t, billing.StatusActive, restarted.Status)
	assert.Nil(t, restarted.CancelledAt)
	assert.True(t, restarted.StartedAt.After(created.StartedAt), "restart resets the start time")
}

func TestLedger_Upsert_PreservesCorrelationKeys(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	userID := uuid.New()
	eventTime := time.Now().UTC().Add(-time.Hour)

	p := activationParams(userID, eventTime)
	p.Platform = billing.PlatformIOS
	p.Correlation.RevenueCatUserID = userID.String()
	p.Correlation.RevenueCatEntitlement = "premium"
	_, err := l.Upsert(context.Background(), p)
	require.NoError(t, err)

	// A later event without RevenueCat fields must not erase them.
	next := activationParams(userID, eventTime.Add(time.Minute))
	next.Platform = billing.PlatformIOS
	updated, err := l.Upsert(context.Background(), next)
	require.NoError(t, err)

	assert.Equal(t, userID.String(), updated.Correlation.RevenueCatUserID)
	assert.Equal(t, "premium", updated.Correlation.RevenueCatEntitlement)
}

func TestLedger_Upsert_KeepsPeriodEndWhenAbsent(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	userID := uuid.New()
	eventTime := time.Now().UTC().Add(-time.Hour)

	created, err := l.Upsert(context.Background(), activationParams(userID, eventTime))
	require.NoError(t, err)
	require.NotNil(t, created.CurrentPeriodEnd)

	next := activationParams(userID, eventTime.Add(time.Minute))
	next.PeriodEnd = nil
	updated, err := l.Upsert(context.Background(), next)
	require.NoError(t, err)

	require.NotNil(t, updated.CurrentPeriodEnd)
	assert.True(t, updated.CurrentPeriodEnd.Equal(*created.CurrentPeriodEnd))
}

func TestLedger_Upsert_IdenticalTimestampWins(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	userID := uuid.New()
	eventTime := time.Now().UTC()

	_, err := l.Upsert(context.Background(), activationParams(userID, eventTime))
	require.NoError(t, err)

	// Redelivery of the same event carries the same timestamp and applies.
	p := activationParams(userID, eventTime)
	p.Status = billing.StatusPaused
	updated, err := l.Upsert(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaused, updated.Status)
}

func TestLedger_Upsert_PlatformsAreIndependent(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	userID := uuid.New()
	eventTime := time.Now().UTC().Add(-time.Hour)

	web := activationParams(userID, eventTime)
	_, err := l.Upsert(context.Background(), web)
	require.NoError(t, err)

	ios := activationParams(userID, eventTime)
	ios.Platform = billing.PlatformIOS
	ios.Status = billing.StatusTrial
	_, err = l.Upsert(context.Background(), ios)
	require.NoError(t, err)

	webSub, err := l.Get(context.Background(), userID, billing.PlatformWeb)
	require.NoError(t, err)
	iosSub, err := l.Get(context.Background(), userID, billing.PlatformIOS)
	require.NoError(t, err)

	assert.Equal(t, billing.StatusActive, webSub.Status)
	assert.Equal(t, billing.StatusTrial, iosSub.Status)
	assert.NotEqual(t, webSub.ID, iosSub.ID)
}

func TestLedger_Get_NotFound(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)

	_, err := l.Get(context.Background(), uuid.New(), billing.PlatformWeb)
	require.ErrorIs(t, err, ledger.ErrSubscriptionNotFound)
}

func TestLedger_FindActive(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	userID := uuid.New()
	eventTime := time.Now().UTC().Add(-time.Hour)

	_, err := l.FindActive(context.Background(), userID)
	require.ErrorIs(t, err, ledger.ErrNoActiveSubscription)

	p := activationParams(userID, eventTime)
	p.Platform = billing.PlatformAndroid
	_, err = l.Upsert(context.Background(), p)
	require.NoError(t, err)

	sub, err := l.FindActive(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, billing.PlatformAndroid, sub.Platform)

	paused := activationParams(userID, eventTime.Add(time.Minute))
	paused.Platform = billing.PlatformAndroid
	paused.Status = billing.StatusPaused
	_, err = l.Upsert(context.Background(), paused)
	require.NoError(t, err)

	_, err = l.FindActive(context.Background(), userID)
	require.ErrorIs(t, err, ledger.ErrNoActiveSubscription, "paused subscriptions do not grant access")
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to billing.Status
		want     bool
	}{
		{billing.StatusActive, billing.StatusPaused, true},
		{billing.StatusActive, billing.StatusCancelled, true},
		{billing.StatusActive, billing.StatusExpired, true},
		{billing.StatusTrial, billing.StatusActive, true},
		{billing.StatusTrial, billing.StatusCancelled, true},
		{billing.StatusPaused, billing.StatusActive, true},
		{billing.StatusPaused, billing.StatusCancelled, true},
		{billing.StatusPaused, billing.StatusExpired, false},
		{billing.StatusCancelled, billing.StatusActive, false},
		{billing.StatusExpired, billing.StatusActive, false},
		{billing.StatusCancelled, billing.StatusCancelled, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ledger.CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestNew_PanicsOnNilStore(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		ledger.New(nil, nil)
	})
}
