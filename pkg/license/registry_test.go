package license_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fitkit/pkg/license"
)

func newTestRegistry(t *testing.T, now time.Time) *license.Registry {
	t.Helper()
	return license.NewRegistry(license.NewMemoryStore(), nil,
		license.WithClock(func() time.Time { return now }))
}

func TestRegistry_Issue_KeyFormat(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry := newTestRegistry(t, now)

	lic, err := registry.Issue(context.Background(), now, nil)
	require.NoError(t, err)
	require.NotNil(t, lic)

	// 16 characters from an unambiguous alphabet, grouped by hyphens.
	assert.Regexp(t, regexp.MustCompile(`^[A-HJ-NP-Z2-9]{4}(-[A-HJ-NP-Z2-9]{4}){3}$`), lic.Key)
	assert.Nil(t, lic.UserID)
	assert.Nil(t, lic.ValidUntil)
	assert.False(t, lic.Activated())
	assert.True(t, lic.CreatedAt.Equal(now))
}

func TestRegistry_Issue_UniqueKeys(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	registry := newTestRegistry(t, now)

	seen := make(map[string]bool)
	for range 50 {
		lic, err := registry.Issue(context.Background(), now, nil)
		require.NoError(t, err)
		assert.False(t, seen[lic.Key], "duplicate key %s", lic.Key)
		seen[lic.Key] = true
	}
}

func TestRegistry_Validate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry := newTestRegistry(t, now)

	until := now.Add(365 * 24 * time.Hour)
	lic, err := registry.Issue(context.Background(), now.Add(-time.Hour), &until)
	require.NoError(t, err)

	valid, err := registry.Validate(context.Background(), lic.Key)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestRegistry_Validate_UnknownKey(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, time.Now().UTC())

	// An unknown key is a normal negative answer, not an error.
	valid, err := registry.Validate(context.Background(), "AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestRegistry_Validate_Window(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry := newTestRegistry(t, now)

	t.Run("not yet valid", func(t *testing.T) {
		t.Parallel()
		lic, err := registry.Issue(context.Background(), now.Add(time.Hour), nil)
		require.NoError(t, err)

		valid, err := registry.Validate(context.Background(), lic.Key)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		until := now.Add(-time.Minute)
		lic, err := registry.Issue(context.Background(), now.Add(-time.Hour), &until)
		require.NoError(t, err)

		valid, err := registry.Validate(context.Background(), lic.Key)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("unbounded", func(t *testing.T) {
		t.Parallel()
		lic, err := registry.Issue(context.Background(), now.Add(-time.Hour), nil)
		require.NoError(t, err)

		valid, err := registry.Validate(context.Background(), lic.Key)
		require.NoError(t, err)
		assert.True(t, valid)
	})
}

func TestRegistry_Validate_RefreshesLastChecked(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := license.NewMemoryStore()
	registry := license.NewRegistry(store, nil,
		license.WithClock(func() time.Time { return now }))

	lic, err := registry.Issue(context.Background(), now.Add(-time.Hour), nil)
	require.NoError(t, err)

	_, err = registry.Validate(context.Background(), lic.Key)
	require.NoError(t, err)

	stored, err := store.Get(context.Background(), lic.Key)
	require.NoError(t, err)
	require.NotNil(t, stored.LastCheckedAt)
	assert.True(t, stored.LastCheckedAt.Equal(now))
}

func TestRegistry_Activate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := license.NewMemoryStore()
	registry := license.NewRegistry(store, nil,
		license.WithClock(func() time.Time { return now }))
	userID := uuid.New()

	lic, err := registry.Issue(context.Background(), now.Add(-time.Hour), nil)
	require.NoError(t, err)

	require.NoError(t, registry.Activate(context.Background(), lic.Key, userID))

	stored, err := store.Get(context.Background(), lic.Key)
	require.NoError(t, err)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, userID, *stored.UserID)
	require.NotNil(t, stored.ActivatedAt)
	assert.True(t, stored.Activated())
}

func TestRegistry_Activate_FirstWriterWins(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry := newTestRegistry(t, now)
	owner := uuid.New()
	intruder := uuid.New()

	lic, err := registry.Issue(context.Background(), now.Add(-time.Hour), nil)
	require.NoError(t, err)

	require.NoError(t, registry.Activate(context.Background(), lic.Key, owner))

	// Re-activation by the owner is idempotent.
	require.NoError(t, registry.Activate(context.Background(), lic.Key, owner))

	err = registry.Activate(context.Background(), lic.Key, intruder)
	require.ErrorIs(t, err, license.ErrAlreadyActivated)
}

func TestRegistry_Activate_UnknownKey(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, time.Now().UTC())

	err := registry.Activate(context.Background(), "AAAA-BBBB-CCCC-DDDD", uuid.New())
	require.ErrorIs(t, err, license.ErrInvalidLicense)
}

func TestRegistry_Activate_Expired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry := newTestRegistry(t, now)

	until := now.Add(-time.Minute)
	lic, err := registry.Issue(context.Background(), now.Add(-time.Hour), &until)
	require.NoError(t, err)

	err = registry.Activate(context.Background(), lic.Key, uuid.New())
	require.ErrorIs(t, err, license.ErrLicenseExpired)
}

func TestRegistry_HasValidLicense(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry := newTestRegistry(t, now)
	userID := uuid.New()

	ok, err := registry.HasValidLicense(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, ok, "no licenses bound yet")

	lic, err := registry.Issue(context.Background(), now.Add(-time.Hour), nil)
	require.NoError(t, err)
	require.NoError(t, registry.Activate(context.Background(), lic.Key, userID))

	ok, err = registry.HasValidLicense(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, ok)

	otherUser := uuid.New()
	ok, err = registry.HasValidLicense(context.Background(), otherUser)
	require.NoError(t, err)
	assert.False(t, ok, "licenses do not leak across users")
}

func TestRegistry_HasValidLicense_ExpiredBinding(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	registry := license.NewRegistry(license.NewMemoryStore(), nil,
		license.WithClock(func() time.Time { return clock }))
	userID := uuid.New()

	until := now.Add(time.Hour)
	lic, err := registry.Issue(context.Background(), now.Add(-time.Hour), &until)
	require.NoError(t, err)
	require.NoError(t, registry.Activate(context.Background(), lic.Key, userID))

	ok, err := registry.HasValidLicense(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Past the window the binding remains but no longer grants access.
	clock = now.Add(2 * time.Hour)
	ok, err = registry.HasValidLicense(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, ok)
}
