package push_service

import (
	"context"
	"errors"
	"fleet-push-service/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIdentity = "a@b.com"
	tokenOne     = "tok-1234567890"
	tokenTwo     = "tok-abcdefghij"
	tokenThree   = "tok-zyxwvutsrq"
)

func TestRegisterOnEmptyStore(t *testing.T) {
	store := NewMemoryTokenStore()
	registry, _ := newTestRegistry(store)
	ctx := context.Background()

	result, err := registry.Register(ctx, testIdentity, "default", tokenOne)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationInserted, result.Outcome)

	tokens, err := registry.Lookup(ctx, testIdentity, "")
	require.NoError(t, err)
	assert.Equal(t, []string{tokenOne}, tokens)
}

func TestRegisterIsIdempotent(t *testing.T) {
	store := NewMemoryTokenStore()
	registry, clock := newTestRegistry(store)
	ctx := context.Background()

	_, err := registry.Register(ctx, testIdentity, "phone", tokenOne)
	require.NoError(t, err)
	first, err := store.Get(ctx, testIdentity)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	result, err := registry.Register(ctx, testIdentity, "phone", tokenOne)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationUnchanged, result.Outcome)

	second, err := store.Get(ctx, testIdentity)
	require.NoError(t, err)
	require.Len(t, second.Tokens, 1)
	assert.False(t, second.Tokens[0].UpdatedAt.Before(first.Tokens[0].UpdatedAt))
}

func TestRegisterReplacesSlotAndKeepsCreatedAt(t *testing.T) {
	store := NewMemoryTokenStore()
	registry, clock := newTestRegistry(store)
	ctx := context.Background()

	_, err := registry.Register(ctx, testIdentity, "A", tokenOne)
	require.NoError(t, err)
	createdA := clock.Now()

	clock.Advance(time.Hour)
	result, err := registry.Register(ctx, testIdentity, "A", tokenTwo)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationReplaced, result.Outcome)

	clock.Advance(time.Hour)
	result, err = registry.Register(ctx, testIdentity, "B", tokenThree)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationInserted, result.Outcome)

	record, err := store.Get(ctx, testIdentity)
	require.NoError(t, err)
	require.Len(t, record.Tokens, 2)
	assert.Equal(t, "A", record.Tokens[0].DeviceSlot)
	assert.Equal(t, tokenTwo, record.Tokens[0].Token)
	assert.True(t, record.Tokens[0].CreatedAt.Equal(createdA))
	assert.True(t, record.Tokens[0].UpdatedAt.Equal(createdA.Add(time.Hour)))
	assert.Equal(t, "B", record.Tokens[1].DeviceSlot)
}

func TestRegisterNewSlotUsesAtomicAdd(t *testing.T) {
	store := &failingStore{TokenDocumentStore: NewMemoryTokenStore()}
	registry, _ := newTestRegistry(store)
	ctx := context.Background()

	_, err := registry.Register(ctx, testIdentity, "A", tokenOne)
	require.NoError(t, err)
	_, err = registry.Register(ctx, testIdentity, "B", tokenTwo)
	require.NoError(t, err)

	assert.Equal(t, 2, store.addCalls)
	assert.Equal(t, 0, store.setCalls)
}

func TestRegisterNormalizesIdentity(t *testing.T) {
	registry, _ := newTestRegistry(NewMemoryTokenStore())
	ctx := context.Background()

	result, err := registry.Register(ctx, `  "A@B.Com" `, "", tokenOne)
	require.NoError(t, err)
	assert.Equal(t, testIdentity, result.Identity)
	assert.Equal(t, models.DefaultDeviceSlot, result.DeviceSlot)

	tokens, err := registry.Lookup(ctx, "a@b.com", "default")
	require.NoError(t, err)
	assert.Equal(t, []string{tokenOne}, tokens)
}

func TestRegisterValidation(t *testing.T) {
	store := &failingStore{TokenDocumentStore: NewMemoryTokenStore(), failGet: true}
	registry, _ := newTestRegistry(store)
	ctx := context.Background()

	tests := []struct {
		name     string
		identity string
		token    string
	}{
		{"missing identity", "", tokenOne},
		{"not an address", "not-an-email", tokenOne},
		{"missing token", testIdentity, ""},
		{"short token", testIdentity, "0123456789"},
		{"token with space", testIdentity, "tok 1234567890"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Register(ctx, tt.identity, "", tt.token)
			assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
		})
	}
}

func TestRegisterStoreFailure(t *testing.T) {
	ctx := context.Background()

	registry, _ := newTestRegistry(&failingStore{TokenDocumentStore: NewMemoryTokenStore(), failGet: true})
	_, err := registry.Register(ctx, testIdentity, "", tokenOne)
	assert.True(t, errors.Is(err, ErrRegistryUnavailable))

	registry, _ = newTestRegistry(&failingStore{TokenDocumentStore: NewMemoryTokenStore(), failWrite: true})
	_, err = registry.Register(ctx, testIdentity, "", tokenOne)
	assert.True(t, errors.Is(err, ErrRegistryUnavailable))
	assert.True(t, errors.Is(err, errStoreDown))
}

func TestRegisterUpgradesLegacyRecord(t *testing.T) {
	store := NewMemoryTokenStore()
	registry, clock := newTestRegistry(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, &models.UserTokenRecord{
		Identity: testIdentity,
		Tokens:   []models.TokenEntry{{DeviceSlot: models.DefaultDeviceSlot, Token: tokenOne, Raw: tokenOne}},
		Legacy:   true,
	}))

	result, err := registry.Register(ctx, testIdentity, "tablet", tokenTwo)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationInserted, result.Outcome)

	record, err := store.Get(ctx, testIdentity)
	require.NoError(t, err)
	assert.False(t, record.Legacy)
	require.Len(t, record.Tokens, 2)
	assert.True(t, record.Tokens[0].CreatedAt.Equal(clock.Now()))
	assert.Nil(t, record.Tokens[0].Raw)
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()

	t.Run("by device slot", func(t *testing.T) {
		store := NewMemoryTokenStore()
		registry, _ := newTestRegistry(store)
		_, _ = registry.Register(ctx, testIdentity, "A", tokenOne)
		_, _ = registry.Register(ctx, testIdentity, "B", tokenTwo)

		result, err := registry.Unregister(ctx, testIdentity, Selector{DeviceSlot: "A"})
		require.NoError(t, err)
		assert.True(t, result.Removed)
		assert.Equal(t, 1, result.Count)

		record, err := store.Get(ctx, testIdentity)
		require.NoError(t, err)
		require.Len(t, record.Tokens, 1)
		assert.Equal(t, "B", record.Tokens[0].DeviceSlot)
	})

	t.Run("by token deletes empty record", func(t *testing.T) {
		store := NewMemoryTokenStore()
		registry, _ := newTestRegistry(store)
		_, _ = registry.Register(ctx, testIdentity, "A", tokenOne)

		result, err := registry.Unregister(ctx, testIdentity, Selector{Token: tokenOne})
		require.NoError(t, err)
		assert.True(t, result.Removed)

		_, err = store.Get(ctx, testIdentity)
		assert.ErrorIs(t, err, models.ErrRecordNotFound)

		tokens, err := registry.Lookup(ctx, testIdentity, "")
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})

	t.Run("absent record", func(t *testing.T) {
		registry, _ := newTestRegistry(NewMemoryTokenStore())
		result, err := registry.Unregister(ctx, "nobody@b.com", Selector{DeviceSlot: "A"})
		require.NoError(t, err)
		assert.False(t, result.Removed)
	})

	t.Run("nothing matched", func(t *testing.T) {
		registry, _ := newTestRegistry(NewMemoryTokenStore())
		_, _ = registry.Register(ctx, testIdentity, "A", tokenOne)
		result, err := registry.Unregister(ctx, testIdentity, Selector{Token: tokenTwo})
		require.NoError(t, err)
		assert.False(t, result.Removed)
	})

	t.Run("selector must be exactly one kind", func(t *testing.T) {
		registry, _ := newTestRegistry(NewMemoryTokenStore())
		_, err := registry.Unregister(ctx, testIdentity, Selector{})
		assert.ErrorIs(t, err, ErrValidation)
		_, err = registry.Unregister(ctx, testIdentity, Selector{DeviceSlot: "A", Token: tokenOne})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("legacy record is rewritten", func(t *testing.T) {
		store := NewMemoryTokenStore()
		registry, _ := newTestRegistry(store)
		require.NoError(t, store.Set(ctx, &models.UserTokenRecord{
			Identity: testIdentity,
			Tokens: []models.TokenEntry{
				{DeviceSlot: models.DefaultDeviceSlot, Token: tokenOne, Raw: tokenOne},
				{DeviceSlot: models.DefaultDeviceSlot, Token: tokenTwo, Raw: tokenTwo},
			},
			Legacy: true,
		}))

		result, err := registry.Unregister(ctx, testIdentity, Selector{Token: tokenOne})
		require.NoError(t, err)
		assert.True(t, result.Removed)

		record, err := store.Get(ctx, testIdentity)
		require.NoError(t, err)
		assert.False(t, record.Legacy)
		assert.Equal(t, []string{tokenTwo}, record.TokenValues())
	})
}

func TestLookupBySlot(t *testing.T) {
	registry, _ := newTestRegistry(NewMemoryTokenStore())
	ctx := context.Background()
	_, _ = registry.Register(ctx, testIdentity, "A", tokenOne)
	_, _ = registry.Register(ctx, testIdentity, "B", tokenTwo)

	tokens, err := registry.Lookup(ctx, testIdentity, "B")
	require.NoError(t, err)
	assert.Equal(t, []string{tokenTwo}, tokens)

	tokens, err = registry.Lookup(ctx, testIdentity, "C")
	require.NoError(t, err)
	assert.Empty(t, tokens)

	tokens, err = registry.Lookup(ctx, "unknown@b.com", "")
	require.NoError(t, err)
	assert.NotNil(t, tokens)
	assert.Empty(t, tokens)
}

func TestSlotSelectorsAreTrimmedLikeRegister(t *testing.T) {
	registry, _ := newTestRegistry(NewMemoryTokenStore())
	ctx := context.Background()
	_, err := registry.Register(ctx, testIdentity, " phone ", tokenOne)
	require.NoError(t, err)

	tokens, err := registry.Lookup(ctx, testIdentity, " phone ")
	require.NoError(t, err)
	assert.Equal(t, []string{tokenOne}, tokens)

	result, err := registry.Unregister(ctx, testIdentity, Selector{DeviceSlot: " phone "})
	require.NoError(t, err)
	assert.True(t, result.Removed)
	assert.Equal(t, 1, result.Count)

	_, err = registry.Unregister(ctx, testIdentity, Selector{DeviceSlot: "   "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLookupCompactsDuplicateSlots(t *testing.T) {
	store := NewMemoryTokenStore()
	registry, _ := newTestRegistry(store)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AddEntries(ctx, testIdentity,
		models.TokenEntry{DeviceSlot: "A", Token: tokenOne, CreatedAt: base, UpdatedAt: base},
		models.TokenEntry{DeviceSlot: "A", Token: tokenTwo, CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)},
	))

	tokens, err := registry.Lookup(ctx, testIdentity, "")
	require.NoError(t, err)
	assert.Equal(t, []string{tokenTwo}, tokens)
}

func TestPruneLeavesOtherEntries(t *testing.T) {
	store := NewMemoryTokenStore()
	registry, _ := newTestRegistry(store)
	ctx := context.Background()
	_, _ = registry.Register(ctx, testIdentity, "A", tokenOne)
	_, _ = registry.Register(ctx, testIdentity, "B", tokenTwo)
	_, _ = registry.Register(ctx, testIdentity, "C", tokenThree)
	before, _ := store.Get(ctx, testIdentity)

	err := registry.Prune(ctx, testIdentity, map[string]struct{}{tokenTwo: {}})
	require.NoError(t, err)

	after, err := store.Get(ctx, testIdentity)
	require.NoError(t, err)
	require.Len(t, after.Tokens, 2)
	assert.True(t, models.SameEntry(before.Tokens[0], after.Tokens[0]))
	assert.True(t, models.SameEntry(before.Tokens[2], after.Tokens[1]))

	require.NoError(t, registry.Prune(ctx, testIdentity, map[string]struct{}{tokenOne: {}, tokenThree: {}}))
	_, err = store.Get(ctx, testIdentity)
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
}

func TestRemoveAll(t *testing.T) {
	store := NewMemoryTokenStore()
	registry, _ := newTestRegistry(store)
	ctx := context.Background()
	_, _ = registry.Register(ctx, testIdentity, "A", tokenOne)
	_, _ = registry.Register(ctx, testIdentity, "B", tokenTwo)

	count, err := registry.RemoveAll(ctx, testIdentity)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 0, store.Len())

	count, err = registry.RemoveAll(ctx, testIdentity)
	require.NoError(t, err)
	assert.Zero(t, count)
}
