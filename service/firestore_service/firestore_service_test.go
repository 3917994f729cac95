package firestore_service

import (
	"context"
	"fleet-push-service/models"
	"fleet-push-service/service/push_service"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmulatorService connects to the Firestore emulator; tests skip without one.
func newEmulatorService(t *testing.T) *FirestoreService {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "demo-fleet-push")
	require.NoError(t, err)
	collection := fmt.Sprintf("tokens-test-%d", time.Now().UnixNano())
	fs := NewFirestoreServiceWithClient(client, collection, nil)
	t.Cleanup(func() { _ = fs.Close() })
	return fs
}

func TestFirestoreRegistryFlow(t *testing.T) {
	fs := newEmulatorService(t)
	ctx := context.Background()
	registry := push_service.NewRegistry(fs, 5*time.Second, nil)

	result, err := registry.Register(ctx, "a@b.com", "phone", "tok-1234567890")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationInserted, result.Outcome)

	result, err = registry.Register(ctx, "a@b.com", "tablet", "tok-abcdefghij")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationInserted, result.Outcome)

	result, err = registry.Register(ctx, "a@b.com", "phone", "tok-1234567890")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationUnchanged, result.Outcome)

	tokens, err := registry.Lookup(ctx, "a@b.com", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tok-1234567890", "tok-abcdefghij"}, tokens)

	require.NoError(t, registry.Prune(ctx, "a@b.com", map[string]struct{}{"tok-abcdefghij": {}}))
	tokens, err = registry.Lookup(ctx, "a@b.com", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1234567890"}, tokens)

	removed, err := registry.Unregister(ctx, "a@b.com", push_service.Selector{DeviceSlot: "phone"})
	require.NoError(t, err)
	assert.True(t, removed.Removed)

	_, err = fs.Get(ctx, "a@b.com")
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
}

func TestFirestoreLegacyDocument(t *testing.T) {
	fs := newEmulatorService(t)
	ctx := context.Background()

	_, err := fs.doc("old@b.com").Set(ctx, map[string]interface{}{
		models.FieldTokens: []interface{}{"tok-1234567890", "tok-abcdefghij"},
	})
	require.NoError(t, err)

	record, err := fs.Get(ctx, "old@b.com")
	require.NoError(t, err)
	assert.True(t, record.Legacy)
	assert.Equal(t, []string{"tok-1234567890", "tok-abcdefghij"}, record.TokenValues())

	registry := push_service.NewRegistry(fs, 5*time.Second, nil)
	_, err = registry.Register(ctx, "old@b.com", "phone", "tok-zyxwvutsrq")
	require.NoError(t, err)

	record, err = fs.Get(ctx, "old@b.com")
	require.NoError(t, err)
	assert.False(t, record.Legacy)
	assert.Len(t, record.Tokens, 3)
}
