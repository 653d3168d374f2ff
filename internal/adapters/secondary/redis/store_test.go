package redis

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
)

// testAddr is the address of the Redis container shared by all tests.
var testAddr string

// TestMain starts a Redis container for the package.
func TestMain(m *testing.M) {
	ctx := context.Background()

	log.Println("Setting up Redis container...")
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("could not start redis container: %v", err)
	}

	testAddr, err = container.Endpoint(ctx, "")
	if err != nil {
		log.Fatalf("could not get redis endpoint: %v", err)
	}

	code := m.Run()

	if err := container.Terminate(ctx); err != nil {
		log.Printf("could not terminate redis container: %v", err)
	}
	os.Exit(code)
}

func newTestStore(t *testing.T, prefix string) *Store {
	t.Helper()
	store, err := Connect(context.Background(), Config{Addr: testAddr, KeyPrefix: prefix})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "test-getset:")

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "repair_cache", []byte(`{"data":[],"timestamp":1}`), 0))

	got, err := store.Get(ctx, "repair_cache")
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"timestamp":1}`, string(got))
}

func TestStore_KeyPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	a := newTestStore(t, "client-a:")
	b := newTestStore(t, "client-b:")

	require.NoError(t, a.Set(ctx, "status_filter", []byte("เสร็จสิ้น"), 0))

	_, err := b.Get(ctx, "status_filter")
	assert.ErrorIs(t, err, apperrors.ErrKeyNotFound)
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "test-ttl:")

	require.NoError(t, store.Set(ctx, "short", []byte("x"), time.Second))

	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, "short")
		return err == apperrors.ErrKeyNotFound
	}, 5*time.Second, 100*time.Millisecond)
}

func TestStore_Ping(t *testing.T) {
	store := newTestStore(t, "")
	assert.NoError(t, store.Ping(context.Background()))
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(context.Background(), Config{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
