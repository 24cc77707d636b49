package redis

import (
	"context"
	"testing"
	"time"

	"github.com/leadforge/sessionkit/internal/ports"
	"github.com/leadforge/sessionkit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_ReadWriteDelete(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	ctx := context.Background()
	backend := NewBackendWithPrefix(client, "sessionkit-test:")

	_, err := backend.Read(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	require.NoError(t, backend.Write(ctx, "k", []byte("v1")))
	got, err := backend.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, backend.Write(ctx, "k", []byte("v2")))
	got, err = backend.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, backend.Delete(ctx, "k"))
	_, err = backend.Read(ctx, "k")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestBackend_PrefixesKeys(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	ctx := context.Background()
	backend := NewBackendWithPrefix(client, "sessionkit-test:")

	require.NoError(t, backend.Write(ctx, "session", []byte("record")))

	raw, err := client.Get(ctx, "sessionkit-test:session").Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("record"), raw)
}

func TestBackend_StoresWithoutTTL(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	ctx := context.Background()
	backend := NewBackend(client)

	require.NoError(t, backend.Write(ctx, "session", []byte("record")))

	ttl, err := client.TTL(ctx, "sessionkit:session").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl, "session keys must not expire behind the manager's back")
}
