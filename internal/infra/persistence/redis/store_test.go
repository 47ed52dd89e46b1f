package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanctioncore/internal/infra/persistence/storetest"
	"sanctioncore/pkg/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return NewFromClient(client, "test:"), mr
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.PersistentStore {
		store, _ := newTestStore(t)
		return store
	})
}

func TestKeysAreNamespaced(t *testing.T) {
	store, mr := newTestStore(t)
	_, err := store.CreateSanction(context.Background(), storetest.Fixture("k", 0))
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:sanction:k"))
	members, err := mr.ZMembers("test:sanctions")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, members)
	assert.Equal(t, "1", mr.HGet("test:sanction:k", "version"))
}

func TestListSkipsDanglingIndexEntries(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	_, err := store.CreateSanction(ctx, storetest.Fixture("live", 0))
	require.NoError(t, err)
	_, err = mr.ZAdd("test:sanctions", 1, "dangling")
	require.NoError(t, err)

	page, err := store.ListSanctions(ctx, domain.SanctionQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "live", page.Items[0].ID)
}

func TestNewStoreDialsAndPings(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewStore(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	assert.Equal(t, DefaultPrefix, store.prefix)

	_, err = NewStore(context.Background(), Options{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
