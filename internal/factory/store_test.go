package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/proxyman/pkg/proxyman"
)

func openMemoryStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadgerStore("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store := openMemoryStore(t)
	ctx := context.Background()

	missing, err := store.Load(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	def := &Definition{ProxyName: "ns.__PM__.Generatedabc.Store", GoName: "StoreLazyProxy", Kind: proxyman.KindLazy, Fingerprint: "f1"}
	require.NoError(t, store.Save(ctx, "k", def))

	loaded, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, def, loaded)

	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Delete(ctx, "k"))
	loaded, err = store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestBadgerStore_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenBadgerStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "k", &Definition{GoName: "X", Fingerprint: "f"}))
	require.NoError(t, store.Close())

	reopened, err := OpenBadgerStore(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	def, err := reopened.Load(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "X", def.GoName)
}

func TestFactory_PersistentStore(t *testing.T) {
	store := openMemoryStore(t)
	ctx := context.Background()

	first := newFactory(t, WithStore(store))
	generated, err := first.Definition(ctx, storeDescriptor(), proxyman.KindRemote, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Stats().Generated)

	second := newFactory(t, WithStore(store))
	loaded, err := second.Definition(ctx, storeDescriptor(), proxyman.KindRemote, nil)
	require.NoError(t, err)
	assert.Equal(t, generated, loaded)
	assert.Equal(t, Stats{StoreHits: 1}, second.Stats())

	// a changed API invalidates the stored entry
	changed := storeDescriptor()
	changed.Methods = changed.Methods[1:]
	third := newFactory(t, WithStore(store))
	regenerated, err := third.Definition(ctx, changed, proxyman.KindRemote, nil)
	require.NoError(t, err)
	assert.Len(t, regenerated.Methods, 3)
	assert.Equal(t, Stats{Generated: 1, Stale: 1}, third.Stats())

	fourth := newFactory(t, WithStore(store))
	again, err := fourth.Definition(ctx, changed, proxyman.KindRemote, nil)
	require.NoError(t, err)
	assert.Equal(t, regenerated, again)
	assert.Equal(t, Stats{StoreHits: 1}, fourth.Stats())
}
