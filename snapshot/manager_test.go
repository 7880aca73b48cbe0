package snapshot

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hupe1980/hnswgo"
	"github.com/hupe1980/hnswgo/blobstore"
	"github.com/hupe1980/hnswgo/persistence"
	"github.com/hupe1980/hnswgo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T, n int) *hnswgo.Index {
	t.Helper()

	seed := uint64(7)
	cfg := hnswgo.DefaultConfig(8)
	cfg.Seed = &seed

	idx, err := hnswgo.NewIndex(cfg)
	require.NoError(t, err)

	vecs := testutil.NewRNG(1).UniformVectors(n, 8)
	require.NoError(t, idx.InsertBatch(context.Background(), nil, vecs))

	return idx
}

func TestKey(t *testing.T) {
	key := Key(42)
	assert.Equal(t, "snapshots/00000000000000000042.hnsw", key)

	seq, ok := ParseKey(key)
	require.True(t, ok)
	assert.Equal(t, uint64(42), seq)

	for _, bad := range []string{"CURRENT", "snapshots/x.hnsw", "snapshots/1.bin", "other/1.hnsw"} {
		_, ok := ParseKey(bad)
		assert.False(t, ok, bad)
	}
}

func TestManager_SaveLoad(t *testing.T) {
	ctx := context.Background()

	for _, c := range []persistence.Compression{persistence.CompressionNone, persistence.CompressionLZ4, persistence.CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			idx := newIndex(t, 100)
			require.NoError(t, idx.Delete(ctx, 3))

			mgr := NewManager(blobstore.NewMemoryStore())
			mgr.Compression = c

			info, err := mgr.Save(ctx, idx)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), info.Seq)
			assert.Equal(t, Key(1), info.Key)
			assert.Positive(t, info.Size)

			restored, err := mgr.Load(ctx)
			require.NoError(t, err)

			assert.Equal(t, idx.Count(), restored.Count())
			assert.Equal(t, idx.LiveCount(), restored.LiveCount())
			assert.False(t, restored.Contains(3))

			want, err := idx.Serialize()
			require.NoError(t, err)
			got, err := restored.Serialize()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestManager_LoadEmpty(t *testing.T) {
	mgr := NewManager(blobstore.NewMemoryStore())

	_, err := mgr.Load(context.Background())
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestManager_SequenceAndCurrent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocalStore(t.TempDir())
	mgr := NewManager(store)

	idx := newIndex(t, 10)
	for i := 1; i <= 3; i++ {
		info, err := mgr.Save(ctx, idx)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), info.Seq)
		require.NoError(t, idx.Insert(ctx, uint64(100+i), make([]float32, 8)))
	}

	current, err := mgr.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, Key(3), current)

	infos, err := mgr.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	for i, info := range infos {
		assert.Equal(t, uint64(i+1), info.Seq)
	}

	// The third snapshot was taken after two extra inserts.
	restored, err := mgr.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, restored.Count())

	first, err := mgr.LoadKey(ctx, Key(1))
	require.NoError(t, err)
	assert.Equal(t, 10, first.Count())
}

func TestManager_Prune(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	mgr := NewManager(store)
	idx := newIndex(t, 5)

	for range 5 {
		_, err := mgr.Save(ctx, idx)
		require.NoError(t, err)
	}

	_, err := mgr.Prune(ctx, 0)
	require.ErrorIs(t, err, ErrInvalidKeep)

	deleted, err := mgr.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	infos, err := mgr.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, uint64(4), infos[0].Seq)
	assert.Equal(t, uint64(5), infos[1].Seq)

	// Sequence numbers keep increasing after a prune.
	info, err := mgr.Save(ctx, idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), info.Seq)
}

func TestManager_PruneKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	mgr := NewManager(store)
	idx := newIndex(t, 5)

	for range 3 {
		_, err := mgr.Save(ctx, idx)
		require.NoError(t, err)
	}

	// Roll CURRENT back to the oldest snapshot.
	require.NoError(t, store.Put(ctx, CurrentName, []byte(Key(1))))

	deleted, err := mgr.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.Get(ctx, Key(1))
	require.NoError(t, err)
	_, err = store.Get(ctx, Key(2))
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestManager_CorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	mgr := NewManager(store)

	_, err := mgr.Save(ctx, newIndex(t, 5))
	require.NoError(t, err)

	data, err := store.Get(ctx, Key(1))
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, store.Put(ctx, Key(1), data))

	_, err = mgr.Load(ctx)
	require.ErrorIs(t, err, hnswgo.ErrCorruptSnapshot)
}

type failingStore struct {
	*blobstore.MemoryStore
	failPut string
}

func (f *failingStore) Put(ctx context.Context, name string, data []byte) error {
	if name == f.failPut {
		return errors.New("disk full")
	}
	return f.MemoryStore.Put(ctx, name, data)
}

func TestManager_FailedCommitKeepsPreviousCurrent(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: blobstore.NewMemoryStore()}
	mgr := NewManager(store)
	idx := newIndex(t, 5)

	_, err := mgr.Save(ctx, idx)
	require.NoError(t, err)

	store.failPut = Key(2)
	_, err = mgr.Save(ctx, idx)
	require.Error(t, err)

	current, err := mgr.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, Key(1), current)
}

func TestManager_WithControllerAndLogger(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	mgr := NewManager(blobstore.NewMemoryStore())
	mgr.Logger = hnswgo.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mgr.Controller = hnswgo.NewResourceController(hnswgo.ResourceConfig{
		IOLimitBytesPerSec: 1 << 30,
	})

	idx := newIndex(t, 20)
	_, err := mgr.Save(ctx, idx)
	require.NoError(t, err)

	_, err = mgr.Load(ctx, hnswgo.WithResourceController(mgr.Controller))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "snapshot save completed")
	assert.Contains(t, buf.String(), "snapshot load completed")
}

func TestManager_IOLimitCoversStoreTransfers(t *testing.T) {
	store := blobstore.NewMemoryStore()
	idx := newIndex(t, 20)

	slow := hnswgo.NewResourceController(hnswgo.ResourceConfig{IOLimitBytesPerSec: 16})

	mgr := NewManager(store)
	mgr.Compression = persistence.CompressionNone
	mgr.Controller = slow

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// 20 vectors of 8 floats cannot be written at 16 B/s before the deadline.
	_, err := mgr.Save(ctx, idx)
	require.ErrorContains(t, err, "write "+Key(1))

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)

	mgr.Controller = nil
	info, err := mgr.Save(context.Background(), idx)
	require.NoError(t, err)

	mgr.Controller = slow
	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = mgr.LoadKey(ctx, info.Key)
	require.ErrorContains(t, err, "read "+info.Key)
}

func TestManager_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mgr := NewManager(blobstore.NewMemoryStore())
	mgr.Controller = hnswgo.NewResourceController(hnswgo.ResourceConfig{})

	_, err := mgr.Save(ctx, newIndex(t, 3))
	require.ErrorIs(t, err, context.Canceled)
}
