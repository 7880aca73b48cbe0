package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/hnswgo"
	"github.com/hupe1980/hnswgo/blobstore"
	"github.com/hupe1980/hnswgo/internal/resource"
	"github.com/hupe1980/hnswgo/persistence"
)

const (
	// CurrentName is the pointer blob holding the key of the latest snapshot.
	CurrentName = "CURRENT"
	// Prefix is the directory snapshot blobs are written to.
	Prefix = "snapshots/"
	// Extension is the file suffix of snapshot blobs.
	Extension = ".hnsw"
)

var (
	// ErrNoSnapshot is returned by Load when no snapshot has been committed.
	ErrNoSnapshot = errors.New("snapshot: no current snapshot")
	// ErrInvalidKeep is returned by Prune when keep is less than one.
	ErrInvalidKeep = errors.New("snapshot: keep must be at least 1")
)

// Info describes a stored snapshot.
type Info struct {
	Key  string
	Seq  uint64
	Size int
}

// Manager saves and loads index snapshots.
// Store is required; the other fields are optional.
type Manager struct {
	Store       blobstore.Store
	Compression persistence.Compression
	// Controller bounds concurrent jobs and the bytes moved to and from Store.
	Controller  *hnswgo.ResourceController
	Logger      *hnswgo.Logger

	mu sync.Mutex
}

// NewManager creates a Manager with ZSTD compression and no logging.
func NewManager(store blobstore.Store) *Manager {
	return &Manager{
		Store:       store,
		Compression: persistence.CompressionZSTD,
		Logger:      hnswgo.NoopLogger(),
	}
}

// Key returns the blob key of snapshot seq.
func Key(seq uint64) string {
	return fmt.Sprintf("%s%020d%s", Prefix, seq, Extension)
}

// ParseKey extracts the sequence number from a snapshot key.
func ParseKey(key string) (uint64, bool) {
	if !strings.HasPrefix(key, Prefix) || !strings.HasSuffix(key, Extension) {
		return 0, false
	}
	seq, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(key, Prefix), Extension), 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// blobs charges snapshot transfers against the controller's IO limit.
func (m *Manager) blobs() *resource.RateLimitedBlobs {
	return resource.NewRateLimitedBlobs(m.Store, m.Controller)
}

func (m *Manager) logger() *hnswgo.Logger {
	if m.Logger == nil {
		return hnswgo.NoopLogger()
	}
	return m.Logger
}

// Save serializes idx into a new snapshot blob and commits it as CURRENT.
func (m *Manager) Save(ctx context.Context, idx *hnswgo.Index) (info Info, err error) {
	defer func() { m.logger().LogSnapshot(ctx, "save", info.Key, err) }()

	if err := m.Controller.AcquireBackground(ctx); err != nil {
		return Info{}, err
	}
	defer m.Controller.ReleaseBackground()

	m.mu.Lock()
	defer m.mu.Unlock()

	latest, err := m.latestSeq(ctx)
	if err != nil {
		return Info{}, err
	}

	info.Seq = latest + 1
	info.Key = Key(info.Seq)

	var buf bytes.Buffer
	if err := idx.Encode(&buf, m.Compression); err != nil {
		return info, fmt.Errorf("snapshot: encode: %w", err)
	}
	info.Size = buf.Len()

	if err := m.blobs().Put(ctx, info.Key, buf.Bytes()); err != nil {
		return info, fmt.Errorf("snapshot: write %s: %w", info.Key, err)
	}

	if err := m.Store.Put(ctx, CurrentName, []byte(info.Key)); err != nil {
		return info, fmt.Errorf("snapshot: commit %s: %w", info.Key, err)
	}

	return info, nil
}

// Current returns the key CURRENT points at.
func (m *Manager) Current(ctx context.Context) (string, error) {
	data, err := m.Store.Get(ctx, CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return "", ErrNoSnapshot
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Load restores the snapshot CURRENT points at.
func (m *Manager) Load(ctx context.Context, optFns ...hnswgo.Option) (*hnswgo.Index, error) {
	key, err := m.Current(ctx)
	if err != nil {
		m.logger().LogSnapshot(ctx, "load", CurrentName, err)
		return nil, err
	}
	return m.LoadKey(ctx, key, optFns...)
}

// LoadKey restores a specific snapshot.
func (m *Manager) LoadKey(ctx context.Context, key string, optFns ...hnswgo.Option) (idx *hnswgo.Index, err error) {
	defer func() { m.logger().LogSnapshot(ctx, "load", key, err) }()

	if err := m.Controller.AcquireBackground(ctx); err != nil {
		return nil, err
	}
	defer m.Controller.ReleaseBackground()

	data, err := m.blobs().Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", key, err)
	}

	return hnswgo.ReadIndex(bytes.NewReader(data), optFns...)
}

// List returns the stored snapshots in ascending sequence order.
// Blobs under Prefix that do not parse as snapshot keys are skipped.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	names, err := m.Store.List(ctx, Prefix)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(names))
	for _, name := range names {
		if seq, ok := ParseKey(name); ok {
			infos = append(infos, Info{Key: name, Seq: seq})
		}
	}

	// Keys are zero padded, so the store's lexical order is sequence order.
	return infos, nil
}

// Prune deletes all but the newest keep snapshots and returns the number
// deleted. The snapshot CURRENT points at is never deleted.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		return 0, ErrInvalidKeep
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	infos, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	current, err := m.Current(ctx)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return 0, err
	}

	deleted := 0
	for _, info := range infos[:max(0, len(infos)-keep)] {
		if info.Key == current {
			continue
		}
		if err := m.Store.Delete(ctx, info.Key); err != nil {
			return deleted, fmt.Errorf("snapshot: delete %s: %w", info.Key, err)
		}
		deleted++
	}

	m.logger().InfoContext(ctx, "snapshot prune completed", "kept", len(infos)-deleted, "deleted", deleted)

	return deleted, nil
}

func (m *Manager) latestSeq(ctx context.Context) (uint64, error) {
	infos, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(infos) == 0 {
		return 0, nil
	}
	return infos[len(infos)-1].Seq, nil
}
