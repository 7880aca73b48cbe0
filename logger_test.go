package hnswgo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	logger.WithDimension(4).LogInsert(ctx, 7, 4, nil)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "insert completed", entry["msg"])
	assert.Equal(t, float64(7), entry["id"])
	assert.Equal(t, float64(4), entry["dimension"])

	buf.Reset()
	logger.LogSearch(ctx, 3, 0, errors.New("boom"))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "search failed", entry["msg"])
	assert.Equal(t, "ERROR", entry["level"])

	buf.Reset()
	logger.LogSnapshot(ctx, "save", "snapshots/1.hnsw", nil)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "snapshot save completed", entry["msg"])
	assert.Equal(t, "snapshots/1.hnsw", entry["key"])
}

func TestNoopLogger(t *testing.T) {
	logger := NoopLogger()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
	logger.LogDelete(context.Background(), 1, errors.New("ignored"))
}
