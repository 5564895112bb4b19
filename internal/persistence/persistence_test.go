package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahnlich/ahnlich-db/internal/metadata"
	"github.com/ahnlich/ahnlich-db/internal/protocol"
	"github.com/ahnlich/ahnlich-db/internal/storehandler"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.ahnlich")

	h := storehandler.New(nil, 0)
	require.NoError(t, h.CreateStore("s", 2, nil, true))
	store, err := h.Get("s")
	require.NoError(t, err)
	_, _, err = store.Set([]protocol.Record{
		{Vector: []float32{1, 0}, Metadata: metadata.Map{"tag": metadata.Text("a")}},
	})
	require.NoError(t, err)

	sn := New(h, path, time.Hour, nil)
	h.MarkDirty()
	require.NoError(t, sn.snapshotOnce())

	h2 := storehandler.New(nil, 0)
	sn2 := New(h2, path, time.Hour, nil)
	loaded, err := sn2.LoadIfExists()
	require.NoError(t, err)
	assert.True(t, loaded)

	restored, err := h2.Get("s")
	require.NoError(t, err)
	got, err := restored.GetKey([][]float32{{1, 0}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, metadata.Text("a"), got[0].Metadata["tag"])
}

func TestSnapshotterTicksOnDirtyFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.ahnlich")

	h := storehandler.New(nil, 0)
	require.NoError(t, h.CreateStore("s", 2, nil, true))
	h.TakeDirty()

	sn := New(h, path, 20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	sn.Start(ctx)

	h.MarkDirty()
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	sn.Stop()
}
