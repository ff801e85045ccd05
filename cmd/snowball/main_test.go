package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/snowball/internal/config"
)

// syncBuffer lets the watch callback and the test share one output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeRecords(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
	}
}

func testSettings() *config.Config {
	cfg := config.Default()
	cfg.DistanceFunction = "cosine"
	cfg.ClusterSize = 2
	cfg.ShowProgress = false
	return cfg
}

func TestRun_PrintsClusters(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir, map[string]string{
		"a.json": `{"vector": [1, 0], "title": "first"}`,
		"b.json": `{"vector": [1, 0]}`,
		"c.json": `{"vector": [0, 1]}`,
	})

	var out bytes.Buffer
	err := run(context.Background(), options{source: dir, threshold: 0.99, settings: testSettings()}, &out)
	require.NoError(t, err)

	var got struct {
		Shape            string                      `json:"shape"`
		DistanceFunction string                      `json:"distance_function"`
		Records          int                         `json:"records"`
		Clusters         map[string][]map[string]any `json:"clusters"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))

	assert.Equal(t, "external_source", got.Shape)
	assert.Equal(t, "cosine", got.DistanceFunction)
	assert.Equal(t, 3, got.Records)
	require.Len(t, got.Clusters, 1)
	members := got.Clusters["0"]
	require.Len(t, members, 2)
	assert.Equal(t, "a", members[0]["id"])
	assert.Equal(t, "first", members[0]["title"])
	assert.NotEmpty(t, members[0]["cluster_tag"])
	assert.Equal(t, "b", members[1]["id"])
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir, map[string]string{"a.json": `{"vector": [1, 0]}`})

	bad := testSettings()
	bad.DistanceFunction = "manhattan"

	tests := []struct {
		name string
		opts options
	}{
		{name: "invalid distance", opts: options{source: dir, settings: bad}},
		{name: "insufficient data", opts: options{source: dir, settings: testSettings()}},
		{name: "watch non-directory", opts: options{source: "sqlite://" + filepath.Join(dir, "x.db"), watch: true, settings: testSettings()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, run(context.Background(), tt.opts, &out))
			assert.Empty(t, out.String())
		})
	}
}

func TestRun_WatchReclusters(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir, map[string]string{
		"a.json": `{"vector": [1, 0]}`,
		"b.json": `{"vector": [0, 1]}`,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, options{source: dir, threshold: 0.99, watch: true, settings: testSettings()}, out)
	}()

	assert.Eventually(t, func() bool {
		return strings.Count(out.String(), `"shape"`) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Give the watcher time to register before changing the directory.
	time.Sleep(100 * time.Millisecond)
	writeRecords(t, dir, map[string]string{"c.json": `{"vector": [1, 0]}`})

	assert.Eventually(t, func() bool {
		return strings.Count(out.String(), `"shape"`) >= 2
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestWatchTarget(t *testing.T) {
	dir := t.TempDir()

	root, pattern, err := watchTarget(dir, "yaml")
	require.NoError(t, err)
	assert.Equal(t, dir, root)
	assert.Equal(t, "*.yaml", pattern)

	root, pattern, err = watchTarget(filepath.Join(dir, "emb_"), "json")
	require.NoError(t, err)
	assert.Equal(t, dir, root)
	assert.Equal(t, "emb_*.json", pattern)

	_, _, err = watchTarget("postgres://localhost/db", "json")
	assert.Error(t, err)
}

func TestMetricNames(t *testing.T) {
	assert.Equal(t, "l2, cosine", metricNames())
}
