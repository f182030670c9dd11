package server

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicechat/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRunServesAndShutsDown(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Mode:       "test",
		Port:       freePort(t),
		StaticPath: dir,
		Secret:     "test",
		Database:   config.DatabaseConfig{Path: filepath.Join(dir, "nested", "db.sqlite")},
		Blobs:      config.BlobsConfig{Path: filepath.Join(dir, "nested", "blobs.db")},
	}
	ctx, cancel := context.WithCancel(context.Background())
	s, err := New(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	url := "http://127.0.0.1" + s.srv.Addr + "/metrics"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
