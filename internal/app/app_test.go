package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfn-softbio/scibot-web/internal/config"
	"github.com/cfn-softbio/scibot-web/internal/log"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	cfg.DatabasePath = filepath.Join(t.TempDir(), "scibot.db")
	cfg.Responder.Command = "true"
	cfg.Responder.Args = nil
	return cfg
}

func TestNewAndRunShutsDown(t *testing.T) {
	cfg := testConfig(t)

	application, err := New(&cfg, log.Nop())
	require.NoError(t, err)
	require.NotNil(t, application.Service())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}
}

func TestNewRejectsUnknownResponder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Responder.Mode = "carrier-pigeon"

	_, err := New(&cfg, log.Nop())
	assert.Error(t, err)
}

func TestNewFailsOnBadDatabasePath(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabasePath = filepath.Join(t.TempDir(), "missing", "dir", "scibot.db")

	_, err := New(&cfg, log.Nop())
	assert.Error(t, err)
}

func TestServiceUsableWithoutServer(t *testing.T) {
	cfg := testConfig(t)

	application, err := New(&cfg, log.Nop())
	require.NoError(t, err)
	defer application.Close()

	entries, err := application.Service().History(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
