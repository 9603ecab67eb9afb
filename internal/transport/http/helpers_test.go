package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cfn-softbio/scibot-web/internal/chat"
	"github.com/cfn-softbio/scibot-web/internal/config"
	"github.com/cfn-softbio/scibot-web/internal/metrics"
	"github.com/cfn-softbio/scibot-web/internal/responder"
	"github.com/cfn-softbio/scibot-web/internal/store"
	"github.com/cfn-softbio/scibot-web/internal/store/sqlite"
)

type responderFunc func(ctx context.Context, req responder.Request) (responder.Reply, error)

func (f responderFunc) Respond(ctx context.Context, req responder.Request) (responder.Reply, error) {
	return f(ctx, req)
}

func echoResponder() responder.Responder {
	return responderFunc(func(_ context.Context, req responder.Request) (responder.Reply, error) {
		return responder.Reply{Content: "echo: " + req.Message}, nil
	})
}

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return st
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.Relay.RateLimitPerMinute = 0
	return cfg
}

// createTestService wires a chat service over a fresh store.
func createTestService(t *testing.T, st store.Store, resp responder.Responder, m *metrics.Metrics, cfg *config.Config) *chat.Service {
	t.Helper()

	disabledLogger := zerolog.New(nil)
	return chat.NewService(st, resp, chat.Config{
		BotName:          cfg.BotName,
		HistoryLimit:     cfg.HistoryLimit,
		ResponderTimeout: cfg.Responder.Timeout,
		SerializeThreads: cfg.Relay.SerializeThreads,
	}, m, &disabledLogger)
}

type testEnv struct {
	store   store.Store
	service *chat.Service
	metrics *metrics.Metrics
	cfg     config.Config
}

func newTestEnv(t *testing.T, resp responder.Responder, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	st := createTestStore(t)
	m := metrics.New()
	return &testEnv{
		store:   st,
		service: createTestService(t, st, resp, m, &cfg),
		metrics: m,
		cfg:     cfg,
	}
}

func (e *testEnv) router() http.Handler {
	disabledLogger := zerolog.New(nil)
	return NewHandler(e.service, e.metrics, &e.cfg, &disabledLogger)
}
