package test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/escion333/autoUSD-sub000/internal/api"
	"github.com/escion333/autoUSD-sub000/internal/api/router"
	"github.com/escion333/autoUSD-sub000/internal/config"
	"github.com/escion333/autoUSD-sub000/internal/store"
)

var testDBCounter int64

// AdminToken and KeeperToken are the static bearer tokens wired into
// every test server config.
const (
	AdminToken  = "test-admin-token"
	KeeperToken = "test-keeper-token"
)

// DefaultTestConfig returns the service config adjusted for tests: a
// private in-memory database per call, auth tokens set and the metrics
// middleware disabled so parallel servers do not fight over the default
// prometheus registry.
func DefaultTestConfig() config.Server {
	cfg := config.DefaultServiceConfigFromEnv()

	n := atomic.AddInt64(&testDBCounter, 1)
	cfg.DB.Path = fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared", n)

	cfg.Auth.AdminToken = AdminToken
	cfg.Auth.KeeperToken = KeeperToken
	cfg.Echo.EnableMetricsMiddleware = false
	cfg.Echo.HideInternalServerErrorDetails = false

	return cfg
}

// WithTestServer creates a fully initialized server with a fresh
// in-memory database and passes it to closure, cleaning up afterwards.
func WithTestServer(t *testing.T, closure func(s *api.Server)) {
	t.Helper()
	WithTestServerConfigurable(t, DefaultTestConfig(), closure)
}

// WithTestServerConfigurable is WithTestServer with a caller-supplied
// config.
func WithTestServerConfigurable(t *testing.T, cfg config.Server, closure func(s *api.Server)) {
	t.Helper()

	ctx := context.Background()

	s := api.NewServer(cfg)
	require.NoError(t, api.InitComponents(ctx, s, prometheus.NewRegistry()))

	router.Init(s)

	defer func() {
		if errs := s.Shutdown(ctx); len(errs) > 0 {
			t.Errorf("failed to shutdown test server: %v", errs)
		}
	}()

	closure(s)
}

// WithTestStore creates a store backed by a fresh in-memory database and
// passes it to closure, cleaning up afterwards.
func WithTestStore(t *testing.T, closure func(st *store.Store)) {
	t.Helper()

	n := atomic.AddInt64(&testDBCounter, 1)

	st, err := store.Open(context.Background(), fmt.Sprintf("file:teststore_%d?mode=memory&cache=shared", n))
	require.NoError(t, err)

	defer func() {
		require.NoError(t, st.Close())
	}()

	closure(st)
}
