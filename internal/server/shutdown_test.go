package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fmcg-dashboard/internal/config"
)

func testServerConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.ReadTimeout = time.Second
	cfg.Server.WriteTimeout = time.Second
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func startServer(t *testing.T, gs *GracefulServer) (context.CancelFunc, <-chan error, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()
	return cancel, done, "http://" + ln.Addr().String()
}

func TestGracefulServer_ServeAndShutdown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	httpServer := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})}
	gs := NewGracefulServer(httpServer, logger, testServerConfig())

	var hooks atomic.Int32
	for range 3 {
		gs.RegisterShutdownHook(func(ctx context.Context) error {
			hooks.Add(1)
			return nil
		})
	}

	cancel, done, base := startServer(t, gs)

	resp, err := http.Get(base + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, int32(3), hooks.Load())

	_, err = http.Get(base + "/")
	assert.Error(t, err, "listener should be closed")
}

func TestGracefulServer_HookError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gs := NewGracefulServer(&http.Server{Handler: http.NotFoundHandler()}, logger, testServerConfig())

	boom := errors.New("flush failed")
	gs.RegisterShutdownHook(func(ctx context.Context) error { return boom })

	cancel, done, _ := startServer(t, gs)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestGracefulServer_ListenError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gs := NewGracefulServer(&http.Server{Addr: "256.0.0.1:99999"}, logger, testServerConfig())

	err := gs.ListenAndServe(context.Background())
	assert.Error(t, err)
}
