package app

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-dispatch/internal/logx"
	testlog "service-dispatch/internal/testutil"
)

func TestGracefulShutdown_DoesNotPanic(t *testing.T) {
	t.Parallel()

	srv := &http.Server{
		Addr:    "127.0.0.1:0",
		Handler: http.NewServeMux(),
	}

	require.NotPanics(t, func() {
		gracefulShutdown(srv, logx.Nop(), 100*time.Millisecond)
	})
}

func TestWaitForShutdown_ReturnsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	rec := testlog.New()
	go func() {
		waitForShutdown(ctx, rec.Logger())
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitForShutdown did not return after cancel")
	}
}

func TestStartServer_ServesUntilShutdown(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: mux}

	// bind explicitly so the port is known before the goroutine starts
	ln, err := net.Listen("tcp", srv.Addr)
	require.NoError(t, err)
	srv.Addr = ln.Addr().String()

	go func() {
		_ = srv.Serve(ln)
	}()
	t.Cleanup(func() { _ = srv.Close() })

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + srv.Addr + "/ping")
		return err == nil
	}, time.Second, 10*time.Millisecond)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	gracefulShutdown(srv, logx.Nop(), time.Second)

	_, err = http.Get("http://" + srv.Addr + "/ping")
	require.Error(t, err)
}
