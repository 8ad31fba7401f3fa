package httpserver

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwaledger/internal/platform/config"
)

func TestNewAppliesDefaults(t *testing.T) {
	s := New(config.Server{Addr: ":0", RequestTimeout: 10 * time.Second}, http.NotFoundHandler())
	assert.Equal(t, 5*time.Second, s.srv.ReadHeaderTimeout)
	assert.Equal(t, 15*time.Second, s.srv.WriteTimeout)
	assert.Equal(t, 10*time.Second, s.shutdownTimeout)
}

func TestRunStopsWhenContextIsCancelled(t *testing.T) {
	s := New(config.Server{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}
