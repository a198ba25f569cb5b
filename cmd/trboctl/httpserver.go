package main

import (
	"context"
	"net"
	"net/http"
	"time"
)

// httpServer is a minimal graceful-shutdown HTTP server, matching the
// net.Listen + context-cancellation shutdown pattern pkg/metrics.PrometheusServer
// uses, reused here for progresshub.Hub's WebSocket handler.
type httpServer struct {
	addr    string
	handler http.Handler
}

func (s *httpServer) serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	server := &http.Server{Handler: s.handler}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
