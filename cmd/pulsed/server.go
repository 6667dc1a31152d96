package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// httpServer wraps net/http.Server so the control API can be shut down
// gracefully alongside the pipeline, instead of outliving it.
type httpServer struct {
	addr   string
	router http.Handler
	srv    *http.Server
}

func (h *httpServer) run() {
	h.srv = &http.Server{Addr: h.addr, Handler: h.router}
	if err := h.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("pulsed: control API stopped", "error", err)
	}
}

func (h *httpServer) close(ctx context.Context) error {
	if h.srv == nil {
		return nil
	}
	return h.srv.Shutdown(ctx)
}
