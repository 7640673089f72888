package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"

	"card-czar/internal/config"
	"card-czar/internal/deck"
	"card-czar/internal/logging"
	"card-czar/internal/ws"
)

func newRouter(cfg config.ServerConfig, loader *deck.Loader, wsServer *ws.Server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(apiLogMiddleware()).Get("/healthz", healthHandler())
	r.With(apiLogMiddleware()).Get("/api/decks/{name}", deckHandler(loader))

	r.Get("/ws", wsServer.HandleWS)

	r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	return r
}

func apiLogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:  slog.LevelInfo,
			Schema: httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
					slog.String("path", req.URL.Path),
				}
			},
		},
	)
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

// deckHandler resolves a deck the same way init does, so a client can
// inspect what a given name or URL will produce.
func deckHandler(loader *deck.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()
		d := loader.Load(ctx, name)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"black": len(d.Black),
			"white": len(d.White),
			"deck":  d,
		})
	}
}
