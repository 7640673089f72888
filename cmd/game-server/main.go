package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"card-czar/internal/config"
	"card-czar/internal/deck"
	"card-czar/internal/game"
	"card-czar/internal/logging"
	"card-czar/internal/ws"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	var catalog *deck.Catalog
	if cfg.Server.PostgresDSN != "" {
		catalog, err = deck.NewCatalog(context.Background(), cfg.Server.PostgresDSN)
		if err != nil {
			// Decks still resolve from files and the embedded default.
			log.Warn().Err(err).Msg("deck catalog unavailable")
			catalog = nil
		}
	}
	loader := deck.NewLoader(cfg.Server.DeckDir, catalog)

	wsServer := ws.NewServer(loader, game.Config{
		DisconnectGrace: cfg.Server.DisconnectGrace,
		IdleTimeout:     cfg.Server.IdleTimeout,
		WinnerDelay:     cfg.Server.WinnerDelay,
	})

	r := newRouter(cfg.Server, loader, wsServer)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
