package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchMarkets reloads markets.yaml on change and calls onUpdate with the latest config.
// It performs an initial load before entering the watch loop. Invalid edits are
// logged and the previous config stays in effect.
func WatchMarkets(ctx context.Context, path string, interval time.Duration, log zerolog.Logger, onUpdate func(*MarketsConfig)) error {
	if path == "" {
		path = "configs/markets.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := LoadMarketsConfig(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()
				cfg, err := LoadMarketsConfig(path)
				if err != nil {
					log.Error().Err(err).Str("path", path).Msg("markets config reload failed")
					continue
				}
				log.Info().Str("path", path).Str("summary", cfg.String()).Msg("markets config reloaded")
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
