package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tinygems/tinygems/internal/cache"
	"github.com/tinygems/tinygems/internal/config"
	"github.com/tinygems/tinygems/internal/provider"
	"github.com/tinygems/tinygems/internal/provider/applemusic"
	"github.com/tinygems/tinygems/internal/provider/bandcamp"
	"github.com/tinygems/tinygems/internal/provider/soundcloud"
	"github.com/tinygems/tinygems/internal/provider/spotify"
	"github.com/tinygems/tinygems/internal/provider/tidal"
	"github.com/tinygems/tinygems/internal/provider/youtube"
)

// buildRegistry registers an adapter for every platform whose credentials
// are configured. Platforms without them are skipped.
func buildRegistry(cfg *config.Config, logger *slog.Logger) *provider.Registry {
	limiter := provider.NewRateLimiterMap()
	reg := provider.NewRegistry()
	pc := cfg.Platforms

	for _, p := range provider.AllPlatforms() {
		if !pc.Enabled(p) {
			if p != provider.Other {
				logger.Info("platform disabled: no credentials configured", slog.String("platform", string(p)))
			}
			continue
		}
		switch p {
		case provider.Spotify:
			reg.Register(spotify.New(limiter, spotify.Credentials{
				ClientID:     pc.Spotify.ClientID,
				ClientSecret: pc.Spotify.ClientSecret,
			}, logger))
		case provider.SoundCloud:
			reg.Register(soundcloud.New(limiter, pc.SoundCloud.ClientID, logger))
		case provider.YouTube:
			reg.Register(youtube.New(limiter, pc.YouTube.APIKey, logger))
		case provider.Bandcamp:
			reg.Register(bandcamp.New(limiter, logger))
		case provider.Tidal:
			reg.Register(tidal.New(limiter, tidal.Config{
				ClientID:     pc.Tidal.ClientID,
				ClientSecret: pc.Tidal.ClientSecret,
				CountryCode:  pc.Tidal.CountryCode,
			}, logger))
		case provider.AppleMusic:
			reg.Register(applemusic.New(limiter, pc.AppleMusic.Country, logger))
		}
	}
	return reg
}

// buildCoordinator wires the search coordinator, adding the Redis cache when
// an address is configured. The returned cleanup closes the Redis client.
func buildCoordinator(ctx context.Context, cfg *config.Config, reg *provider.Registry, logger *slog.Logger) (*provider.Coordinator, func(), error) {
	opts := []provider.CoordinatorOption{provider.WithPlatformTimeout(cfg.Search.PlatformTimeout)}
	cleanup := func() {}

	if cfg.Cache.RedisAddr != "" {
		client, err := cache.Connect(ctx, cache.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting search cache: %w", err)
		}
		cleanup = func() { _ = client.Close() }
		opts = append(opts, provider.WithSearchCache(cache.New(client, cfg.Cache.TTL)))
		logger.Info("search cache enabled",
			slog.String("addr", cfg.Cache.RedisAddr),
			slog.Duration("ttl", cfg.Cache.TTL))
	}
	return provider.NewCoordinator(reg, logger, opts...), cleanup, nil
}
