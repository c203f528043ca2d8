package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"traitforge/internal/blob"
	"traitforge/internal/compose"
	"traitforge/internal/config"
	"traitforge/internal/ledger"
	"traitforge/internal/listing"
	"traitforge/internal/mint"
	"traitforge/internal/observability"
	"traitforge/internal/pkg/clock"
	"traitforge/internal/random"
	"traitforge/internal/render"
	"traitforge/internal/traits"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	store    blob.Store
	cache    listing.Cache
	ledger   ledger.Store
	gen      *mint.Generator
	closers  []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.metrics = observability.NewMetrics(a.registry)

	if a.store, err = blob.Open(ctx, cfg.BlobOptions()); err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	if a.cache, err = a.openCache(); err != nil {
		a.close()
		return nil, err
	}
	rules := traits.DefaultRules()
	if cfg.RulesPath != "" {
		if rules, err = traits.LoadRules(cfg.RulesPath); err != nil {
			a.close()
			return nil, err
		}
	}
	if a.ledger, err = ledger.Open(ctx, cfg.LedgerOptions()); err != nil {
		a.close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a.closers = append(a.closers, func() error { return ledger.Close(a.ledger) })

	lister := listing.NewLister(a.store, listing.Options{Cache: a.cache, Logger: logger, Metrics: a.metrics})
	planner, err := compose.NewPlanner(compose.Config{
		Lister:  lister,
		Rules:   rules,
		Policy:  cfg.Policy(),
		Clock:   clock.New(),
		Logger:  logger,
		Metrics: a.metrics,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.gen, err = mint.New(mint.Config{
		Planner:  planner,
		Renderer: render.NewCompositor(a.store, render.Options{Concurrency: cfg.Concurrency, Logger: logger, Metrics: a.metrics}),
		Ledger:   a.ledger,
		Logger:   logger,
		Metrics:  a.metrics,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) openCache() (listing.Cache, error) {
	switch a.cfg.CacheDriver {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		a.closers = append(a.closers, client.Close)
		return listing.NewRedisCache(client, a.cfg.CacheTTL)
	default:
		return listing.NewMemoryCache(a.cfg.CacheTTL, clock.New()), nil
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}

// tokenFlags are the generation inputs shared by several subcommands.
type tokenFlags struct {
	guild  string
	gender string
	seed   string
	hex    string
}

func (f *tokenFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.guild, "guild", "", "guild name (unknown or empty uses General)")
	cmd.Flags().StringVar(&f.gender, "gender", "", "Male or Female (empty draws one from the seed)")
	cmd.Flags().StringVar(&f.seed, "seed", "", "seed; digits are decimal, other text is hex (empty uses the clock)")
	cmd.Flags().StringVar(&f.hex, "seed-hex", "", "seed as hex text, first 8 characters")
	cmd.MarkFlagsMutuallyExclusive("seed", "seed-hex")
}

func (f *tokenFlags) options() (mint.Options, error) {
	opts := mint.Options{Guild: f.guild, Gender: f.gender}
	if f.hex != "" {
		seed, err := random.HexSeed(f.hex)
		if err != nil {
			return mint.Options{}, err
		}
		opts.Seed = seed
	} else if f.seed != "" {
		seed, err := random.ParseSeed(f.seed)
		if err != nil {
			return mint.Options{}, err
		}
		opts.Seed = seed
	}
	return opts, nil
}

func parseTokenID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("token id must be a non-negative integer, got %q", raw)
	}
	return id, nil
}
