package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/crease/adapter"
	"github.com/justapithecus/crease/adapter/redis"
	"github.com/justapithecus/crease/adapter/webhook"
	"github.com/justapithecus/crease/artifact"
	"github.com/justapithecus/crease/cli/config"
	storage "github.com/justapithecus/crease/lode"
	"github.com/justapithecus/crease/nhl"
	"github.com/justapithecus/crease/runtime"
	"github.com/justapithecus/crease/warehouse"
)

// defaultStorePath is the fs store root when neither flags nor config set one.
const defaultStorePath = ".crease"

// settings is the merged view of crease.yaml and command flags.
type settings struct {
	season          string
	tables          []string
	source          nhl.ClientConfig
	store           storage.StoreConfig
	warehouse       warehouse.Config
	createSchema    bool
	adapter         config.AdapterConfig
	metricsTextfile string
}

// loadSettings reads --config (if set) and applies flag overrides. Every
// returned error wraps runtime.ErrConfig.
func loadSettings(c *cli.Context) (*settings, error) {
	file := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", runtime.ErrConfig, err)
		}
		file = loaded
	}

	s := fromConfig(file)

	if c.IsSet("season") {
		s.season = c.String("season")
	}
	if c.IsSet("table") {
		s.tables = c.StringSlice("table")
	}
	overrideString(c, "store-backend", &s.store.Backend)
	overrideString(c, "store-path", &s.store.Path)
	overrideString(c, "store-s3-region", &s.store.Region)
	overrideString(c, "store-s3-endpoint", &s.store.Endpoint)
	overrideString(c, "base-url", &s.source.BaseURL)
	overrideString(c, "database-driver", &s.warehouse.Driver)
	overrideString(c, "database-url", &s.warehouse.URL)
	overrideString(c, "metrics-textfile", &s.metricsTextfile)
	if c.IsSet("create-schema") {
		s.createSchema = c.Bool("create-schema")
	}

	if s.store.Backend == "" {
		s.store.Backend = storage.BackendFS
	}
	if s.store.Backend == storage.BackendFS && s.store.Path == "" {
		s.store.Path = defaultStorePath
	}

	if s.season == "" {
		return nil, fmt.Errorf("%w: --season is required (or set season in the config file)", runtime.ErrConfig)
	}
	for _, t := range s.tables {
		if !nhl.IsTable(t) {
			return nil, fmt.Errorf("%w: %w %q", runtime.ErrConfig, nhl.ErrUnknownTable, t)
		}
	}
	if err := s.store.Validate(); err != nil {
		return nil, fmt.Errorf("%w: store: %w", runtime.ErrConfig, err)
	}
	return s, nil
}

func fromConfig(file *config.Config) *settings {
	s := &settings{
		season: file.Season,
		tables: file.Tables,
		source: nhl.ClientConfig{
			BaseURL: file.Source.BaseURL,
			Timeout: file.Source.Timeout.Duration,
			Retries: nhl.DefaultRetries,
			Backoff: file.Source.Backoff.Duration,
		},
		store: storage.StoreConfig{
			Backend:      file.Store.Backend,
			Path:         file.Store.Path,
			Region:       file.Store.Region,
			Endpoint:     file.Store.Endpoint,
			UsePathStyle: file.Store.S3PathStyle,
		},
		warehouse:       warehouse.DefaultConfig(),
		createSchema:    file.Warehouse.CreateSchema,
		adapter:         file.Adapter,
		metricsTextfile: file.Metrics.Textfile,
	}
	if file.Source.Retries != nil {
		s.source.Retries = *file.Source.Retries
	}
	w := file.Warehouse
	if w.Driver != "" {
		s.warehouse.Driver = w.Driver
	}
	s.warehouse.URL = w.URL
	setIfPositive(&s.warehouse.PingTimeout, w.PingTimeout.Duration)
	setIfPositive(&s.warehouse.ConnMaxLifetime, w.ConnMaxLifetime.Duration)
	if w.MaxOpenConns > 0 {
		s.warehouse.MaxOpenConns = w.MaxOpenConns
	}
	if w.MaxIdleConns > 0 {
		s.warehouse.MaxIdleConns = min(w.MaxIdleConns, s.warehouse.MaxOpenConns)
	}
	return s
}

func overrideString(c *cli.Context, flag string, dst *string) {
	if c.IsSet(flag) {
		*dst = c.String(flag)
	}
}

func setIfPositive(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// openStore opens the artifact store. The fs backend publishes with a
// rename on the local filesystem; other backends go through Lode with a
// commit marker.
func openStore(ctx context.Context, cfg storage.StoreConfig) (artifact.Store, error) {
	if cfg.Backend == storage.BackendFS {
		fs, err := artifact.NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
	store, err := storage.NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return artifact.NewObjectStore(store), nil
}

// buildAdapter creates the configured adapter, or nil when none is set.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := webhook.DefaultRetries
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "":
		if cfg.URL != "" {
			return nil, fmt.Errorf("%w: adapter url set without adapter type", runtime.ErrConfig)
		}
		return nil, nil
	case "webhook":
		a, err := webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", runtime.ErrConfig, err)
		}
		return a, nil
	case "redis":
		a, err := redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", runtime.ErrConfig, err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: unknown adapter type %q (want webhook or redis)", runtime.ErrConfig, cfg.Type)
	}
}
