package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/rootcause"
	"github.com/aretw0/rootcause/internal/config"
	"github.com/aretw0/rootcause/internal/logging"
	"github.com/aretw0/rootcause/pkg/adapters/file"
	"github.com/aretw0/rootcause/pkg/adapters/memory"
	redisstore "github.com/aretw0/rootcause/pkg/adapters/redis"
	"github.com/aretw0/rootcause/pkg/diagnosis"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/observability"
	"github.com/aretw0/rootcause/pkg/persistence/middleware"
	"github.com/aretw0/rootcause/pkg/ports"
	"github.com/aretw0/rootcause/pkg/results"
	"github.com/aretw0/rootcause/pkg/session"
	"github.com/aretw0/rootcause/pkg/trace"
)

// lockTTL bounds how long a record stays locked in a shared store.
const lockTTL = 30 * time.Second

type diagnosisEngine = rootcause.Engine[*trace.Invocation, *diagnosis.Report]

// app carries the configuration shared by the commands.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.Resolve(path), path != "")
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	logger := logging.New(level)
	if cfg.Log.Format == "json" {
		logger = logging.NewJSON(cmd.ErrOrStderr(), level)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

// engine builds the diagnosis engine. Extra hooks run after the log hooks.
func (a *app) engine(extra ...domain.LifecycleHooks) (*diagnosisEngine, error) {
	exhaustion, err := session.ParseExhaustionPolicy(a.cfg.Engine.Exhaustion)
	if err != nil {
		return nil, err
	}
	malformed, err := session.ParseMalformedInputPolicy(a.cfg.Engine.MalformedInputs)
	if err != nil {
		return nil, err
	}

	hooks := observability.LogHooks(a.logger)
	for _, h := range extra {
		hooks = hooks.Merge(h)
	}
	vars := diagnosis.DefaultVariables().Merge(domain.SessionVariables(a.cfg.Variables))

	return rootcause.New(diagnosis.Rules(), diagnosis.Collector(),
		rootcause.WithWorkers(a.cfg.Engine.Workers),
		rootcause.WithExhaustionPolicy(exhaustion),
		rootcause.WithMalformedInputPolicy(malformed),
		rootcause.WithLifecycleHooks(hooks),
		rootcause.WithLogger(a.logger),
		rootcause.WithDefaultVariables(vars),
		rootcause.WithTimeout(a.cfg.Engine.Timeout),
	)
}

// results opens the configured result store. The returned func releases it.
func (a *app) results(ctx context.Context) (*results.Manager, func() error, error) {
	rc := a.cfg.Results
	closer := func() error { return nil }
	opts := []results.Option{results.WithLogger(a.logger)}

	var store ports.ResultStore
	switch rc.Backend {
	case "redis":
		var redisOpts []redisstore.Option
		if rc.Redis.Prefix != "" {
			redisOpts = append(redisOpts, redisstore.WithPrefix(rc.Redis.Prefix))
		}
		if rc.Redis.TTL > 0 {
			redisOpts = append(redisOpts, redisstore.WithTTL(rc.Redis.TTL))
		}
		rs := redisstore.New(rc.Redis.Addr, rc.Redis.Password, rc.Redis.DB, redisOpts...)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("redis unavailable at %s: %w", rc.Redis.Addr, err)
		}
		store, closer = rs, rs.Close
		prefix := rc.Redis.Prefix
		if prefix == "" {
			prefix = redisstore.DefaultPrefix
		}
		opts = append(opts, results.WithLocker(redisstore.NewLocker(rs.Client(), prefix), lockTTL))
	case "file":
		store = file.New(rc.Dir)
	default:
		store = memory.NewStore()
	}

	var mws []middleware.Middleware
	if len(rc.Redact) > 0 {
		mw, err := middleware.NewRedactMiddleware(rc.Redact)
		if err != nil {
			_ = closer()
			return nil, nil, err
		}
		mws = append(mws, mw)
	}
	if rc.EncryptionKey != "" {
		key, err := middleware.ParseKey(rc.EncryptionKey)
		if err != nil {
			_ = closer()
			return nil, nil, fmt.Errorf("results.encryption_key: %w", err)
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			_ = closer()
			return nil, nil, err
		}
		mws = append(mws, mw)
	}

	return results.NewManager(middleware.Chain(store, mws...), opts...), closer, nil
}
