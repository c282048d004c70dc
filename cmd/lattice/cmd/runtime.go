package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/binding"
	"github.com/lattice-lang/lattice/internal/cache"
	"github.com/lattice-lang/lattice/internal/config"
	"github.com/lattice-lang/lattice/internal/datasource"
	"github.com/lattice-lang/lattice/internal/funcrt"
	"github.com/lattice-lang/lattice/internal/interp"
	"github.com/lattice-lang/lattice/internal/scheduler"
	"github.com/lattice-lang/lattice/internal/store"
	"github.com/lattice-lang/lattice/internal/transport"
)

// stack is the assembled runtime: every collaborator the interpreter
// needs, built from one Config and one application.
type stack struct {
	cache   cache.Cache
	vars    *store.Store
	base    *binding.Context
	sources *datasource.Registry
	in      *interp.Interpreter
	runtime *funcrt.Runtime
	sched   *scheduler.Scheduler
}

// buildStack wires the interpreter to its backends. The scheduler is
// only constructed when withWorkers is set; documents without jobs do
// not need a Redis connection.
func buildStack(ctx context.Context, cfg config.Config, app *ast.Application, withWorkers bool) (*stack, error) {
	resultCache, err := cache.New(cache.Config{
		Type:     cfg.Cache.Type,
		URL:      cfg.Cache.URL,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		MaxItems: cfg.Cache.MaxItems,
		Prefix:   cfg.Cache.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("building cache: %w", err)
	}

	var storeOpts []store.Option
	if cfg.Store.EncryptionKey != "" {
		storeOpts = append(storeOpts, store.WithEncryptionKey(cfg.Store.EncryptionKey))
	}
	vars := store.New(resultCache, storeOpts...)
	base := binding.NewContext(vars)

	sources, err := datasource.Open(ctx, app)
	if err != nil {
		resultCache.Close()
		return nil, fmt.Errorf("opening datasources: %w", err)
	}

	httpClient := transport.New(transport.Config{
		BaseURL:       cfg.Transport.BaseURL,
		Services:      cfg.Transport.Services,
		BearerTokens:  cfg.Transport.BearerTokens,
		BasicUser:     cfg.Transport.BasicUser,
		BasicPassword: cfg.Transport.BasicPassword,
		Timeout:       cfg.Transport.Timeout,
	})

	in := interp.New(
		interp.WithQueryRunner(sources),
		interp.WithTxRunner(sources),
		interp.WithLLMClient(datasource.NewLLMClient(sources, httpClient)),
		interp.WithSearcher(datasource.NewSearchClient(sources, httpClient)),
		interp.WithTransport(httpClient),
		interp.WithVarStore(vars),
	)
	runtime := funcrt.New(in, resultCache, funcrt.WithBaseContext(base))
	if err := runtime.LoadApplication(app); err != nil {
		sources.Close()
		resultCache.Close()
		return nil, err
	}

	s := &stack{
		cache:   resultCache,
		vars:    vars,
		base:    base,
		sources: sources,
		in:      in,
		runtime: runtime,
	}

	if withWorkers {
		s.sched = scheduler.New(scheduler.Config{
			RedisAddr:       cfg.Scheduler.RedisAddr,
			RedisPassword:   cfg.Scheduler.RedisPassword,
			RedisDB:         cfg.Scheduler.RedisDB,
			Concurrency:     cfg.Scheduler.Concurrency,
			Queues:          cfg.Scheduler.Queues,
			ShutdownTimeout: cfg.Scheduler.ShutdownTimeout,
		}, in, scheduler.WithBaseContext(base))
		if err := s.sched.LoadApplication(app); err != nil {
			s.Close()
			return nil, err
		}
		in.SetTaskSubmitter(s.sched)
	}
	return s, nil
}

// Close releases every backend, collecting errors.
func (s *stack) Close() error {
	var errs []error
	if s.sched != nil {
		errs = append(errs, s.sched.Close())
	}
	if s.sources != nil {
		errs = append(errs, s.sources.Close())
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	return errors.Join(errs...)
}

// parseArgs converts repeated key=value flags into a call argument map.
func parseArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", pair)
		}
		args[key] = value
	}
	return args, nil
}
