// Package datasource opens the drivers an application declares and
// routes queries, transactions, generation, and search to them.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/interp"
	"github.com/lattice-lang/lattice/pkg/logging"
	"github.com/lattice-lang/lattice/pkg/metrics"
)

// Driver executes statements against one configured datasource.
type Driver interface {
	Query(ctx context.Context, stmt string, params map[string]any) ([]map[string]any, error)
	Tx(ctx context.Context, isolation string, fn func(Driver) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Registry holds the open drivers. It satisfies the interpreter's query
// and transaction runner interfaces.
type Registry struct {
	drivers map[string]Driver
	meta    map[string]*ast.Datasource
	log     *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithDriver installs a prebuilt driver, overriding the URL-based one.
func WithDriver(name string, d Driver) Option {
	return func(r *Registry) { r.drivers[name] = d }
}

// Open connects every SQL and document datasource the application
// declares. LLM and search datasources carry no driver; their metadata
// feeds the HTTP providers.
func Open(ctx context.Context, app *ast.Application, opts ...Option) (*Registry, error) {
	r := &Registry{
		drivers: make(map[string]Driver),
		meta:    make(map[string]*ast.Datasource),
		log:     logging.ModuleLogger("datasource"),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, ds := range app.Datasources {
		r.meta[ds.Name] = ds
		if _, preset := r.drivers[ds.Name]; preset {
			continue
		}
		var (
			driver Driver
			err    error
		)
		switch ds.DSKind {
		case ast.DatasourcePostgres:
			driver, err = NewPostgresDriver(ds.URL)
		case ast.DatasourceSQLite:
			driver, err = NewSQLiteDriver(ds.URL)
		case ast.DatasourceMongoDB:
			driver, err = NewMongoDriver(ctx, ds.URL, ds.Options["database"])
		case ast.DatasourceLLM, ast.DatasourceKnowledge, ast.DatasourceVector:
			continue
		default:
			err = fmt.Errorf("datasource: unsupported kind %q", ds.DSKind)
		}
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("datasource %q: %w", ds.Name, err)
		}
		r.drivers[ds.Name] = driver
		r.log.Info("datasource opened", "name", ds.Name, "kind", string(ds.DSKind))
	}
	return r, nil
}

// Datasource returns the declared metadata for name.
func (r *Registry) Datasource(name string) (*ast.Datasource, bool) {
	ds, ok := r.meta[name]
	return ds, ok
}

// RunQuery executes one statement on the named datasource.
func (r *Registry) RunQuery(ctx context.Context, datasource, stmt string, params map[string]any) ([]map[string]any, error) {
	driver, ok := r.drivers[datasource]
	if !ok {
		return nil, fmt.Errorf("datasource: %q is not configured", datasource)
	}
	start := time.Now()
	rows, err := driver.Query(ctx, stmt, params)
	metrics.QuerySeconds.WithLabelValues(r.kindOf(datasource)).Observe(time.Since(start).Seconds())
	return rows, err
}

// RunInTransaction runs fn inside a transaction on the named
// datasource. The runner handed to fn routes every query through the
// transaction and rejects other datasources.
func (r *Registry) RunInTransaction(ctx context.Context, datasource, isolation string, fn func(interp.QueryRunner) error) error {
	driver, ok := r.drivers[datasource]
	if !ok {
		return fmt.Errorf("datasource: %q is not configured", datasource)
	}
	return driver.Tx(ctx, isolation, func(tx Driver) error {
		return fn(&txRunner{datasource: datasource, kind: r.kindOf(datasource), tx: tx})
	})
}

// Ping checks every open driver.
func (r *Registry) Ping(ctx context.Context) error {
	for name, d := range r.drivers {
		if err := d.Ping(ctx); err != nil {
			return fmt.Errorf("datasource %q: %w", name, err)
		}
	}
	return nil
}

// Close closes all drivers, reporting the first failure.
func (r *Registry) Close() error {
	var errs []error
	for name, d := range r.drivers {
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) kindOf(datasource string) string {
	if ds, ok := r.meta[datasource]; ok {
		return string(ds.DSKind)
	}
	return "unknown"
}

type txRunner struct {
	datasource string
	kind       string
	tx         Driver
}

func (t *txRunner) RunQuery(ctx context.Context, datasource, stmt string, params map[string]any) ([]map[string]any, error) {
	if datasource != t.datasource {
		return nil, fmt.Errorf("datasource: query targets %q inside a %q transaction", datasource, t.datasource)
	}
	start := time.Now()
	rows, err := t.tx.Query(ctx, stmt, params)
	metrics.QuerySeconds.WithLabelValues(t.kind).Observe(time.Since(start).Seconds())
	return rows, err
}
