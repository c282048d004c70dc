// Package interp executes Lattice AST bodies. Each node kind is owned by
// exactly one NodeExecutor registered with the interpreter; adding a new
// statement kind means registering a new executor, never editing dispatch
// code.
package interp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/binding"
	"github.com/lattice-lang/lattice/pkg/logging"
	"github.com/lattice-lang/lattice/pkg/metrics"
)

// NodeExecutor executes one AST node kind.
type NodeExecutor interface {
	// Kind returns the node kind this executor owns.
	Kind() ast.NodeKind
	// Execute runs the node against env. A Signal with HasValue set
	// short-circuits the enclosing body.
	Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error)
}

// QueryRunner runs SQL against a named datasource. The datasource
// registry implements it; transactions swap in a tx-bound runner.
type QueryRunner interface {
	RunQuery(ctx context.Context, datasource, sql string, params map[string]any) ([]map[string]any, error)
}

// TxRunner runs a body of queries atomically against one datasource.
type TxRunner interface {
	RunInTransaction(ctx context.Context, datasource, isolation string, fn func(QueryRunner) error) error
}

// LLMClient generates text for LLMGenerate statements.
type LLMClient interface {
	Generate(ctx context.Context, datasource, model, system, prompt string, temperature *float64, maxTokens int) (string, error)
}

// Searcher retrieves documents for Search statements.
type Searcher interface {
	Search(ctx context.Context, datasource, query string, limit int, threshold *float64) ([]map[string]any, error)
}

// HTTPInvoker performs remote Invoke targets (url, endpoint, service).
type HTTPInvoker interface {
	Invoke(ctx context.Context, inv *ast.Invoke, params map[string]any) (any, error)
}

// FunctionCaller resolves function and component Invoke targets. The
// function runtime implements it.
type FunctionCaller interface {
	Call(ctx context.Context, name string, args map[string]any) (any, error)
}

// TaskSubmitter enqueues background work for Job and Schedule statements.
type TaskSubmitter interface {
	Submit(ctx context.Context, job *ast.Job, args map[string]any) error
	ScheduleCron(ctx context.Context, sched *ast.Schedule) error
}

// VarStore persists variables declared with persist="true".
type VarStore interface {
	Persist(ctx context.Context, name string, value any, ttlSeconds int, encrypt bool) error
}

// Interpreter walks AST bodies through its executor registry.
type Interpreter struct {
	executors map[ast.NodeKind]NodeExecutor
	log       *slog.Logger

	queries   QueryRunner
	tx        TxRunner
	llm       LLMClient
	search    Searcher
	transport HTTPInvoker
	functions FunctionCaller
	tasks     TaskSubmitter
	store     VarStore
}

// Option configures an Interpreter.
type Option func(*Interpreter)

func WithQueryRunner(q QueryRunner) Option   { return func(i *Interpreter) { i.queries = q } }
func WithTxRunner(t TxRunner) Option         { return func(i *Interpreter) { i.tx = t } }
func WithLLMClient(c LLMClient) Option       { return func(i *Interpreter) { i.llm = c } }
func WithSearcher(s Searcher) Option         { return func(i *Interpreter) { i.search = s } }
func WithTransport(t HTTPInvoker) Option     { return func(i *Interpreter) { i.transport = t } }
func WithFunctionCaller(f FunctionCaller) Option {
	return func(i *Interpreter) { i.functions = f }
}
func WithTaskSubmitter(t TaskSubmitter) Option { return func(i *Interpreter) { i.tasks = t } }
func WithVarStore(s VarStore) Option           { return func(i *Interpreter) { i.store = s } }
func WithLogger(l *slog.Logger) Option         { return func(i *Interpreter) { i.log = l } }

// New returns an interpreter with the built-in executor set registered.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{
		executors: make(map[ast.NodeKind]NodeExecutor),
		log:       logging.ModuleLogger("interp"),
	}
	for _, opt := range opts {
		opt(i)
	}
	builtins := []NodeExecutor{
		&ifExecutor{in: i},
		&loopExecutor{in: i},
		&returnExecutor{in: i},
		&setExecutor{in: i},
		&queryExecutor{in: i},
		&invokeExecutor{in: i},
		&dataExecutor{in: i},
		&llmExecutor{in: i},
		&searchExecutor{in: i},
		&threadExecutor{in: i},
		&scheduleExecutor{in: i},
		&jobExecutor{in: i},
		&onEventExecutor{in: i},
		&transactionExecutor{in: i},
		&htmlExecutor{in: i},
		&componentCallExecutor{in: i},
		&textExecutor{in: i},
	}
	for _, e := range builtins {
		if err := i.Register(e); err != nil {
			panic(err)
		}
	}
	return i
}

// SetFunctionCaller wires the function runtime after construction; the
// runtime needs the interpreter to execute bodies, so the two are built
// in sequence.
func (i *Interpreter) SetFunctionCaller(f FunctionCaller) {
	i.functions = f
}

// SetTaskSubmitter wires the scheduler after construction for the same
// reason: the scheduler executes job bodies through the interpreter.
func (i *Interpreter) SetTaskSubmitter(t TaskSubmitter) {
	i.tasks = t
}

// Register claims an executor's node kind, 1:1.
func (i *Interpreter) Register(e NodeExecutor) error {
	if _, dup := i.executors[e.Kind()]; dup {
		return fmt.Errorf("interp: executor for %s already registered", e.Kind())
	}
	i.executors[e.Kind()] = e
	return nil
}

// Exec dispatches one node to its executor.
func (i *Interpreter) Exec(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	if err := ctx.Err(); err != nil {
		return None(), wrapErr(node, err)
	}
	e, ok := i.executors[node.Kind()]
	if !ok {
		return None(), execErr(node, "no executor registered for %s", node.Kind())
	}
	metrics.NodeExecutions.WithLabelValues(node.Kind().String()).Inc()
	sig, err := e.Execute(ctx, node, env)
	if err != nil {
		metrics.ExecErrors.WithLabelValues(node.Kind().String()).Inc()
		return None(), wrapErr(node, err)
	}
	return sig, nil
}

// ExecBody runs statements in order. The first statement that produces a
// Signal short-circuits the rest of the body.
func (i *Interpreter) ExecBody(ctx context.Context, body []ast.Statement, env *binding.Context) (Signal, error) {
	for _, stmt := range body {
		sig, err := i.Exec(ctx, stmt, env)
		if err != nil {
			return None(), err
		}
		if sig.HasValue {
			return sig, nil
		}
	}
	return None(), nil
}

// Run executes a top-level body in a child scope and observes duration.
func (i *Interpreter) Run(ctx context.Context, body []ast.Statement, env *binding.Context) (Signal, error) {
	start := time.Now()
	sig, err := i.ExecBody(ctx, body, env.Child())
	metrics.ExecutionSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		i.log.ErrorContext(ctx, "execution failed", "error", err)
	}
	return sig, err
}

type txRunnerKey struct{}

// withTxRunner scopes a tx-bound QueryRunner to ctx so queries inside a
// transaction body run on the transaction.
func withTxRunner(ctx context.Context, runner QueryRunner) context.Context {
	return context.WithValue(ctx, txRunnerKey{}, runner)
}

// queryRunner returns the effective runner: a transaction-scoped one
// from ctx if present, the registry otherwise.
func (i *Interpreter) queryRunner(ctx context.Context) QueryRunner {
	if r, ok := ctx.Value(txRunnerKey{}).(QueryRunner); ok {
		return r
	}
	return i.queries
}
