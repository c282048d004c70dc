package interp

import (
	"context"
	"fmt"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/binding"
)

// threadExecutor runs its body concurrently in a fresh child scope.
// Without join the parent continues immediately and body errors are only
// logged; with join the executor waits and propagates the error.
type threadExecutor struct {
	in *Interpreter
}

func (*threadExecutor) Kind() ast.NodeKind { return ast.KindThread }

func (e *threadExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	t := node.(*ast.Thread)
	scope := env.Child()

	if t.Join {
		done := make(chan error, 1)
		go func() {
			_, err := e.in.ExecBody(ctx, t.Body, scope)
			done <- err
		}()
		select {
		case err := <-done:
			if err != nil {
				return None(), fmt.Errorf("thread %q: %w", t.Name, err)
			}
			return None(), nil
		case <-ctx.Done():
			return None(), ctx.Err()
		}
	}

	go func() {
		if _, err := e.in.ExecBody(context.WithoutCancel(ctx), t.Body, scope); err != nil {
			e.in.log.Error("detached thread failed", "thread", t.Name, "error", err)
		}
	}()
	return None(), nil
}

// scheduleExecutor registers the schedule with the task scheduler.
type scheduleExecutor struct {
	in *Interpreter
}

func (*scheduleExecutor) Kind() ast.NodeKind { return ast.KindSchedule }

func (e *scheduleExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	s := node.(*ast.Schedule)
	if e.in.tasks == nil {
		return None(), execErr(s, "no task scheduler configured")
	}
	if err := e.in.tasks.ScheduleCron(ctx, s); err != nil {
		return None(), fmt.Errorf("schedule %q: %w", s.Name, err)
	}
	return None(), nil
}

// jobExecutor submits the job to the task queue. Parameters with
// defaults resolve against the submitting scope.
type jobExecutor struct {
	in *Interpreter
}

func (*jobExecutor) Kind() ast.NodeKind { return ast.KindJob }

func (e *jobExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	j := node.(*ast.Job)
	if e.in.tasks == nil {
		return None(), execErr(j, "no task scheduler configured")
	}
	args := make(map[string]any, len(j.Params))
	for _, p := range j.Params {
		if p.Default == "" {
			continue
		}
		v, err := env.Resolve(p.Default)
		if err != nil {
			return None(), fmt.Errorf("job %q param %q: %w", j.Name, p.Name, err)
		}
		args[p.Name] = v
	}
	if err := e.in.tasks.Submit(ctx, j, args); err != nil {
		return None(), fmt.Errorf("job %q: %w", j.Name, err)
	}
	return None(), nil
}

// onEventExecutor is inert during a plain body walk; event handlers fire
// through the component runtime when their event is dispatched.
type onEventExecutor struct {
	in *Interpreter
}

func (*onEventExecutor) Kind() ast.NodeKind { return ast.KindOnEvent }

func (e *onEventExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	return None(), nil
}

// FireEvent runs every handler registered for event on the component, in
// declaration order, each in its own child scope extended with the
// payload under "event".
func (i *Interpreter) FireEvent(ctx context.Context, comp *ast.Component, event string, payload any, env *binding.Context) error {
	for _, h := range comp.Handlers {
		if h.Event != event {
			continue
		}
		scope := env.Child()
		scope.Set("event", payload)
		if _, err := i.ExecBody(ctx, h.Body, scope); err != nil {
			return fmt.Errorf("event %q on %q: %w", event, comp.Name, err)
		}
	}
	return nil
}

// transactionExecutor runs its body atomically: queries inside route
// through a transaction-bound runner, and any body error rolls back.
type transactionExecutor struct {
	in *Interpreter
}

func (*transactionExecutor) Kind() ast.NodeKind { return ast.KindTransaction }

func (e *transactionExecutor) Execute(ctx context.Context, node ast.Node, env *binding.Context) (Signal, error) {
	t := node.(*ast.Transaction)
	if e.in.tx == nil {
		return None(), execErr(t, "no transaction runner configured")
	}
	var sig Signal
	err := e.in.tx.RunInTransaction(ctx, t.Datasource, t.Isolation, func(runner QueryRunner) error {
		txCtx := withTxRunner(ctx, runner)
		var bodyErr error
		sig, bodyErr = e.in.ExecBody(txCtx, t.Body, env.Child())
		return bodyErr
	})
	if err != nil {
		return None(), err
	}
	return sig, nil
}
