package scheduler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/binding"
	"github.com/lattice-lang/lattice/internal/interp"
)

func newScheduler(t *testing.T) (*Scheduler, *binding.Context) {
	t.Helper()
	base := binding.NewContext(nil)
	s := New(DefaultConfig(), interp.New(), WithBaseContext(base))
	t.Cleanup(func() { _ = s.Close() })
	return s, base
}

func TestQueueFor(t *testing.T) {
	assert.Equal(t, "emails", queueFor("emails", "critical"))
	assert.Equal(t, QueueCritical, queueFor("", "critical"))
	assert.Equal(t, QueueLow, queueFor("", "low"))
	assert.Equal(t, QueueDefault, queueFor("", ""))
	assert.Equal(t, QueueDefault, queueFor("", "default"))
}

func TestRegisterJobDuplicate(t *testing.T) {
	s, _ := newScheduler(t)
	job := &ast.Job{Name: "cleanup"}
	require.NoError(t, s.RegisterJob(job))
	assert.Error(t, s.RegisterJob(job))
}

func TestLoadApplication(t *testing.T) {
	s, _ := newScheduler(t)
	app := &ast.Application{
		ID: "demo",
		Jobs: []*ast.Job{
			{Name: "reindex"},
			{Name: "cleanup"},
		},
	}
	require.NoError(t, s.LoadApplication(app))
	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Len(t, s.jobs, 2)
}

func TestHandleTaskExecutesBody(t *testing.T) {
	s, base := newScheduler(t)
	job := &ast.Job{
		Name: "count",
		Params: []*ast.Param{
			{Name: "by", Type: ast.TypeNumber, Default: "1"},
		},
		Body: []ast.Statement{
			&ast.Set{Name: "total", Operation: ast.OpAdd, Value: "{by}", Scope: "global"},
		},
	}
	require.NoError(t, s.RegisterJob(job))

	payload, err := json.Marshal(taskPayload{Job: "count", Args: map[string]any{"by": float64(5)}})
	require.NoError(t, err)
	task := asynq.NewTask(taskTypePrefix+"count", payload)

	require.NoError(t, s.handleTask(context.Background(), task))
	total, _ := base.Get("total")
	assert.Equal(t, float64(5), total)

	// Omitted argument falls back to the declared default.
	payload, err = json.Marshal(taskPayload{Job: "count"})
	require.NoError(t, err)
	require.NoError(t, s.handleTask(context.Background(), asynq.NewTask(taskTypePrefix+"count", payload)))
	total, _ = base.Get("total")
	assert.Equal(t, float64(6), total)
}

func TestHandleTaskUnknownJob(t *testing.T) {
	s, _ := newScheduler(t)
	payload, err := json.Marshal(taskPayload{Job: "ghost"})
	require.NoError(t, err)

	err = s.handleTask(context.Background(), asynq.NewTask(taskTypePrefix+"ghost", payload))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no job named")
}

func TestHandleTaskBadPayload(t *testing.T) {
	s, _ := newScheduler(t)
	err := s.handleTask(context.Background(), asynq.NewTask(taskTypePrefix+"x", []byte("not json")))
	assert.Error(t, err)
}

func TestJobScopeRequiredParam(t *testing.T) {
	s, _ := newScheduler(t)
	job := &ast.Job{
		Name:   "notify",
		Params: []*ast.Param{{Name: "user", Type: ast.TypeString, Required: true}},
	}

	_, err := s.jobScope(job, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required parameter")

	scope, err := s.jobScope(job, map[string]any{"user": "ada"})
	require.NoError(t, err)
	v, _ := scope.Get("user")
	assert.Equal(t, "ada", v)
}
