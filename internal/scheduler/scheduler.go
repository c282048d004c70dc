// Package scheduler runs declared jobs and schedules on an Asynq-backed
// task queue. Job bodies execute through the interpreter against a
// fresh scope, so workers see the same semantics as inline statements.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/binding"
	"github.com/lattice-lang/lattice/internal/interp"
	"github.com/lattice-lang/lattice/pkg/logging"
)

// Queue priority names, matching the priority attribute values.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

const taskTypePrefix = "lattice:job:"

// Config holds queue configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Concurrency     int
	Queues          map[string]int // queue name -> weight
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible worker defaults.
func DefaultConfig() Config {
	return Config{
		RedisAddr:       "localhost:6379",
		Concurrency:     10,
		Queues:          map[string]int{QueueCritical: 6, QueueDefault: 3, QueueLow: 1},
		ShutdownTimeout: 30 * time.Second,
	}
}

// Scheduler owns the Asynq client, server, and cron scheduler. It
// satisfies the interpreter's task submitter interface.
type Scheduler struct {
	client *asynq.Client
	server *asynq.Server
	cron   *asynq.Scheduler
	mux    *asynq.ServeMux

	in   *interp.Interpreter
	base *binding.Context
	log  *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*ast.Job
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBaseContext sets the scope job bodies inherit from.
func WithBaseContext(env *binding.Context) Option {
	return func(s *Scheduler) { s.base = env }
}

// WithLogger overrides the module logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New builds a scheduler over the interpreter.
func New(cfg Config, in *interp.Interpreter, opts ...Option) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if len(cfg.Queues) == 0 {
		cfg.Queues = DefaultConfig().Queues
	}
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	s := &Scheduler{
		client: asynq.NewClient(redisOpt),
		server: asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
				delay := time.Duration(1<<uint(n)) * time.Second
				if delay > 10*time.Minute {
					delay = 10 * time.Minute
				}
				return delay
			},
			ShutdownTimeout: cfg.ShutdownTimeout,
		}),
		cron: asynq.NewScheduler(redisOpt, nil),
		mux:  asynq.NewServeMux(),
		in:   in,
		base: binding.NewContext(nil),
		log:  logging.ModuleLogger("scheduler"),
		jobs: make(map[string]*ast.Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc(taskTypePrefix, s.handleTask)
	return s
}

type taskPayload struct {
	Job  string         `json:"job"`
	Args map[string]any `json:"args,omitempty"`
}

// RegisterJob makes a declared job submittable and executable.
func (s *Scheduler) RegisterJob(job *ast.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("scheduler: job %q already registered", job.Name)
	}
	s.jobs[job.Name] = job
	return nil
}

// LoadApplication registers every job the application declares.
func (s *Scheduler) LoadApplication(app *ast.Application) error {
	for _, job := range app.Jobs {
		if err := s.RegisterJob(job); err != nil {
			return err
		}
	}
	return nil
}

// Submit enqueues one run of a job with the given arguments.
func (s *Scheduler) Submit(ctx context.Context, job *ast.Job, args map[string]any) error {
	s.mu.RLock()
	_, known := s.jobs[job.Name]
	s.mu.RUnlock()
	if !known {
		if err := s.RegisterJob(job); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(taskPayload{Job: job.Name, Args: args})
	if err != nil {
		return fmt.Errorf("scheduler: encoding payload for %q: %w", job.Name, err)
	}
	opts := []asynq.Option{
		asynq.Queue(queueFor(job.Queue, job.Priority)),
		asynq.MaxRetry(job.Retry),
	}
	if job.Timeout > 0 {
		opts = append(opts, asynq.Timeout(time.Duration(job.Timeout)*time.Second))
	}

	info, err := s.client.EnqueueContext(ctx, asynq.NewTask(taskTypePrefix+job.Name, payload), opts...)
	if err != nil {
		return fmt.Errorf("scheduler: enqueuing %q: %w", job.Name, err)
	}
	s.log.InfoContext(ctx, "job enqueued", "job", job.Name, "id", info.ID, "queue", info.Queue)
	return nil
}

// ScheduleCron registers a schedule's body as a recurring task. The
// schedule runs as an anonymous job on its configured queue.
func (s *Scheduler) ScheduleCron(ctx context.Context, sched *ast.Schedule) error {
	job := &ast.Job{
		Src:      sched.Src,
		Name:     "schedule." + sched.Name,
		Queue:    sched.Queue,
		Priority: sched.Priority,
		Body:     sched.Body,
	}
	s.mu.Lock()
	s.jobs[job.Name] = job
	s.mu.Unlock()

	spec := sched.Cron
	if spec == "" {
		spec = "@every " + sched.Every
	}
	payload, err := json.Marshal(taskPayload{Job: job.Name})
	if err != nil {
		return err
	}
	entryID, err := s.cron.Register(spec,
		asynq.NewTask(taskTypePrefix+job.Name, payload),
		asynq.Queue(queueFor(sched.Queue, sched.Priority)))
	if err != nil {
		return fmt.Errorf("scheduler: registering schedule %q: %w", sched.Name, err)
	}
	s.log.InfoContext(ctx, "schedule registered", "schedule", sched.Name, "spec", spec, "entry", entryID)
	return nil
}

// Run starts the worker and cron scheduler and blocks until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("scheduler: starting server: %w", err)
	}
	if err := s.cron.Start(); err != nil {
		s.server.Shutdown()
		return fmt.Errorf("scheduler: starting cron: %w", err)
	}
	<-ctx.Done()
	s.Shutdown()
	return nil
}

// Shutdown drains the worker and stops the cron scheduler.
func (s *Scheduler) Shutdown() {
	s.cron.Shutdown()
	s.server.Shutdown()
}

// Close releases the submit client.
func (s *Scheduler) Close() error {
	return s.client.Close()
}

// handleTask executes one dequeued job body through the interpreter.
func (s *Scheduler) handleTask(ctx context.Context, task *asynq.Task) error {
	var payload taskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("scheduler: decoding payload: %w", err)
	}
	s.mu.RLock()
	job, ok := s.jobs[payload.Job]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("scheduler: no job named %q", payload.Job)
	}

	scope, err := s.jobScope(job, payload.Args)
	if err != nil {
		return err
	}
	start := time.Now()
	if _, err := s.in.ExecBody(ctx, job.Body, scope); err != nil {
		s.log.ErrorContext(ctx, "job failed", "job", job.Name, "error", err, "elapsed", time.Since(start))
		return err
	}
	s.log.InfoContext(ctx, "job completed", "job", job.Name, "elapsed", time.Since(start))
	return nil
}

// jobScope binds declared parameters the same way function calls do.
func (s *Scheduler) jobScope(job *ast.Job, args map[string]any) (*binding.Context, error) {
	scope := s.base.Child()
	for _, p := range job.Params {
		supplied, ok := args[p.Name]
		if !ok || supplied == nil {
			switch {
			case p.Default != "":
				v, err := scope.Resolve(p.Default)
				if err != nil {
					return nil, fmt.Errorf("scheduler: %s(%s) default: %w", job.Name, p.Name, err)
				}
				if v, err = binding.Coerce(v, p.Type); err != nil {
					return nil, fmt.Errorf("scheduler: %s(%s): %w", job.Name, p.Name, err)
				}
				scope.Set(p.Name, v)
			case p.Required:
				return nil, fmt.Errorf("scheduler: %s: required parameter %q not supplied", job.Name, p.Name)
			default:
				scope.Set(p.Name, nil)
			}
			continue
		}
		v, err := binding.Coerce(supplied, p.Type)
		if err != nil {
			return nil, fmt.Errorf("scheduler: %s(%s): %w", job.Name, p.Name, err)
		}
		scope.Set(p.Name, v)
	}
	return scope, nil
}

// queueFor picks the queue: an explicit queue attribute wins, then the
// priority name, then the default queue.
func queueFor(queue, priority string) string {
	if queue != "" {
		return queue
	}
	switch priority {
	case QueueLow, QueueCritical:
		return priority
	default:
		return QueueDefault
	}
}
