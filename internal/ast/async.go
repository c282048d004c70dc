package ast

import (
	"fmt"
	"strings"
)

// Thread runs its body asynchronously in a fresh child context. The
// parent body does not wait for it unless Join is set.
type Thread struct {
	Src  Position
	Name string
	Join bool
	Body []Statement
}

func (t *Thread) Kind() NodeKind { return KindThread }
func (t *Thread) Pos() Position  { return t.Src }
func (t *Thread) stmtNode()      {}
func (t *Thread) String() string {
	return fmt.Sprintf("Thread{Name: %q, Join: %t, Body: %d}", t.Name, t.Join, len(t.Body))
}

func (t *Thread) Validate() []string {
	var errs []string
	if len(t.Body) == 0 {
		errs = append(errs, fmt.Sprintf("thread %q: empty body", t.Name))
	}
	return validateStatements(errs, t.Body)
}

// Schedule runs its body on a cron expression or fixed interval. Exactly
// one of Cron or Every must be set.
type Schedule struct {
	Src      Position
	Name     string
	Cron     string
	Every    string // duration text, e.g. "30s", "5m"
	Queue    string
	Priority string // low, default, critical
	Body     []Statement
}

func (s *Schedule) Kind() NodeKind { return KindSchedule }
func (s *Schedule) Pos() Position  { return s.Src }
func (s *Schedule) stmtNode()      {}
func (s *Schedule) String() string {
	return fmt.Sprintf("Schedule{Name: %q, Cron: %q, Every: %q}", s.Name, s.Cron, s.Every)
}

func (s *Schedule) Validate() []string {
	var errs []string
	if s.Name == "" {
		errs = append(errs, "schedule: missing required attribute 'name'")
	}
	switch {
	case s.Cron == "" && s.Every == "":
		errs = append(errs, fmt.Sprintf("schedule %q: requires one of 'cron' or 'every'", s.Name))
	case s.Cron != "" && s.Every != "":
		errs = append(errs, fmt.Sprintf("schedule %q: 'cron' and 'every' are mutually exclusive", s.Name))
	}
	switch s.Priority {
	case "", "low", "default", "critical":
	default:
		errs = append(errs, fmt.Sprintf("schedule %q: unknown priority %q", s.Name, s.Priority))
	}
	if len(s.Body) == 0 {
		errs = append(errs, fmt.Sprintf("schedule %q: empty body", s.Name))
	}
	return validateStatements(errs, s.Body)
}

// Job is a named unit of background work submitted to the task queue on
// demand or fired by an event.
type Job struct {
	Src      Position
	Name     string
	Queue    string
	Priority string
	Retry    int
	Timeout  int // seconds
	Params   []*Param
	Body     []Statement
}

func (j *Job) Kind() NodeKind { return KindJob }
func (j *Job) Pos() Position  { return j.Src }
func (j *Job) stmtNode()      {}
func (j *Job) String() string {
	return fmt.Sprintf("Job{Name: %q, Queue: %q, Body: %d}", j.Name, j.Queue, len(j.Body))
}

func (j *Job) Validate() []string {
	var errs []string
	if j.Name == "" {
		errs = append(errs, "job: missing required attribute 'name'")
	}
	if j.Retry < 0 {
		errs = append(errs, fmt.Sprintf("job %q: retry must not be negative", j.Name))
	}
	switch j.Priority {
	case "", "low", "default", "critical":
	default:
		errs = append(errs, fmt.Sprintf("job %q: unknown priority %q", j.Name, j.Priority))
	}
	for _, p := range j.Params {
		errs = validateChildren(errs, p)
	}
	if len(j.Body) == 0 {
		errs = append(errs, fmt.Sprintf("job %q: empty body", j.Name))
	}
	return validateStatements(errs, j.Body)
}

// OnEvent runs its body when the named event fires on the component.
type OnEvent struct {
	Src   Position
	Event string
	Body  []Statement
}

func (o *OnEvent) Kind() NodeKind { return KindOnEvent }
func (o *OnEvent) Pos() Position  { return o.Src }
func (o *OnEvent) stmtNode()      {}
func (o *OnEvent) String() string {
	return fmt.Sprintf("OnEvent{Event: %q, Body: %d}", o.Event, len(o.Body))
}

func (o *OnEvent) Validate() []string {
	var errs []string
	if o.Event == "" {
		errs = append(errs, "on: missing required attribute 'event'")
	}
	return validateStatements(errs, o.Body)
}

// Transaction runs its body atomically against a single SQL datasource.
// All Query statements inside must target that datasource.
type Transaction struct {
	Src        Position
	Datasource string
	Isolation  string // "", read-committed, repeatable-read, serializable
	Body       []Statement
}

func (t *Transaction) Kind() NodeKind { return KindTransaction }
func (t *Transaction) Pos() Position  { return t.Src }
func (t *Transaction) stmtNode()      {}
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{Datasource: %q, Body: %d}", t.Datasource, len(t.Body))
}

func (t *Transaction) Validate() []string {
	var errs []string
	if t.Datasource == "" {
		errs = append(errs, "transaction: missing required attribute 'datasource'")
	}
	switch strings.ToLower(t.Isolation) {
	case "", "read-committed", "repeatable-read", "serializable":
	default:
		errs = append(errs, fmt.Sprintf("transaction: unknown isolation %q", t.Isolation))
	}
	for _, st := range t.Body {
		if q, ok := st.(*Query); ok && q.Datasource != t.Datasource {
			errs = append(errs, fmt.Sprintf("transaction: query %q targets datasource %q, expected %q",
				q.Name, q.Datasource, t.Datasource))
		}
	}
	return validateStatements(errs, t.Body)
}
