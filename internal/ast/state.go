package ast

import "fmt"

// Set declares or mutates a context binding. It never yields a value;
// its only effect is on the execution context (and, for global/persist
// scope, the variable store).
type Set struct {
	Src       Position
	Name      string
	Type      ValueType
	Value     string
	Default   string
	Operation SetOperation
	Required  bool
	Nullable  bool
	Enum      []string
	Pattern   string
	Min       *float64
	Max       *float64
	MinLength *int
	MaxLength *int
	Scope     string // local, global
	Persist   bool
	Encrypt   bool
	TTL       int // seconds, for persisted values
}

func (s *Set) Kind() NodeKind { return KindSet }
func (s *Set) Pos() Position  { return s.Src }
func (s *Set) stmtNode()      {}
func (s *Set) String() string {
	return fmt.Sprintf("Set{Name: %q, Type: %q, Operation: %q}", s.Name, s.Type, s.Operation)
}

func (s *Set) Validate() []string {
	var errs []string
	if s.Name == "" {
		errs = append(errs, "set: missing required attribute 'name'")
	}
	if s.Type != "" && !ValidValueTypes[s.Type] {
		errs = append(errs, fmt.Sprintf("set %q: unknown type %q", s.Name, s.Type))
	}
	if s.Operation != "" && !ValidSetOperations[s.Operation] {
		errs = append(errs, fmt.Sprintf("set %q: unknown operation %q", s.Name, s.Operation))
	}
	switch s.Scope {
	case "", "local", "global":
	default:
		errs = append(errs, fmt.Sprintf("set %q: unknown scope %q", s.Name, s.Scope))
	}
	if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
		errs = append(errs, fmt.Sprintf("set %q: min %v greater than max %v", s.Name, *s.Min, *s.Max))
	}
	return errs
}

// Op returns the effective operation, defaulting to assign.
func (s *Set) Op() SetOperation {
	if s.Operation == "" {
		return OpAssign
	}
	return s.Operation
}
