// Package ast defines the Abstract Syntax Tree for Lattice documents.
// Every tag the parser understands compiles into exactly one node type
// defined here; nodes are immutable once constructed.
package ast

import "fmt"

// Position identifies where a node came from: the source file and the
// element path within the document tree (e.g. "/application/component[1]/function").
type Position struct {
	// File is the name of the source document.
	File string
	// Path is the absolute element path inside the document.
	Path string
}

// String returns a human-readable representation of the position.
func (p Position) String() string {
	if p.File == "" {
		return p.Path
	}
	return p.File + ":" + p.Path
}

// IsValid reports whether the position has been set.
func (p Position) IsValid() bool {
	return p.Path != ""
}

// NodeKind discriminates AST node types.
type NodeKind int

// Node kind constants for all AST node kinds.
const (
	KindApplication NodeKind = iota
	KindComponent
	KindDatasource
	KindRoute
	KindFunction
	KindParam
	KindIf
	KindElseIf
	KindLoop
	KindSet
	KindQuery
	KindQueryParam
	KindInvoke
	KindData
	KindTransform
	KindReturn
	KindLLMGenerate
	KindSearch
	KindThread
	KindSchedule
	KindJob
	KindOnEvent
	KindTransaction
	KindHTML
	KindComponentCall
	KindText
)

var nodeKindNames = map[NodeKind]string{
	KindApplication:   "Application",
	KindComponent:     "Component",
	KindDatasource:    "Datasource",
	KindRoute:         "Route",
	KindFunction:      "Function",
	KindParam:         "Param",
	KindIf:            "If",
	KindElseIf:        "ElseIf",
	KindLoop:          "Loop",
	KindSet:           "Set",
	KindQuery:         "Query",
	KindQueryParam:    "QueryParam",
	KindInvoke:        "Invoke",
	KindData:          "Data",
	KindTransform:     "Transform",
	KindReturn:        "Return",
	KindLLMGenerate:   "LLMGenerate",
	KindSearch:        "Search",
	KindThread:        "Thread",
	KindSchedule:      "Schedule",
	KindJob:           "Job",
	KindOnEvent:       "OnEvent",
	KindTransaction:   "Transaction",
	KindHTML:          "HTML",
	KindComponentCall: "ComponentCall",
	KindText:          "Text",
}

// String returns the string representation of the NodeKind.
func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(k))
}

// ComponentKind enumerates the supported component flavors.
type ComponentKind string

const (
	ComponentPure         ComponentKind = "pure"
	ComponentMicroservice ComponentKind = "microservice"
	ComponentEventDriven  ComponentKind = "event-driven"
	ComponentWorker       ComponentKind = "worker"
	ComponentWebsocket    ComponentKind = "websocket"
	ComponentGraphQL      ComponentKind = "graphql"
	ComponentGRPC         ComponentKind = "grpc"
	ComponentServerless   ComponentKind = "serverless"
)

// ValidComponentKinds is the set of accepted component kind values.
var ValidComponentKinds = map[ComponentKind]bool{
	ComponentPure:         true,
	ComponentMicroservice: true,
	ComponentEventDriven:  true,
	ComponentWorker:       true,
	ComponentWebsocket:    true,
	ComponentGraphQL:      true,
	ComponentGRPC:         true,
	ComponentServerless:   true,
}

// LoopKind enumerates the four loop source kinds.
type LoopKind string

const (
	LoopRange LoopKind = "range"
	LoopArray LoopKind = "array"
	LoopList  LoopKind = "list"
	LoopQuery LoopKind = "query"
)

// ValidLoopKinds is the set of accepted loop kinds.
var ValidLoopKinds = map[LoopKind]bool{
	LoopRange: true,
	LoopArray: true,
	LoopList:  true,
	LoopQuery: true,
}

// ValueType enumerates the declared types a Set or Param may carry.
type ValueType string

const (
	TypeString   ValueType = "string"
	TypeNumber   ValueType = "number"
	TypeDecimal  ValueType = "decimal"
	TypeBoolean  ValueType = "boolean"
	TypeDate     ValueType = "date"
	TypeDatetime ValueType = "datetime"
	TypeArray    ValueType = "array"
	TypeObject   ValueType = "object"
	TypeJSON     ValueType = "json"
	TypeBinary   ValueType = "binary"
	TypeNull     ValueType = "null"
)

// ValidValueTypes is the set of accepted value type names.
var ValidValueTypes = map[ValueType]bool{
	TypeString: true, TypeNumber: true, TypeDecimal: true, TypeBoolean: true,
	TypeDate: true, TypeDatetime: true, TypeArray: true, TypeObject: true,
	TypeJSON: true, TypeBinary: true, TypeNull: true,
}

// SetOperation enumerates the mutations a Set statement may apply.
type SetOperation string

const (
	OpAssign         SetOperation = "assign"
	OpIncrement      SetOperation = "increment"
	OpDecrement      SetOperation = "decrement"
	OpAdd            SetOperation = "add"
	OpMultiply       SetOperation = "multiply"
	OpAppend         SetOperation = "append"
	OpPrepend        SetOperation = "prepend"
	OpRemove         SetOperation = "remove"
	OpRemoveAt       SetOperation = "removeAt"
	OpClear          SetOperation = "clear"
	OpSort           SetOperation = "sort"
	OpReverse        SetOperation = "reverse"
	OpUnique         SetOperation = "unique"
	OpMerge          SetOperation = "merge"
	OpSetProperty    SetOperation = "setProperty"
	OpDeleteProperty SetOperation = "deleteProperty"
	OpClone          SetOperation = "clone"
	OpUppercase      SetOperation = "uppercase"
	OpLowercase      SetOperation = "lowercase"
	OpTrim           SetOperation = "trim"
	OpFormat         SetOperation = "format"
)

// ValidSetOperations is the set of accepted Set operations.
var ValidSetOperations = map[SetOperation]bool{
	OpAssign: true, OpIncrement: true, OpDecrement: true, OpAdd: true,
	OpMultiply: true, OpAppend: true, OpPrepend: true, OpRemove: true,
	OpRemoveAt: true, OpClear: true, OpSort: true, OpReverse: true,
	OpUnique: true, OpMerge: true, OpSetProperty: true, OpDeleteProperty: true,
	OpClone: true, OpUppercase: true, OpLowercase: true, OpTrim: true,
	OpFormat: true,
}

// ValidHTTPMethods is the standard HTTP verb set accepted on REST
// configuration and Invoke statements.
var ValidHTTPMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// DatasourceKind enumerates the declared datasource backends.
type DatasourceKind string

const (
	DatasourcePostgres  DatasourceKind = "postgres"
	DatasourceSQLite    DatasourceKind = "sqlite"
	DatasourceMongoDB   DatasourceKind = "mongodb"
	DatasourceLLM       DatasourceKind = "llm"
	DatasourceKnowledge DatasourceKind = "knowledge"
	DatasourceVector    DatasourceKind = "vector"
)

// ValidDatasourceKinds is the set of accepted datasource kinds.
var ValidDatasourceKinds = map[DatasourceKind]bool{
	DatasourcePostgres: true, DatasourceSQLite: true, DatasourceMongoDB: true,
	DatasourceLLM: true, DatasourceKnowledge: true, DatasourceVector: true,
}
