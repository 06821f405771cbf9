package spop

import "github.com/sadewadee/maboo-spoa/internal/spoe/value"

// Scope is the lifetime domain a variable mutation applies to.
type Scope uint8

const (
	ScopeProcess     Scope = 0
	ScopeSession     Scope = 1
	ScopeTransaction Scope = 2
	ScopeRequest     Scope = 3
	ScopeResponse    Scope = 4
)

func (s Scope) String() string {
	switch s {
	case ScopeProcess:
		return "process"
	case ScopeSession:
		return "session"
	case ScopeTransaction:
		return "transaction"
	case ScopeRequest:
		return "request"
	case ScopeResponse:
		return "response"
	default:
		return "unknown"
	}
}

// actionKind distinguishes the two action wire tags (0x01 SET-VAR,
// 0x02 UNSET-VAR).
type actionKind uint8

const (
	actionSetVar   actionKind = 0x01
	actionUnsetVar actionKind = 0x02
)

// Action is a variable mutation produced by a Handler and shipped back
// to HAProxy inside the matching ACK. It carries exactly one of two
// cases: SetVar (Value meaningful) or UnsetVar (Value ignored).
type Action struct {
	kind  actionKind
	Scope Scope
	Name  string
	Value value.Value
}

// SetVar builds an action that assigns value to name in the given scope.
func SetVar(scope Scope, name string, v value.Value) Action {
	return Action{kind: actionSetVar, Scope: scope, Name: name, Value: v}
}

// UnsetVar builds an action that clears name in the given scope.
func UnsetVar(scope Scope, name string) Action {
	return Action{kind: actionUnsetVar, Scope: scope, Name: name}
}

// IsSetVar reports whether a is a SET-VAR action (as opposed to UNSET-VAR).
func (a Action) IsSetVar() bool { return a.kind == actionSetVar }
