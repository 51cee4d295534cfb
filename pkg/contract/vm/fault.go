package vm

import "fmt"

// FaultKind classifies why an invocation failed.
type FaultKind string

const (
	// FaultLoad: unknown class or malformed code
	FaultLoad FaultKind = "load"
	// FaultResolution: method not found
	FaultResolution FaultKind = "resolution"
	// FaultExhausted: resource limit exceeded
	FaultExhausted FaultKind = "exhausted"
	// FaultLogic: revert, require, type errors, arithmetic errors
	FaultLogic FaultKind = "logic"
	// FaultDepth: call depth exceeded
	FaultDepth FaultKind = "depth"
)

// Fault aborts the running invocation. It is raised with panic inside the
// interpreter and recovered at the Invoke boundary.
type Fault struct {
	Kind FaultKind
	Msg  string
}

func (f *Fault) Error() string {
	return string(f.Kind) + ": " + f.Msg
}

func fault(kind FaultKind, format string, args ...interface{}) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func throw(kind FaultKind, format string, args ...interface{}) {
	panic(fault(kind, format, args...))
}

// Throw raises a fault from code running inside Engine.Run.
func Throw(kind FaultKind, format string, args ...interface{}) {
	throw(kind, format, args...)
}
