package vm

import (
	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/contract/code"
)

type Event struct {
	Contract address.Address `json:"contract"`
	Name     string          `json:"name"`
	Args     []code.Value    `json:"args"`
}

// ExecutionResult is the outcome of one invocation. A failed result carries
// no events.
type ExecutionResult struct {
	Success      bool       `json:"success"`
	ReturnValue  code.Value `json:"returnValue"`
	Cost         uint64     `json:"cost"`
	Events       []Event    `json:"events,omitempty"`
	ErrorKind    FaultKind  `json:"errorKind,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

func (r *ExecutionResult) Error() error {
	if r.Success {
		return nil
	}
	return &Fault{Kind: r.ErrorKind, Msg: r.ErrorMessage}
}

func failed(f *Fault, cost uint64) ExecutionResult {
	return ExecutionResult{Cost: cost, ErrorKind: f.Kind, ErrorMessage: f.Msg}
}
