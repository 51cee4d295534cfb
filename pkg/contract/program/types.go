package program

import (
	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/contract/vm"
)

// ProgramCreate deploys Code and runs its constructor with Args.
type ProgramCreate struct {
	// ContractAddress is derived from Sender, Nonce and the code hash
	// when left zero.
	ContractAddress address.Address `json:"contractAddress"`
	Sender          address.Address `json:"sender"`
	Nonce           uint64          `json:"nonce"`
	Price           uint64          `json:"price"`
	ResourceLimit   uint64          `json:"resourceLimit"`
	Number          uint64          `json:"number"`
	Code            []byte          `json:"code,omitempty"`
	Args            []string        `json:"args,omitempty"`
}

// ProgramCall invokes MethodName on a deployed contract. An empty
// MethodDesc selects the first method with that name taking len(Args)
// arguments.
type ProgramCall struct {
	ContractAddress address.Address `json:"contractAddress"`
	Sender          address.Address `json:"sender"`
	Price           uint64          `json:"price"`
	ResourceLimit   uint64          `json:"resourceLimit"`
	Number          uint64          `json:"number"`
	MethodName      string          `json:"methodName"`
	MethodDesc      string          `json:"methodDesc,omitempty"`
	Args            []string        `json:"args,omitempty"`
}

// ProgramStop deactivates a contract if its _authorizeStop hook agrees.
type ProgramStop struct {
	ContractAddress address.Address `json:"contractAddress"`
	Sender          address.Address `json:"sender"`
	Number          uint64          `json:"number"`
}

type ProgramResult struct {
	vm.ExecutionResult
	ContractAddress address.Address `json:"contractAddress"`
	Price           uint64          `json:"price"`
}

type ProgramMethod struct {
	Name       string   `json:"name"`
	Desc       string   `json:"desc"`
	Args       []string `json:"args"`
	ReturnType string   `json:"returnType"`
	Static     bool     `json:"static,omitempty"`
	Owner      string   `json:"owner"`
}

type Status int

const (
	Open Status = iota
	Committed
	Discarded
)

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case Committed:
		return "committed"
	case Discarded:
		return "discarded"
	}
	return "unknown"
}
