package code

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Opcode is a single interpreter instruction.
type Opcode uint8

const (
	NOP Opcode = iota

	// constants; PUSH_INT carries a decimal literal in Name, PUSH_STR the string
	PUSH_INT
	PUSH_STR
	PUSH_TRUE
	PUSH_FALSE
	PUSH_NULL

	// locals and stack; LOAD/STORE take the slot in Arg
	LOAD
	STORE
	POP
	DUP
	SWAP

	// checked 256-bit arithmetic
	ADD
	SUB
	MUL
	DIV
	MOD

	EQ
	NE
	LT
	GT
	LE
	GE
	NOT
	AND
	OR
	CONCAT

	// jumps take the target instruction index in Arg
	JUMP
	JUMP_IF_FALSE
	JUMP_IF_TRUE

	// heap; Class and Name select the field
	GETSTATIC
	PUTSTATIC
	GETFIELD
	PUTFIELD
	THIS
	NEW
	NEWMAP
	MGET // Desc is the value type
	MPUT
	MHAS
	MDEL

	// calls; Class, Name and Desc select the method
	INVOKESTATIC
	INVOKEVIRTUAL
	INVOKESPECIAL
	RETURN
	RETURNVALUE

	EMIT // Name is the event, Arg the number of arguments
	REVERT
	REQUIRE
	CHECKCAST // Desc is the expected type

	opcodeCount
)

var opcodeNames = [...]string{
	NOP:           "NOP",
	PUSH_INT:      "PUSH_INT",
	PUSH_STR:      "PUSH_STR",
	PUSH_TRUE:     "PUSH_TRUE",
	PUSH_FALSE:    "PUSH_FALSE",
	PUSH_NULL:     "PUSH_NULL",
	LOAD:          "LOAD",
	STORE:         "STORE",
	POP:           "POP",
	DUP:           "DUP",
	SWAP:          "SWAP",
	ADD:           "ADD",
	SUB:           "SUB",
	MUL:           "MUL",
	DIV:           "DIV",
	MOD:           "MOD",
	EQ:            "EQ",
	NE:            "NE",
	LT:            "LT",
	GT:            "GT",
	LE:            "LE",
	GE:            "GE",
	NOT:           "NOT",
	AND:           "AND",
	OR:            "OR",
	CONCAT:        "CONCAT",
	JUMP:          "JUMP",
	JUMP_IF_FALSE: "JUMP_IF_FALSE",
	JUMP_IF_TRUE:  "JUMP_IF_TRUE",
	GETSTATIC:     "GETSTATIC",
	PUTSTATIC:     "PUTSTATIC",
	GETFIELD:      "GETFIELD",
	PUTFIELD:      "PUTFIELD",
	THIS:          "THIS",
	NEW:           "NEW",
	NEWMAP:        "NEWMAP",
	MGET:          "MGET",
	MPUT:          "MPUT",
	MHAS:          "MHAS",
	MDEL:          "MDEL",
	INVOKESTATIC:  "INVOKESTATIC",
	INVOKEVIRTUAL: "INVOKEVIRTUAL",
	INVOKESPECIAL: "INVOKESPECIAL",
	RETURN:        "RETURN",
	RETURNVALUE:   "RETURNVALUE",
	EMIT:          "EMIT",
	REVERT:        "REVERT",
	REQUIRE:       "REQUIRE",
	CHECKCAST:     "CHECKCAST",
}

var opcodeByName map[string]Opcode

func init() {
	opcodeByName = make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		opcodeByName[name] = Opcode(op)
	}
}

func (op Opcode) Valid() bool {
	return op < opcodeCount
}

func (op Opcode) String() string {
	if op.Valid() {
		return opcodeNames[op]
	}
	return "OP(" + strconv.Itoa(int(op)) + ")"
}

func (op Opcode) MarshalJSON() ([]byte, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("unknown opcode %d", op)
	}
	return json.Marshal(op.String())
}

func (op *Opcode) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	o, ok := opcodeByName[name]
	if !ok {
		return fmt.Errorf("unknown opcode %q", name)
	}
	*op = o
	return nil
}

// IsJump reports whether Arg of op is a branch target.
func (op Opcode) IsJump() bool {
	return op == JUMP || op == JUMP_IF_FALSE || op == JUMP_IF_TRUE
}

func (op Opcode) IsInvoke() bool {
	return op == INVOKESTATIC || op == INVOKEVIRTUAL || op == INVOKESPECIAL
}

// Instruction is one decoded instruction with its operands.
type Instruction struct {
	Op    Opcode `cbor:"1,keyasint" json:"op"`
	Arg   int    `cbor:"2,keyasint,omitempty" json:"arg,omitempty"`
	Class string `cbor:"3,keyasint,omitempty" json:"class,omitempty"`
	Name  string `cbor:"4,keyasint,omitempty" json:"name,omitempty"`
	Desc  string `cbor:"5,keyasint,omitempty" json:"desc,omitempty"`
}

func (in Instruction) String() string {
	s := in.Op.String()
	switch {
	case in.Op.IsInvoke():
		s += " " + in.Class + "." + in.Name + in.Desc
	case in.Class != "":
		s += " " + in.Class
		if in.Name != "" {
			s += "." + in.Name
		}
	case in.Name != "":
		s += " " + strconv.Quote(in.Name)
	}
	if in.Op.IsJump() || in.Op == LOAD || in.Op == STORE || in.Op == EMIT {
		s += " " + strconv.Itoa(in.Arg)
	}
	if in.Desc != "" && !in.Op.IsInvoke() {
		s += " " + in.Desc
	}
	return s
}
