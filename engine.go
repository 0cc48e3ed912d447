// Copyright (c) 2013-2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package machine

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MaxScriptSize is the maximum allowed length in bytes of a program.
	MaxScriptSize = 520000

	// MaxScriptElementSize is the maximum allowed length in bytes of an
	// item on the stack.
	MaxScriptElementSize = 520

	// MaxOpsPerScript is the maximum number of non-push operations a
	// program may execute.
	MaxOpsPerScript = 201

	// MaxPubKeysPerMultiSig is the maximum number of public keys
	// OP_CHECKMULTISIG accepts, and the count assumed by the signature
	// operation scan when an exact count is unavailable.
	MaxPubKeysPerMultiSig = 20

	// maxStackSize is the maximum combined depth of the main and
	// alternate stacks during execution.
	maxStackSize = 1000
)

// errNestEmpty is the sentinel the condition nest reports when a scope is
// closed or toggled without having been opened.  Opcode handlers translate
// it into the caller-visible unbalanced conditional error.
var errNestEmpty = errors.New("condition nest is empty")

// condNest models the boolean scopes opened by OP_IF and OP_NOTIF.  The
// machine only needs to know whether every enclosing scope is true, so that
// answer is cached and maintained incrementally where possible.
type condNest struct {
	conds   []bool
	allTrue bool
}

// push opens a new scope with the given condition.
func (c *condNest) push(v bool) {
	c.conds = append(c.conds, v)
	if !v {
		c.allTrue = false
	}
}

// toggle inverts the innermost scope, as OP_ELSE requires.
func (c *condNest) toggle() error {
	if len(c.conds) == 0 {
		return errNestEmpty
	}
	c.conds[len(c.conds)-1] = !c.conds[len(c.conds)-1]
	c.recache()
	return nil
}

// pop closes the innermost scope, as OP_ENDIF requires.
func (c *condNest) pop() error {
	if len(c.conds) == 0 {
		return errNestEmpty
	}
	c.conds = c.conds[:len(c.conds)-1]
	c.recache()
	return nil
}

// result returns whether every open scope is true, i.e. whether ordinary
// opcodes execute.
func (c *condNest) result() bool {
	return c.allTrue
}

// empty returns whether all scopes are closed.
func (c *condNest) empty() bool {
	return len(c.conds) == 0
}

// clear closes every scope.
func (c *condNest) clear() {
	c.conds = c.conds[:0]
	c.allTrue = true
}

func (c *condNest) recache() {
	for _, v := range c.conds {
		if !v {
			c.allTrue = false
			return
		}
	}
	c.allTrue = true
}

// Machine is the virtual machine that executes programs.  A zero Machine is
// usable once an environment has been attached with SetEnv and a program
// installed with SetProgram.  Machines are not safe for concurrent use;
// validate in parallel with independent Machine and Environment instances.
type Machine struct {
	env         Environment
	program     []byte
	pc          int
	dstack      stack // data stack
	astack      stack // alt stack
	cond        condNest
	numOps      int
	lastCodeSep int
	err         error // sticky
}

// hasFlag returns whether the machine's environment has the passed flag set.
func (vm *Machine) hasFlag(flag ScriptFlags) bool {
	return vm.env != nil && vm.env.Flags()&flag == flag
}

// flags returns the environment's flag set, or zero before SetEnv.
func (vm *Machine) flags() ScriptFlags {
	if vm.env == nil {
		return 0
	}
	return vm.env.Flags()
}

// isBranchExecuting returns whether or not the current conditional branch is
// actively executing.  For example, when the data stack has an OP_FALSE on
// it and an OP_IF is encountered, the branch is inactive until an OP_ELSE or
// OP_ENDIF is encountered.  It properly handles nested conditionals.
func (vm *Machine) isBranchExecuting() bool {
	return vm.cond.result()
}

// subScript returns the program bytes since the most recent
// OP_CODESEPARATOR, which is the script code signatures commit to.
func (vm *Machine) subScript() []byte {
	return vm.program[vm.lastCodeSep:]
}

// setErr records the first failure so that every further Step and Continue
// observes it until a new program is installed or the machine is reset.
func (vm *Machine) setErr(err error) error {
	vm.err = err
	return err
}

// parseOpcode decodes the opcode at the given offset of the program along
// with any immediate push payload and returns the offset of the following
// opcode.  The caller is responsible for ensuring offset is within the
// program.
func parseOpcode(program []byte, offset int) (byte, []byte, int, error) {
	opVal := program[offset]
	offset++

	// Small and large opcodes alike carry no payload; only the push
	// immediates do.
	if opVal > OP_PUSHDATA4 {
		return opVal, nil, offset, nil
	}

	var dataLen int
	switch opVal {
	case OP_PUSHDATA1:
		if offset+1 > len(program) {
			str := fmt.Sprintf("opcode %s requires 1 length byte, "+
				"but the program only has %d remaining",
				opcodeArray[opVal].name, len(program)-offset)
			return 0, nil, 0, scriptError(ErrBadOpcode, str)
		}
		dataLen = int(program[offset])
		offset++
	case OP_PUSHDATA2:
		if offset+2 > len(program) {
			str := fmt.Sprintf("opcode %s requires 2 length bytes, "+
				"but the program only has %d remaining",
				opcodeArray[opVal].name, len(program)-offset)
			return 0, nil, 0, scriptError(ErrBadOpcode, str)
		}
		dataLen = int(binary.LittleEndian.Uint16(program[offset:]))
		offset += 2
	case OP_PUSHDATA4:
		if offset+4 > len(program) {
			str := fmt.Sprintf("opcode %s requires 4 length bytes, "+
				"but the program only has %d remaining",
				opcodeArray[opVal].name, len(program)-offset)
			return 0, nil, 0, scriptError(ErrBadOpcode, str)
		}
		dataLen = int(binary.LittleEndian.Uint32(program[offset:]))
		offset += 4
	default:
		// Direct pushes encode the payload length in the opcode
		// itself, including the zero length payload of OP_0.
		dataLen = int(opVal)
	}

	// A payload ending exactly at the program end is valid.
	if offset+dataLen > len(program) {
		str := fmt.Sprintf("opcode %s pushes %d bytes, but the "+
			"program only has %d remaining",
			opcodeArray[opVal].name, dataLen, len(program)-offset)
		return 0, nil, 0, scriptError(ErrBadOpcode, str)
	}

	data := program[offset : offset+dataLen]
	return opVal, data, offset + dataLen, nil
}

// Fetch reads the opcode at the program counter along with any immediate
// push payload and advances the counter past both.  At the end of the
// program it reports ErrProgramEnded, or ErrUnbalancedConditional when a
// conditional scope is still open.
func (vm *Machine) Fetch() (byte, []byte, error) {
	if vm.pc >= len(vm.program) {
		if !vm.cond.empty() {
			return 0, nil, scriptError(ErrUnbalancedConditional,
				"end of program reached in a conditional "+
					"execution")
		}
		return 0, nil, scriptError(ErrProgramEnded,
			"end of program reached")
	}

	opVal, data, next, err := parseOpcode(vm.program, vm.pc)
	if err != nil {
		return 0, nil, err
	}
	vm.pc = next
	return opVal, data, nil
}

// executeOpcode performs execution of the passed opcode.  It takes into
// account whether or not it is hidden by conditionals, but some rules still
// must be tested in that case.
func (vm *Machine) executeOpcode(opVal byte, data []byte) error {
	op := &opcodeArray[opVal]

	if len(data) > MaxScriptElementSize {
		str := fmt.Sprintf("element size %d exceeds max allowed size "+
			"%d", len(data), MaxScriptElementSize)
		return scriptError(ErrPushSize, str)
	}

	// Note that this excludes OP_RESERVED which counts as a push
	// operation.
	if opVal > OP_16 {
		vm.numOps++
		if vm.numOps > MaxOpsPerScript {
			str := fmt.Sprintf("exceeded max operation limit of "+
				"%d", MaxOpsPerScript)
			return scriptError(ErrOpCount, str)
		}
	}

	// Disabled opcodes fail on program counter pass-through, even when
	// they appear in a branch that is not executed.
	if IsOpcodeDisabled(opVal, vm.flags()) {
		str := fmt.Sprintf("attempt to execute disabled opcode %s",
			op.name)
		return scriptError(ErrDisabledOpcode, str)
	}

	switch {
	// Conditional opcodes run even on a non-executing branch so the
	// nesting stays balanced.
	case opVal >= OP_IF && opVal <= OP_ENDIF:
		if err := op.opfunc(op, data, vm); err != nil {
			return err
		}

	case !vm.isBranchExecuting():
		return nil

	case opVal <= OP_PUSHDATA4:
		if vm.hasFlag(ScriptVerifyMinimalData) {
			if err := checkMinimalDataPush(op, data); err != nil {
				return err
			}
		}
		if err := op.opfunc(op, data, vm); err != nil {
			return err
		}

	default:
		if err := op.opfunc(op, data, vm); err != nil {
			return err
		}
	}

	if int(vm.dstack.Depth())+int(vm.astack.Depth()) > maxStackSize {
		str := fmt.Sprintf("combined stack depth %d exceeds maximum "+
			"allowed of %d",
			vm.dstack.Depth()+vm.astack.Depth(), maxStackSize)
		return scriptError(ErrStackSize, str)
	}

	return nil
}

// Step executes the next opcode and moves the program counter past it.  The
// first failure is sticky: it is returned from this and every further call
// until SetProgram or Reset.
func (vm *Machine) Step() error {
	if vm.err != nil {
		return vm.err
	}

	opVal, data, err := vm.Fetch()
	if err != nil {
		return vm.setErr(err)
	}

	log.Tracef("%v", newLogClosure(func() string {
		return fmt.Sprintf("stepping %s",
			disasmOpcode(&opcodeArray[opVal], data))
	}))

	if err := vm.executeOpcode(opVal, data); err != nil {
		if _, ok := err.(Error); !ok {
			// Failures escaping from helpers without a code are
			// not part of the machine's vocabulary.
			err = scriptError(ErrUnknown, err.Error())
		}
		return vm.setErr(err)
	}

	log.Tracef("%v", newLogClosure(func() string {
		var dstr, astr string

		// If we're tracing, dump the stacks.
		if vm.dstack.Depth() != 0 {
			dstr = "Stack:\n" + vm.dstack.String()
		}
		if vm.astack.Depth() != 0 {
			astr = "AltStack:\n" + vm.astack.String()
		}

		return dstr + astr
	}))

	return nil
}

// Continue executes the program until it ends or fails.  Normal termination
// is reported as nil; any other failure is returned exactly as Step would
// have returned it, and remains sticky.
func (vm *Machine) Continue() error {
	for {
		if err := vm.Step(); err != nil {
			if IsErrorCode(err, ErrProgramEnded) {
				return nil
			}
			return err
		}
	}
}

// validate records the machine-level preconditions for the installed
// program as the sticky error slot.
func (vm *Machine) validate() error {
	switch {
	case vm.env == nil:
		vm.err = scriptError(ErrEnvNotSet,
			"no environment is attached to the machine")
	case len(vm.program) > MaxScriptSize:
		str := fmt.Sprintf("program size %d exceeds max allowed "+
			"size %d", len(vm.program), MaxScriptSize)
		vm.err = scriptError(ErrScriptSize, str)
	default:
		vm.err = nil
	}
	return vm.err
}

// SetEnv attaches the environment consulted during execution.  The machine
// references the environment without copying it, so the caller must keep it
// alive for the machine's lifetime.
func (vm *Machine) SetEnv(env Environment) {
	vm.env = env
}

// SetProgram installs a program and rewinds the machine to its reset status.
// The alternate stack is always cleared; the main stack is cleared only when
// clearStack is set, which permits the two-phase evaluation where a first
// program leaves its results for a second one.
func (vm *Machine) SetProgram(program []byte, clearStack bool) error {
	vm.program = program
	vm.pc = 0
	vm.numOps = 0
	vm.lastCodeSep = 0
	vm.cond.clear()
	if clearStack {
		vm.dstack.stk = nil
	}
	vm.astack.stk = nil

	minimal := vm.hasFlag(ScriptVerifyMinimalData)
	vm.dstack.verifyMinimalData = minimal
	vm.astack.verifyMinimalData = minimal

	return vm.validate()
}

// Reset rewinds the machine to the start of the installed program and
// clears the sticky error.  The main stack is preserved; the alternate
// stack, the condition nest, and the operation counter are not.
func (vm *Machine) Reset() {
	vm.pc = 0
	vm.numOps = 0
	vm.lastCodeSep = 0
	vm.cond.clear()
	vm.astack.stk = nil
	vm.validate()
}

// IsResetStatus returns whether the machine is at the start of a valid
// program with no recorded failure, i.e. the state SetProgram and Reset
// leave behind when their preconditions hold.
func (vm *Machine) IsResetStatus() bool {
	return vm.err == nil && vm.pc == 0
}

// GetSigOpCount scans the installed program without executing it and
// returns the number of signature operations it contains.  OP_CHECKSIG and
// OP_CHECKSIGVERIFY count as one.  OP_CHECKMULTISIG and
// OP_CHECKMULTISIGVERIFY count as the preceding small-integer push when
// accurate is set and such a push precedes them, and as
// MaxPubKeysPerMultiSig otherwise.  It may only be called in the reset
// status.
func (vm *Machine) GetSigOpCount(accurate bool) (int, error) {
	if !vm.IsResetStatus() {
		return 0, scriptError(ErrNotReset,
			"signature operation scan requires the reset status")
	}

	numSigOps := 0
	lastOp := byte(OP_INVALIDOPCODE)
	for offset := 0; offset < len(vm.program); {
		opVal, _, next, err := parseOpcode(vm.program, offset)
		if err != nil {
			break
		}
		offset = next

		switch opVal {
		case OP_CHECKSIG, OP_CHECKSIGVERIFY:
			numSigOps++
		case OP_CHECKMULTISIG, OP_CHECKMULTISIGVERIFY:
			if accurate && lastOp >= OP_1 && lastOp <= OP_16 {
				numSigOps += int(lastOp - (OP_1 - 1))
			} else {
				numSigOps += MaxPubKeysPerMultiSig
			}
		}
		lastOp = opVal
	}

	return numSigOps, nil
}

// GetStack returns the contents of the primary stack as an array where the
// last item in the array is the top of the stack.
func (vm *Machine) GetStack() [][]byte {
	return getStack(&vm.dstack)
}

// SetStack sets the contents of the primary stack to the contents of the
// provided array where the last item in the array will be the top of the
// stack.
func (vm *Machine) SetStack(data [][]byte) {
	setStack(&vm.dstack, data)
}

// GetAltStack returns the contents of the alternate stack as an array where
// the last item in the array is the top of the stack.
func (vm *Machine) GetAltStack() [][]byte {
	return getStack(&vm.astack)
}

// getStack returns the contents of stack as a byte array bottom up.
func getStack(stack *stack) [][]byte {
	array := make([][]byte, stack.Depth())
	for i := range array {
		// PeekByteArray can't fail due to overflow, already checked
		array[len(array)-i-1], _ = stack.PeekByteArray(int32(i))
	}
	return array
}

// setStack sets the stack to the contents of the array where the last item
// in the array is the top item in the stack.
func setStack(stack *stack, data [][]byte) {
	// This can not error.  Only errors are for invalid arguments.
	_ = stack.DropN(stack.Depth())

	for i := range data {
		stack.PushByteArray(data[i])
	}
}
