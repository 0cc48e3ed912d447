// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package machine

import (
	"fmt"
	"strings"
)

// disasmOpcode returns a human-readable disassembly of the provided opcode
// and its payload.  Data pushes show the payload in hex rather than the
// opcode name.
func disasmOpcode(op *opcode, data []byte) string {
	if op.value <= OP_PUSHDATA4 && op.value != OP_0 {
		return fmt.Sprintf("%x", data)
	}
	return op.name
}

// DisasmString formats a disassembled program for one line printing.  When
// the program fails to parse, the returned string contains the disassembled
// program up to the failure point, appended with the string '[error]', and
// the parse failure is returned.
func DisasmString(program []byte) (string, error) {
	var disbuf strings.Builder
	for offset := 0; offset < len(program); {
		opVal, data, next, err := parseOpcode(program, offset)
		if err != nil {
			if disbuf.Len() > 0 {
				disbuf.WriteByte(' ')
			}
			disbuf.WriteString("[error]")
			return disbuf.String(), err
		}
		offset = next

		if disbuf.Len() > 0 {
			disbuf.WriteByte(' ')
		}
		disbuf.WriteString(disasmOpcode(&opcodeArray[opVal], data))
	}
	return disbuf.String(), nil
}

// DisasmPC returns the string for the disassembly of the opcode that will
// be executed next when Step is called.
func (vm *Machine) DisasmPC() (string, error) {
	if vm.pc >= len(vm.program) {
		return "", scriptError(ErrProgramEnded,
			"end of program reached")
	}
	opVal, data, _, err := parseOpcode(vm.program, vm.pc)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04x: %s", vm.pc,
		disasmOpcode(&opcodeArray[opVal], data)), nil
}

// IsPushOnly returns whether or not the program only pushes data.
func IsPushOnly(program []byte) bool {
	for offset := 0; offset < len(program); {
		opVal, _, next, err := parseOpcode(program, offset)
		if err != nil {
			return false
		}
		offset = next

		// Note that OP_RESERVED is counted as a push instruction, and
		// OP_16 is the highest of the small integer pushes.
		if opVal > OP_16 {
			return false
		}
	}
	return true
}
