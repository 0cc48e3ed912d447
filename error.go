// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2019 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package machine

import (
	"fmt"
)

// ErrorCode identifies a kind of script machine error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrEnvNotSet is returned when a program is installed or executed
	// before an environment has been associated with the machine.
	ErrEnvNotSet ErrorCode = iota

	// ErrScriptSize is returned when a program is larger than
	// MaxScriptSize.
	ErrScriptSize

	// ErrNotReset is returned when an operation that may only run on a
	// freshly installed or reset machine, such as the signature operation
	// scan, is invoked mid-execution or after a failure.
	ErrNotReset

	// ErrPushSize is returned when a push payload, or the result of a
	// byte operation such as OP_CAT, exceeds MaxScriptElementSize.
	ErrPushSize

	// ErrOpCount is returned when the number of executed non-push
	// opcodes exceeds MaxOpsPerScript.
	ErrOpCount

	// ErrStackSize is returned when the combined depth of the main and
	// alternate stacks exceeds maxStackSize after an opcode completes.
	ErrStackSize

	// ErrInvalidStackOperation is returned when a stack operation is
	// attempted with insufficient items, such as popping an empty stack
	// or peeking past the bottom.
	ErrInvalidStackOperation

	// ErrBadOpcode is returned when the program contains an opcode with
	// no defined behavior, a reserved opcode on an executing branch, or
	// a push whose payload runs past the end of the program.
	ErrBadOpcode

	// ErrDisabledOpcode is returned when a disabled opcode is
	// encountered anywhere in the program, even on a non-executing
	// branch.
	ErrDisabledOpcode

	// ErrUnbalancedConditional is returned when OP_ELSE or OP_ENDIF have
	// no matching OP_IF, or the program ends with an open conditional
	// scope.
	ErrUnbalancedConditional

	// ErrMinimalData is returned when the minimal data flag is set and a
	// push was not performed with the shortest possible opcode.
	ErrMinimalData

	// ErrMinimalIf is returned when the minimal if flag is set and the
	// operand of OP_IF or OP_NOTIF is not an empty vector or [0x01].
	ErrMinimalIf

	// ErrDiscourageUpgradableNops is returned when the flag to
	// discourage the upgradable NOPs is set and one of them is executed.
	ErrDiscourageUpgradableNops

	// ErrVerify is returned when OP_VERIFY pops a false value.
	ErrVerify

	// ErrEqualVerify is returned when OP_EQUALVERIFY compares two
	// unequal items.
	ErrEqualVerify

	// ErrNumEqualVerify is returned when OP_NUMEQUALVERIFY compares two
	// unequal numbers.
	ErrNumEqualVerify

	// ErrCheckSigVerify is returned when OP_CHECKSIGVERIFY fails to
	// verify the signature.
	ErrCheckSigVerify

	// ErrCheckMultiSigVerify is returned when OP_CHECKMULTISIGVERIFY
	// fails to verify the signatures.
	ErrCheckMultiSigVerify

	// ErrSigNullDummy is returned when the strict multisig flag is set
	// and the extra dummy element popped by OP_CHECKMULTISIG is not an
	// empty vector.
	ErrSigNullDummy

	// ErrPubKeyCount is returned when OP_CHECKMULTISIG is provided a
	// public key count outside [0, MaxPubKeysPerMultiSig].
	ErrPubKeyCount

	// ErrSigCount is returned when OP_CHECKMULTISIG is provided a
	// signature count that is negative or larger than the public key
	// count.
	ErrSigCount

	// ErrCheckLockTimeVerify is returned when the environment rejects
	// the lock time examined by OP_CHECKLOCKTIMEVERIFY.
	ErrCheckLockTimeVerify

	// ErrCheckSequenceVerify is returned when the environment rejects
	// the sequence examined by OP_CHECKSEQUENCEVERIFY.
	ErrCheckSequenceVerify

	// ErrEarlyReturn is returned when OP_RETURN is executed.
	ErrEarlyReturn

	// ErrDivByZero is returned when OP_DIV is executed with a zero
	// divisor.
	ErrDivByZero

	// ErrModByZero is returned when OP_MOD is executed with a zero
	// divisor.
	ErrModByZero

	// ErrInvalidOperandSize is returned when the operands of a bitwise
	// opcode are not the same size.
	ErrInvalidOperandSize

	// ErrInvalidSplitRange is returned when the split position given to
	// OP_SPLIT is outside the operand.
	ErrInvalidSplitRange

	// ErrImpossibleEncoding is returned when OP_NUM2BIN is asked to fit
	// a number into fewer bytes than its minimal encoding occupies.
	ErrImpossibleEncoding

	// ErrInvalidNumberRange is returned when bytes interpreted as a
	// number are too long or, when required, not minimally encoded.
	ErrInvalidNumberRange

	// ErrProgramEnded is returned by Step when the program counter moves
	// past the final opcode with all conditional scopes closed.  It
	// marks normal termination and is translated to nil by Continue.
	ErrProgramEnded

	// ErrUnknown is returned when execution fails with an error that
	// does not carry one of the codes above.
	ErrUnknown

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrEnvNotSet:                "ErrEnvNotSet",
	ErrScriptSize:               "ErrScriptSize",
	ErrNotReset:                 "ErrNotReset",
	ErrPushSize:                 "ErrPushSize",
	ErrOpCount:                  "ErrOpCount",
	ErrStackSize:                "ErrStackSize",
	ErrInvalidStackOperation:    "ErrInvalidStackOperation",
	ErrBadOpcode:                "ErrBadOpcode",
	ErrDisabledOpcode:           "ErrDisabledOpcode",
	ErrUnbalancedConditional:    "ErrUnbalancedConditional",
	ErrMinimalData:              "ErrMinimalData",
	ErrMinimalIf:                "ErrMinimalIf",
	ErrDiscourageUpgradableNops: "ErrDiscourageUpgradableNops",
	ErrVerify:                   "ErrVerify",
	ErrEqualVerify:              "ErrEqualVerify",
	ErrNumEqualVerify:           "ErrNumEqualVerify",
	ErrCheckSigVerify:           "ErrCheckSigVerify",
	ErrCheckMultiSigVerify:      "ErrCheckMultiSigVerify",
	ErrSigNullDummy:             "ErrSigNullDummy",
	ErrPubKeyCount:              "ErrPubKeyCount",
	ErrSigCount:                 "ErrSigCount",
	ErrCheckLockTimeVerify:      "ErrCheckLockTimeVerify",
	ErrCheckSequenceVerify:      "ErrCheckSequenceVerify",
	ErrEarlyReturn:              "ErrEarlyReturn",
	ErrDivByZero:                "ErrDivByZero",
	ErrModByZero:                "ErrModByZero",
	ErrInvalidOperandSize:       "ErrInvalidOperandSize",
	ErrInvalidSplitRange:        "ErrInvalidSplitRange",
	ErrImpossibleEncoding:       "ErrImpossibleEncoding",
	ErrInvalidNumberRange:       "ErrInvalidNumberRange",
	ErrProgramEnded:             "ErrProgramEnded",
	ErrUnknown:                  "ErrUnknown",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies a script machine error.  It is used to indicate three
// classes of errors:
//  1. Machine configuration failures such as installing a program without an
//     environment
//  2. Program decode failures such as a push that runs past the end of the
//     program
//  3. Execution failures raised by opcode handlers or the environment
//
// The caller can use type assertions to determine if an error is an Error and
// access the ErrorCode field to ascertain the specific reason for the
// failure.
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// scriptError creates an Error given a set of arguments.
func scriptError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether or not the provided error is a script error
// with the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	serr, ok := err.(Error)
	return ok && serr.ErrorCode == c
}
