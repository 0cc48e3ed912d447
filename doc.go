// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package machine implements a stack-based interpreter for bitcoin-style
transaction scripts.

A Machine executes one program at a time against a pair of stacks: the main
data stack, which may be carried across programs to support the usual
two-phase signature script / public key script evaluation, and an alternate
stack that is scoped to a single program.  Policy decisions, such as which
opcodes are currently disabled, whether pushes and numbers must be minimally
encoded, and how signatures, lock times, and sequences are validated, are
delegated to a caller-supplied Environment so the machine itself carries no
chain or transaction knowledge.

# Errors

Errors returned by this package are of type Error.  The ErrorCode field
identifies the specific failure, and the IsErrorCode function may be used to
test for a particular kind.  Once a Machine has failed, the same error is
returned from every further Step or Continue call until a new program is
installed or the machine is reset.
*/
package machine
