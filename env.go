// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package machine

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ScriptFlags is a bitmask defining additional operations or tests that will
// be done when executing a program.
type ScriptFlags uint32

const (
	// ScriptVerifyMinimalData defines that data pushes must use the
	// smallest possible opcode and that numbers popped off the stack must
	// be minimally encoded.
	ScriptVerifyMinimalData ScriptFlags = 1 << iota

	// ScriptVerifyMinimalIf defines that the operand of OP_IF and
	// OP_NOTIF must be an empty vector or [0x01].
	ScriptVerifyMinimalIf

	// ScriptDiscourageUpgradableNops defines whether to verify that
	// NOP1 and NOP4 through NOP10 are reserved for future soft-fork
	// upgrades.  This flag must not be used for consensus critical code
	// nor applied to blocks as this flag is only for stricter standard
	// transaction checks.  This flag is only applied when the above
	// opcodes are executed.
	ScriptDiscourageUpgradableNops

	// ScriptEnableMonolithOpcodes defines whether the byte operation
	// opcodes OP_CAT, OP_SPLIT, OP_AND, OP_OR, OP_XOR, OP_DIV, OP_MOD,
	// OP_NUM2BIN, and OP_BIN2NUM are executable.  When the flag is clear
	// they are treated as disabled.
	ScriptEnableMonolithOpcodes

	// ScriptVerifyCheckLockTimeVerify defines whether to verify that
	// a transaction output is spendable based on the locktime.
	// This is BIP0065.
	ScriptVerifyCheckLockTimeVerify

	// ScriptVerifyCheckSequenceVerify defines whether to allow execution
	// pathways of a script to be restricted based on the age of the
	// output being spent.  This is BIP0112.
	ScriptVerifyCheckSequenceVerify

	// ScriptStrictMultiSig defines whether to verify the stack item
	// used by OP_CHECKMULTISIG is zero length.
	ScriptStrictMultiSig

	// ScriptVerifyDERSignatures defines that signatures are required
	// to comply with the DER format.
	ScriptVerifyDERSignatures

	// ScriptVerifyStrictEncoding defines that signature scripts and
	// public keys must follow the strict encoding requirements.
	ScriptVerifyStrictEncoding

	// ScriptVerifyLowS defines that signatures are required to comply
	// with the DER format and whose S value is <= order / 2.  This is
	// rule 5 of BIP0062.
	ScriptVerifyLowS
)

const (
	// LockTimeThreshold is the number below which a lock time is
	// interpreted to be a block number.  Since an average of one block
	// is generated per 10 minutes, this allows blocks for about 9,512
	// years.
	LockTimeThreshold = 5e8 // Tue Nov 5 00:53:20 1985 UTC

	// maxTxInSequenceNum is the maximum sequence number an input can
	// carry.  An input with this sequence is finalized and exempt from
	// lock time enforcement, which is exactly what OP_CHECKLOCKTIMEVERIFY
	// must prevent.
	maxTxInSequenceNum uint32 = 0xffffffff

	// sequenceLockTimeDisabled is a flag that if set on a transaction
	// input's sequence number, the sequence number will not be interpreted
	// as a relative lock time.
	sequenceLockTimeDisabled = 1 << 31

	// sequenceLockTimeIsSeconds is a flag that if set on a transaction
	// input's sequence number, the relative lock time has units of 512
	// seconds.
	sequenceLockTimeIsSeconds = 1 << 22

	// sequenceLockTimeMask is a mask that extracts the relative lock time
	// when masked against the transaction input sequence number.
	sequenceLockTimeMask = 0x0000ffff
)

// Hash type bytes a signature may commit to.  Only the encoding is checked
// in this package; producing the digest is the SigHash callback's concern.
const (
	sigHashAll          = 0x01
	sigHashNone         = 0x02
	sigHashSingle       = 0x03
	sigHashAnyOneCanPay = 0x80
)

// halfOrder is used to tame ECDSA malleability (see BIP0062).
var halfOrder = new(big.Int).Rsh(btcec.S256().N, 1)

// Environment supplies the policy surface the machine consults while
// executing a program.  The machine only reads from its environment; the
// flag set and any transaction context are never written by opcode
// execution.  An environment must be kept alive for the lifetime of every
// machine referencing it, and may be shared across machines running in
// parallel provided its implementation is safe for concurrent reads.
type Environment interface {
	// Flags returns the active verification flags.
	Flags() ScriptFlags

	// CheckSig verifies a single signature over the script code currently
	// in effect, against the provided public key.  How the digest is
	// produced is the implementation's concern; the machine only forwards
	// the raw items it popped.
	CheckSig(sig, pubKey, scriptCode []byte, flags ScriptFlags) bool

	// CheckLockTime reports whether the lock time read (not popped) from
	// the top of the stack is satisfied.  A nil return allows execution
	// to continue.
	CheckLockTime(lockTime int64) error

	// CheckSequence reports whether the relative lock time read from the
	// top of the stack is satisfied.
	CheckSequence(sequence int64) error
}

// isOpcodeAlwaysDisabled returns whether the opcode belongs to the
// permanently disabled set.  These fail regardless of flags, even on a
// non-executing branch.
func isOpcodeAlwaysDisabled(op byte) bool {
	switch op {
	case OP_INVERT, OP_2MUL, OP_2DIV, OP_MUL, OP_LSHIFT, OP_RSHIFT:
		return true
	}
	return false
}

// isOpcodeMonolithGated returns whether the opcode is one of the byte
// operation opcodes that only execute once ScriptEnableMonolithOpcodes is
// set.  The set is deliberately disjoint from the permanently disabled one.
func isOpcodeMonolithGated(op byte) bool {
	switch op {
	case OP_CAT, OP_SPLIT, OP_AND, OP_OR, OP_XOR, OP_DIV, OP_MOD,
		OP_NUM2BIN, OP_BIN2NUM:

		return true
	}
	return false
}

// IsOpcodeDisabled returns whether the opcode may not appear in a program
// executed under the provided flags.
func IsOpcodeDisabled(op byte, flags ScriptFlags) bool {
	if isOpcodeAlwaysDisabled(op) {
		return true
	}
	if isOpcodeMonolithGated(op) {
		return flags&ScriptEnableMonolithOpcodes == 0
	}
	return false
}

// verifyLockTime is a helper function used to validate locktimes.
func verifyLockTime(txLockTime, threshold, lockTime int64) error {
	// The lock times in both the script and transaction must be of the
	// same type.
	if !((txLockTime < threshold && lockTime < threshold) ||
		(txLockTime >= threshold && lockTime >= threshold)) {
		str := fmt.Sprintf("mismatched locktime types -- tx locktime "+
			"%d, stack locktime %d", txLockTime, lockTime)
		return scriptError(ErrCheckLockTimeVerify, str)
	}

	if lockTime > txLockTime {
		str := fmt.Sprintf("locktime requirement not satisfied -- "+
			"locktime is greater than the transaction locktime: "+
			"%d > %d", lockTime, txLockTime)
		return scriptError(ErrCheckLockTimeVerify, str)
	}

	return nil
}

// TxContext is an Environment backed by the numbers a transaction validator
// extracts from the input under evaluation.  It keeps the machine free of
// any transaction model: the caller copies in the lock time, the sequence of
// the spending input, and the transaction version, and supplies a callback
// that produces the signature digest for a given script code and hash type.
type TxContext struct {
	// VerifyFlags is the active flag set returned by Flags.
	VerifyFlags ScriptFlags

	// LockTime is the lock time of the spending transaction.
	LockTime uint32

	// Sequence is the sequence number of the input being evaluated.
	Sequence uint32

	// TxVersion is the version of the spending transaction.  Relative
	// lock times only apply from version 2 onward.
	TxVersion int32

	// SigHash returns the digest a signature in this input commits to.
	// The hash type is the final byte stripped from the signature and the
	// script code is the program since the most recent OP_CODESEPARATOR.
	// A nil SigHash causes every signature check to fail.
	SigHash func(scriptCode []byte, hashType byte) chainhash.Hash

	// Cache, when non-nil, memoizes successful signature verifications.
	Cache *SigCache
}

// Flags returns the active verification flags.
func (c *TxContext) Flags() ScriptFlags {
	return c.VerifyFlags
}

// CheckLockTime enforces the BIP0065 rules against the lock time of the
// spending transaction.
func (c *TxContext) CheckLockTime(lockTime int64) error {
	// In the rare event that the argument needs to be < 0 due to some
	// arithmetic being done first, you can always use
	// 0 OP_MAX OP_CHECKLOCKTIMEVERIFY.
	if lockTime < 0 {
		str := fmt.Sprintf("negative lock time: %d", lockTime)
		return scriptError(ErrCheckLockTimeVerify, str)
	}

	err := verifyLockTime(int64(c.LockTime), LockTimeThreshold, lockTime)
	if err != nil {
		return err
	}

	// The lock time feature can also be disabled, thereby bypassing
	// OP_CHECKLOCKTIMEVERIFY, if every transaction input has been
	// finalized by setting its sequence to the maximum value.  This
	// condition would result in the transaction being allowed into the
	// blockchain making the opcode ineffective.
	//
	// This condition is prevented by enforcing that the input being used
	// by the opcode is unlocked (its sequence number is less than the max
	// value).  This is sufficient to prove correctness without having to
	// check every input.
	if c.Sequence == maxTxInSequenceNum {
		return scriptError(ErrCheckLockTimeVerify,
			"transaction input is finalized")
	}

	return nil
}

// CheckSequence enforces the BIP0112 rules against the sequence number of
// the input being evaluated.
func (c *TxContext) CheckSequence(sequence int64) error {
	if sequence < 0 {
		str := fmt.Sprintf("negative sequence: %d", sequence)
		return scriptError(ErrCheckSequenceVerify, str)
	}

	// To provide for future soft-fork extensibility, if the operand has
	// the disabled lock-time flag set, CHECKSEQUENCEVERIFY behaves as a
	// NOP.
	if sequence&sequenceLockTimeDisabled != 0 {
		return nil
	}

	// Transaction version numbers not high enough to trigger CSV rules
	// must fail.
	if uint32(c.TxVersion) < 2 {
		str := fmt.Sprintf("invalid transaction version: %d",
			c.TxVersion)
		return scriptError(ErrCheckSequenceVerify, str)
	}

	// Sequence numbers with their most significant bit set are not
	// consensus constrained.  Testing that the transaction's sequence
	// number does not have this bit set prevents using this property
	// to get around a CHECKSEQUENCEVERIFY check.
	txSequence := int64(c.Sequence)
	if txSequence&sequenceLockTimeDisabled != 0 {
		str := fmt.Sprintf("transaction sequence has sequence "+
			"locktime disabled bit set: 0x%x", txSequence)
		return scriptError(ErrCheckSequenceVerify, str)
	}

	// Mask off non-consensus bits before doing comparisons.
	lockTimeMask := int64(sequenceLockTimeIsSeconds |
		sequenceLockTimeMask)
	err := verifyLockTime(txSequence&lockTimeMask,
		sequenceLockTimeIsSeconds, sequence&lockTimeMask)
	if err != nil {
		// Re-key the generic lock time failure to the sequence kind so
		// callers can tell the two opcodes apart.
		return scriptError(ErrCheckSequenceVerify, err.Error())
	}
	return nil
}

// checkHashTypeEncoding returns whether or not the passed hashtype adheres
// to the strict encoding requirements if enabled.
func checkHashTypeEncoding(hashType byte, flags ScriptFlags) bool {
	if flags&ScriptVerifyStrictEncoding == 0 {
		return true
	}

	sigHashType := hashType & ^byte(sigHashAnyOneCanPay)
	return sigHashType >= sigHashAll && sigHashType <= sigHashSingle
}

// checkPubKeyEncoding returns whether or not the passed public key adheres
// to the strict encoding requirements if enabled.
func checkPubKeyEncoding(pubKey []byte, flags ScriptFlags) bool {
	if flags&ScriptVerifyStrictEncoding == 0 {
		return true
	}

	if len(pubKey) == 33 && (pubKey[0] == 0x02 || pubKey[0] == 0x03) {
		// Compressed
		return true
	}
	if len(pubKey) == 65 && pubKey[0] == 0x04 {
		// Uncompressed
		return true
	}
	return false
}

// checkSignatureEncoding returns whether or not the passed signature adheres
// to the strict encoding requirements if enabled.
func checkSignatureEncoding(sig []byte, flags ScriptFlags) bool {
	if flags&(ScriptVerifyDERSignatures|ScriptVerifyLowS|
		ScriptVerifyStrictEncoding) == 0 {

		return true
	}

	// The format of a DER encoded signature is as follows:
	//
	// 0x30 <total length> 0x02 <length of R> <R> 0x02 <length of S> <S>
	if len(sig) < 8 || len(sig) > 72 {
		return false
	}
	if sig[0] != 0x30 || int(sig[1]) != len(sig)-2 {
		return false
	}

	rLen := int(sig[3])
	if rLen+5 > len(sig) {
		return false
	}
	sLen := int(sig[rLen+5])
	if rLen+sLen+6 != len(sig) {
		return false
	}

	if sig[2] != 0x02 || rLen == 0 || sig[4]&0x80 != 0 {
		return false
	}
	if rLen > 1 && sig[4] == 0x00 && sig[5]&0x80 == 0 {
		return false
	}

	if sig[rLen+4] != 0x02 || sLen == 0 || sig[rLen+6]&0x80 != 0 {
		return false
	}
	if sLen > 1 && sig[rLen+6] == 0x00 && sig[rLen+7]&0x80 == 0 {
		return false
	}

	// Verify the S value is <= half the order of the curve.  This check
	// is done because when it is higher, the complement modulo the order
	// can be used instead which is a shorter encoding by 1 byte.
	if flags&ScriptVerifyLowS != 0 {
		sValue := new(big.Int).SetBytes(sig[rLen+6 : rLen+6+sLen])
		if sValue.Cmp(halfOrder) > 0 {
			return false
		}
	}

	return true
}

// CheckSig verifies the signature against the public key over the digest
// produced by the SigHash callback.  Successful verifications are memoized
// in the cache when one is configured.
func (c *TxContext) CheckSig(sigBytes, pubKeyBytes, scriptCode []byte, flags ScriptFlags) bool {
	// The consensus rules dictate that an empty signature is simply an
	// unsatisfied check, not a malformed program.
	if len(sigBytes) == 0 || c.SigHash == nil {
		return false
	}

	// Trim off the hash type from the end of the signature and check it.
	hashType := sigBytes[len(sigBytes)-1]
	sigBytes = sigBytes[:len(sigBytes)-1]
	if !checkHashTypeEncoding(hashType, flags) {
		return false
	}
	if !checkSignatureEncoding(sigBytes, flags) {
		return false
	}
	if !checkPubKeyEncoding(pubKeyBytes, flags) {
		return false
	}

	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false
	}

	var signature *ecdsa.Signature
	if flags&(ScriptVerifyDERSignatures|ScriptVerifyStrictEncoding) != 0 {
		signature, err = ecdsa.ParseDERSignature(sigBytes)
	} else {
		signature, err = ecdsa.ParseSignature(sigBytes)
	}
	if err != nil {
		return false
	}

	sigHash := c.SigHash(scriptCode, hashType)
	if c.Cache != nil {
		if c.Cache.Exists(sigHash, signature, pubKey) {
			return true
		}
	}

	if !signature.Verify(sigHash[:], pubKey) {
		return false
	}

	if c.Cache != nil {
		c.Cache.Add(sigHash, signature, pubKey)
	}
	return true
}
