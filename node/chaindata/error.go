// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2025 The Embercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"fmt"
)

// AssertError identifies an error that indicates an internal ledger
// consistency violation, such as a block spending an outpoint the utxo set
// does not contain.  It signals an invariant breach: block application must
// halt rather than corrupt the set.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "ledger consistency violation: " + string(e)
}

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrMalformedTransaction indicates a transaction is structurally
	// invalid: no inputs, no outputs, a duplicate input outpoint, or a
	// value outside the allowed range.
	ErrMalformedTransaction ErrorCode = iota

	// ErrMissingInput indicates a transaction input references an outpoint
	// that is unknown to the utxo set, either because it never existed or
	// because it was already spent by a confirmed transaction.
	ErrMissingInput

	// ErrDoubleSpend indicates a transaction input references an outpoint
	// that is already reserved by an earlier-admitted pending transaction.
	// Admission is strictly first come, first served.
	ErrDoubleSpend

	// ErrInsufficientFunds indicates the sum of a transaction's inputs is
	// smaller than the sum of its outputs.
	ErrInsufficientFunds

	// ErrInvalidSignature indicates an input signature does not verify
	// against the referenced output's locking public key on the declared
	// curve, or the signature or key could not be decoded at all.
	ErrInvalidSignature

	// ErrBadMerkleRoot indicates the calculated merkle root of a block
	// does not match the expected value in its header.
	ErrBadMerkleRoot

	// ErrMissingCoinbase indicates the first transaction of a block is not
	// a coinbase.
	ErrMissingCoinbase

	// ErrBadPrevBlock indicates a block header does not link to the
	// current chain tip.
	ErrBadPrevBlock
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrMalformedTransaction: "ErrMalformedTransaction",
	ErrMissingInput:         "ErrMissingInput",
	ErrDoubleSpend:          "ErrDoubleSpend",
	ErrInsufficientFunds:    "ErrInsufficientFunds",
	ErrInvalidSignature:     "ErrInvalidSignature",
	ErrBadMerkleRoot:        "ErrBadMerkleRoot",
	ErrMissingCoinbase:      "ErrMissingCoinbase",
	ErrBadPrevBlock:         "ErrBadPrevBlock",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation.  It is used to indicate that
// processing of a transaction or block failed due to one of the many
// validation rules.  The caller can use type assertions to determine if a
// failure was specifically due to a rule violation and access the ErrorCode
// field to ascertain the specific reason for the rule violation.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error, optional
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e RuleError) Unwrap() error {
	return e.Err
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// IsRuleErrorCode reports whether err is a RuleError carrying the given code.
func IsRuleErrorCode(err error, c ErrorCode) bool {
	rerr, ok := err.(RuleError)
	return ok && rerr.ErrorCode == c
}
