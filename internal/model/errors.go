// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is the cause of a ValidationError for blank submissions.
var ErrEmptyInput = errors.New("message is empty")

// ValidationError reports input the user can fix. It never changes
// transcript state and is the only error shown to the user.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// SequenceError reports a call that violates the turn ordering contract,
// such as updating an answer when none is open. The store is left unchanged.
type SequenceError struct {
	Op     string
	Reason string
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("transcript %s: %s", e.Op, e.Reason)
}

// IsSequenceError reports whether err is or wraps a SequenceError.
func IsSequenceError(err error) bool {
	var se *SequenceError
	return errors.As(err, &se)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
