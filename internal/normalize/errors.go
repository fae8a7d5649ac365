// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import "errors"

// ErrMalformedInput matches every *MalformedInputError via errors.Is.
var ErrMalformedInput = errors.New("malformed input")

// MalformedInputError reports input that cannot be parsed as HTML at all.
// It is the only error conversion returns.
type MalformedInputError struct {
	Reason string
}

func (e *MalformedInputError) Error() string {
	return "malformed input: " + e.Reason
}

// Is lets errors.Is(err, ErrMalformedInput) succeed.
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}
