// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package validators checks user-authored records before they are written to
// the local store or sent to the backend.
//
// A [Validator] validates a value and can be restricted to a subset of its
// fields. Services wrap its errors into their own invalid-data error.
package validators

import "context"

// Validator checks a record. When fields are given only those are checked;
// an unknown field name yields ErrUnknownField.
type Validator interface {
	Validate(ctx context.Context, v any, fields ...string) error
}
