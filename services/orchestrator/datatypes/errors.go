// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "errors"

// =============================================================================
// Error Taxonomy
// =============================================================================
//
// Every layer wraps one of these sentinels with fmt.Errorf("...: %w", ...)
// so callers classify failures with errors.Is regardless of backend.

var (
	// ErrStoreUnavailable reports a transport or commit failure in the
	// backing store. Fatal to the enclosing operation.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSynthesisUnavailable reports that the generative model could not
	// be reached, timed out, rejected the credential, or returned nothing.
	ErrSynthesisUnavailable = errors.New("synthesis unavailable")

	// ErrMalformedSynthesisOutput reports model output that failed
	// structural or field validation.
	ErrMalformedSynthesisOutput = errors.New("malformed synthesis output")

	// ErrForeignKeyViolation reports a task insert for a plan that does
	// not exist.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrNotFound reports a lookup by identifier that matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest reports a request with an invalid shape, such as a
	// blank goal, a non-positive duration or out-of-range pagination.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrPolicyViolation reports a goal that contains data which must not
	// be sent to an external model (credentials, personal identifiers).
	ErrPolicyViolation = errors.New("policy violation")
)
