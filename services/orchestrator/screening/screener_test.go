// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package screening

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"
)

func TestScreener_EmbeddedRules(t *testing.T) {
	screener, err := New("")
	require.NoError(t, err)

	tests := []struct {
		name      string
		goal      string
		wantClass string
		wantID    string
	}{
		{name: "ordinary goal", goal: "Learn Rust for embedded systems"},
		{name: "aws key", goal: "Learn AWS with AKIA1234567890123456", wantClass: "secret", wantID: "AWS_ACCESS_KEY_ID"},
		{name: "ssn", goal: "Learn taxes, my ssn is 123-45-6789", wantClass: "pii", wantID: "US_SSN"},
		{name: "password", goal: "Learn Linux, root password: hunter2hunter2", wantClass: "secret", wantID: "PASSWORD_ASSIGNMENT"},
		{name: "email below default confidence", goal: "Learn Go, mail me at jdoe@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := screener.Scan(tt.goal)
			err := screener.Check(tt.goal)
			if tt.wantClass == "" {
				assert.Empty(t, findings)
				assert.NoError(t, err)
				return
			}
			require.NotEmpty(t, findings)
			assert.Equal(t, tt.wantClass, findings[0].Classification)
			assert.Equal(t, tt.wantID, findings[0].PatternID)
			assert.ErrorIs(t, err, datatypes.ErrPolicyViolation)
			assert.Contains(t, err.Error(), tt.wantID)
		})
	}
}

func TestScreener_CheckDoesNotLeakMatch(t *testing.T) {
	screener, err := New(High)
	require.NoError(t, err)

	err = screener.Check("Learn AWS with AKIA1234567890123456")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "AKIA1234567890123456")
}

func TestScreener_LowConfidenceIncludesEmail(t *testing.T) {
	screener, err := New(Low)
	require.NoError(t, err)
	assert.ErrorIs(t, screener.Check("mail jdoe@example.com"), datatypes.ErrPolicyViolation)
}

func TestScreener_PriorityOrder(t *testing.T) {
	rules := []byte(`
classifications:
  - name: low
    priority: 1
    patterns:
      - {id: A, regex: 'foo', confidence: high}
  - name: high
    priority: 9
    patterns:
      - {id: B, regex: 'foo', confidence: high}
`)
	screener, err := NewFromYAML(rules, High)
	require.NoError(t, err)
	findings := screener.Scan("foo")
	require.Len(t, findings, 2)
	assert.Equal(t, "high", findings[0].Classification)
}

func TestScreener_InvalidRules(t *testing.T) {
	_, err := NewFromYAML([]byte("classifications: [{name: x, patterns: [{id: A, regex: '(', confidence: high}]}]"), "")
	assert.Error(t, err)

	_, err = NewFromYAML([]byte("classifications: [{name: x, patterns: [{id: A, regex: 'a', confidence: extreme}]}]"), "")
	assert.Error(t, err)

	_, err = New("certain")
	assert.Error(t, err)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
classifications:
  - name: internal
    priority: 1
    patterns:
      - {id: CODENAME, regex: '(?i)project\s+falcon', confidence: high}
`), 0600))

	screener, err := NewFromFile(path, "")
	require.NoError(t, err)
	assert.ErrorIs(t, screener.Check("Learn about Project Falcon"), datatypes.ErrPolicyViolation)

	_, err = NewFromFile(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}
