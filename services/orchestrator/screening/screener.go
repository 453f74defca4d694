// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package screening refuses plan goals that carry secrets or personal data.
//
// A goal is embedded verbatim in the prompt sent to a hosted model. The
// screener scans it against classification rules compiled from YAML (an
// embedded default set, or a file supplied by configuration) and reports
// findings at or above a minimum confidence.
package screening

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"
)

//go:embed rules.yaml
var defaultRules []byte

// Screener scans goal text. It is immutable after construction and safe for
// concurrent use.
type Screener struct {
	classifications []Classification
	minConfidence   ConfidenceLevel
}

// New builds a Screener from the embedded rules.
func New(minConfidence ConfidenceLevel) (*Screener, error) {
	return NewFromYAML(defaultRules, minConfidence)
}

// NewFromFile builds a Screener from a rules file on disk.
func NewFromFile(path string, minConfidence ConfidenceLevel) (*Screener, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read screening rules: %w", err)
	}
	return NewFromYAML(data, minConfidence)
}

// NewFromYAML parses and compiles rules. An empty minConfidence means Medium.
func NewFromYAML(data []byte, minConfidence ConfidenceLevel) (*Screener, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal screening rules: %w", err)
	}
	if err := file.compile(); err != nil {
		return nil, err
	}
	file.sortByPriority()

	if minConfidence == "" {
		minConfidence = Medium
	}
	if minConfidence.rank() == 0 {
		return nil, fmt.Errorf("invalid minimum confidence %q", minConfidence)
	}
	return &Screener{classifications: file.Classifications, minConfidence: minConfidence}, nil
}

// Scan returns every finding at or above the minimum confidence, highest
// priority classification first.
func (s *Screener) Scan(text string) []Finding {
	var findings []Finding
	for _, classification := range s.classifications {
		for _, pattern := range classification.Patterns {
			if pattern.Confidence.rank() < s.minConfidence.rank() {
				continue
			}
			if pattern.compiled.MatchString(text) {
				findings = append(findings, Finding{
					Classification: classification.Name,
					PatternID:      pattern.ID,
					Description:    pattern.Description,
					Confidence:     pattern.Confidence,
				})
			}
		}
	}
	return findings
}

// Check returns an error wrapping datatypes.ErrPolicyViolation when text has
// findings. The error names the pattern IDs, never the matched text.
func (s *Screener) Check(text string) error {
	findings := s.Scan(text)
	if len(findings) == 0 {
		return nil
	}
	ids := make([]string, 0, len(findings))
	for _, f := range findings {
		ids = append(ids, f.PatternID)
	}
	return fmt.Errorf("%w: goal contains %s data (%s)",
		datatypes.ErrPolicyViolation, findings[0].Classification, strings.Join(ids, ", "))
}
