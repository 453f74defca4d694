// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package parser turns raw model text into validated task specifications.
//
// # Description
//
// Parse is a strict structural boundary. The text is decoded with
// encoding/json and nothing else; it is never evaluated. The only leniency
// is removing one surrounding markdown code fence, which chat models add
// routinely. Any element that is missing a required field, or carries one
// of the wrong type, fails the whole parse: partially valid output is never
// partially trusted.
//
// Parse does not reorder, deduplicate or range-check week numbers. Those are
// planner decisions.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"
)

// TitleFormat composes the stored task title from week number and title.
const TitleFormat = "Week %d: %s"

// Parse decodes raw into task specs.
//
// # Inputs
//
//   - raw: Model completion text.
//   - durationWeeks: Requested duration. Only used in error messages; range
//     checking is left to the caller.
//
// # Outputs
//
//   - []datatypes.TaskSpec: One spec per array element, in input order. An
//     empty array yields an empty, non-nil slice.
//   - error: Wraps datatypes.ErrMalformedSynthesisOutput.
func Parse(raw string, durationWeeks int) ([]datatypes.TaskSpec, error) {
	body := StripCodeFence(raw)
	if body == "" {
		return nil, malformed("empty output")
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var elements []json.RawMessage
	if err := dec.Decode(&elements); err != nil {
		return nil, malformed("not a JSON array: %v", err)
	}
	if elements == nil {
		return nil, malformed("not a JSON array: null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, malformed("trailing content after JSON array")
	}

	specs := make([]datatypes.TaskSpec, 0, len(elements))
	for i, element := range elements {
		spec, err := parseElement(element)
		if err != nil {
			return nil, malformed("element %d of %d (expected %d weeks): %v",
				i, len(elements), durationWeeks, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseElement(raw json.RawMessage) (datatypes.TaskSpec, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return datatypes.TaskSpec{}, fmt.Errorf("not a JSON object")
	}

	week, err := requireInt(fields, "week_number")
	if err != nil {
		return datatypes.TaskSpec{}, err
	}
	title, err := requireString(fields, "title")
	if err != nil {
		return datatypes.TaskSpec{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return datatypes.TaskSpec{}, fmt.Errorf("title is blank")
	}
	description, err := requireString(fields, "description")
	if err != nil {
		return datatypes.TaskSpec{}, err
	}
	topics, err := optionalStrings(fields, "topics")
	if err != nil {
		return datatypes.TaskSpec{}, err
	}

	return datatypes.TaskSpec{
		WeekNumber:    week,
		Title:         fmt.Sprintf(TitleFormat, week, title),
		Description:   datatypes.StringPtr(description),
		Topics:        topics,
		ResourceLinks: []string{},
	}, nil
}

func requireInt(fields map[string]json.RawMessage, key string) (int, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return 0, fmt.Errorf("%s is missing", key)
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '"' {
		return 0, fmt.Errorf("%s must be an integer, got a string", key)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %s", key, n.String())
	}
	return int(v), nil
}

func requireString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return "", fmt.Errorf("%s is missing", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

func optionalStrings(fields map[string]json.RawMessage, key string) ([]string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return []string{}, nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// StripCodeFence trims whitespace and removes one surrounding markdown code
// fence such as a json-tagged or bare triple-backtick block. Text without
// a complete fence is returned trimmed but otherwise unchanged.
func StripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")
	// Drop the info string (e.g. "json") on the opening fence line.
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		if info := strings.TrimSpace(inner[:nl]); !strings.ContainsAny(info, "[{") {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", datatypes.ErrMalformedSynthesisOutput, fmt.Sprintf(format, args...))
}
