// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package synthesis

import (
	"fmt"
	"strings"
)

// promptTemplate takes the duration twice and the goal once.
const promptTemplate = `You are an expert learning coach. Create a %[1]d-week syllabus for a beginner to learn '%[2]s'.

Please structure the output as a JSON list of objects. Each object represents a week and should have the following keys:
- "week_number": An integer from 1 to %[1]d
- "title": A clear, concise title for that week's theme.
- "description": A short description of what will be covered.
- "topics": A list of 3-4 specific topics or sub-tasks for that week.

Example format:
[
    {"week_number": 1, "title": "Introduction to Python", "description": "Learn the basics.", "topics": ["Variables", "Data Types", "Loops"]},
    ...
]

The list must contain exactly %[1]d objects, one per week, in week order.
Do not include any text before or after the JSON list. The entire response must be a valid, parseable JSON list.`

// BuildPrompt renders the syllabus prompt. It is a pure function of its
// inputs: the same goal and duration always produce the same text.
func BuildPrompt(goal string, durationWeeks int) string {
	return fmt.Sprintf(promptTemplate, durationWeeks, strings.TrimSpace(goal))
}
