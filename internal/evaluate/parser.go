package evaluate

import (
	"strconv"
	"strings"
	"unicode"
)

// ScoreLineParser scans the generated text for the first line containing
// "score" (case-insensitive) and extracts the first integer on that line.
// No qualifying line means score 0. The heuristic is brittle by construction;
// a structured-output contract should replace it rather than patching it.
type ScoreLineParser struct{}

// Parse returns the extracted score clamped to [0,10] and the full generated
// text as feedback.
func (ScoreLineParser) Parse(raw string) (int, string) {
	for _, line := range strings.Split(raw, "\n") {
		if !strings.Contains(strings.ToLower(line), "score") {
			continue
		}
		return clampScore(firstInteger(line)), raw
	}
	return 0, raw
}

// firstInteger returns the first run of digits on the line as an integer,
// or 0 when the line has no digits.
func firstInteger(line string) int {
	start := -1
	for i, r := range line {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, _ := strconv.Atoi(line[start:i])
			return n
		}
	}
	if start >= 0 {
		n, _ := strconv.Atoi(line[start:])
		return n
	}
	return 0
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 10 {
		return 10
	}
	return n
}
