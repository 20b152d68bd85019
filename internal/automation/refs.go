package automation

import (
	"regexp"
	"sort"
	"strconv"
)

// Task references are recognized in two textual forms, checked in order:
// a "task"-prefixed token with separators before the digits ("task-42",
// "Task #7", "TASK_9") and a bare "#<digits>" token. Matching is
// case-insensitive.
var taskRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\btask[-_ :#]+(\d+)\b`),
	regexp.MustCompile(`#(\d+)\b`),
}

// ExtractTaskNumbers returns the distinct task numbers referenced in a
// commit message, in ascending order. Zero is never a valid task number.
// Malformed or empty input yields an empty result, never an error.
func ExtractTaskNumbers(message string) []int {
	seen := make(map[int]struct{})

	for _, pattern := range taskRefPatterns {
		for _, match := range pattern.FindAllStringSubmatch(message, -1) {
			n, err := strconv.Atoi(match[1])
			if err != nil || n == 0 {
				continue
			}
			seen[n] = struct{}{}
		}
	}

	numbers := make([]int, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}
