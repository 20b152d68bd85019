package automation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractTaskNumbers(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    []int
	}{
		{
			name:    "hash reference",
			message: "fixes #12",
			want:    []int{12},
		},
		{
			name:    "task dash reference",
			message: "task-42 progress",
			want:    []int{42},
		},
		{
			name:    "task with hash and space",
			message: "Finished Task #7",
			want:    []int{7},
		},
		{
			name:    "underscore and colon separators",
			message: "TASK_9 and task: 3",
			want:    []int{3, 9},
		},
		{
			name:    "case insensitive",
			message: "TASK-5 done",
			want:    []int{5},
		},
		{
			name:    "multiple references sorted",
			message: "wip on #30, #4 and task-12",
			want:    []int{4, 12, 30},
		},
		{
			name:    "duplicates collapse",
			message: "fixes #8, closes task-8, see #8",
			want:    []int{8},
		},
		{
			name:    "zero is not a task number",
			message: "refactor #0",
			want:    []int{},
		},
		{
			name:    "no references",
			message: "refactor the config loader",
			want:    []int{},
		},
		{
			name:    "empty message",
			message: "",
			want:    []int{},
		},
		{
			name:    "bare word task without digits",
			message: "task list cleanup",
			want:    []int{},
		},
		{
			name:    "digits embedded in a word are ignored",
			message: "bump to v1.2#3x",
			want:    []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ExtractTaskNumbers(tt.message))
		})
	}
}
