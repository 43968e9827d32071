package strutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sentra/pkg/strutil"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"nil", nil, nil},
		{"empty", []string{}, []string{}},
		{"dedupes preserving order", []string{"b", "a", "b", "c", "a"}, []string{"b", "a", "c"}},
		{"trims whitespace", []string{" a ", "a", "\tb"}, []string{"a", "b"}},
		{"drops empties", []string{"", "  ", "a"}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, strutil.DedupeAndTrim(tt.input))
		})
	}
}

func TestNormalizeTerms(t *testing.T) {
	got := strutil.NormalizeTerms([]string{"Project Vesta", "PROJECT VESTA", " secret "})
	assert.Equal(t, []string{"project vesta", "secret"}, got)
}
