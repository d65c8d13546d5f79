package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: []string{}},
		{name: "only blanks", input: []string{"", "  "}, expected: []string{}},
		{name: "trims and lowercases", input: []string{" Fleet ", "WHEELCHAIR"}, expected: []string{"fleet", "wheelchair"}},
		{name: "dedupes case-insensitively", input: []string{"van", "Van", " VAN "}, expected: []string{"van"}},
		{name: "sorted output", input: []string{"zeta", "alpha", "mid"}, expected: []string{"alpha", "mid", "zeta"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTags(tt.input))
		})
	}
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Vehicle Insurance", "insur"))
	assert.True(t, ContainsFold("anything", ""))
	assert.False(t, ContainsFold("Driver License", "insurance"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Vehicle Insurance", NormalizeName("  Vehicle   Insurance "))
}
