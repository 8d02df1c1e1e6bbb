package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		line string
		want CommandMsg
	}{
		{"refresh", CommandMsg{Name: "refresh", Args: []string{}}},
		{"  Classroom  room-7 ", CommandMsg{Name: "classroom", Args: []string{"room-7"}}},
		{"read all", CommandMsg{Name: "read all", Args: []string{}}},
		{"export out.csv", CommandMsg{Name: "export", Args: []string{"out.csv"}}},
	}
	for _, tc := range cases {
		got, ok := Parse(tc.line)
		assert.True(t, ok, tc.line)
		assert.Equal(t, tc.want, got, tc.line)
	}

	_, ok := Parse("   ")
	assert.False(t, ok)
}
