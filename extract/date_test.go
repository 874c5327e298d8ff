package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestInferDate verifies pattern order and the Unknown fallback
func TestInferDate(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"month name", "Board Meeting - January 5, 2024", "January 5, 2024"},
		{"month name no comma", "Minutes January 5 2024", "January 5 2024"},
		{"month name any case", "special session MARCH 12, 2023", "MARCH 12, 2023"},
		{"numeric dashes", "minutes_03-05-2024.pdf", "03-05-2024"},
		{"numeric slashes short year", "Agenda 3/5/24", "3/5/24"},
		{"not a calendar date", "notes 13/40/99", "13/40/99"},
		{"month name preferred", "03-05-2024 Board Meeting - April 1, 2024", "April 1, 2024"},
		{"first numeric wins", "1-2-2020 and 3-4-2021", "1-2-2020"},
		{"no date", "minutes_final.pdf", UnknownDate},
		{"month without day", "March Minutes", UnknownDate},
		{"empty", "", UnknownDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferDate(tt.label))
		})
	}
}
