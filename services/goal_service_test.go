package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrossedGoalTarget(t *testing.T) {
	tests := []struct {
		name        string
		target      int64
		totalBefore int64
		totalAfter  int64
		want        bool
	}{
		{"crosses target exactly", 1000, 900, 1000, true},
		{"crosses target past", 1000, 900, 1500, true},
		{"still below target", 1000, 400, 900, false},
		{"already completed before", 1000, 1000, 1200, false},
		{"well past target before", 1000, 5000, 5100, false},
		{"zero target counts as always met", 0, 0, 100, false},
		{"first contribution finishes tiny goal", 100, 0, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, crossedGoalTarget(tt.target, tt.totalBefore, tt.totalAfter))
		})
	}
}
