package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMet(t *testing.T) {
	tests := []struct {
		name     string
		criteria CriteriaType
		value    int64
		progress Progress
		want     bool
	}{
		{"streak reached", CriteriaStreak, 7, Progress{BestStreak: 7}, true},
		{"streak short", CriteriaStreak, 7, Progress{BestStreak: 6}, false},
		{"total saved reached", CriteriaTotalSaved, 100000, Progress{TotalSaved: 150000}, true},
		{"total saved short", CriteriaTotalSaved, 100000, Progress{TotalSaved: 99999}, false},
		{"goals completed", CriteriaGoalsCompleted, 1, Progress{GoalsCompleted: 1}, true},
		{"contribution count", CriteriaContributions, 50, Progress{TotalContributions: 51}, true},
		{"perfect week", CriteriaPerfectWeek, 1, Progress{PerfectWeeks: 0}, false},
		{"unknown criteria never unlocks", CriteriaType("mystery"), 0, Progress{BestStreak: 100}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Achievement{CriteriaType: tt.criteria, CriteriaValue: tt.value}
			assert.Equal(t, tt.want, Met(a, tt.progress))
		})
	}
}
