package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDaysApart(t *testing.T) {
	cases := []struct {
		a, b string
		want int
		ok   bool
	}{
		{"2025-03-10", "2025-03-10", 0, true},
		{"2025-03-10", "2025-03-15", 5, true},
		{"2025-03-15", "2025-03-10", 5, true},
		{"2025-02-28", "2025-03-01", 1, true},
		{"2025-03-10T23:00:00Z", "2025-03-11", 1, true},
		{"not-a-date", "2025-03-10", 0, false},
		{"", "2025-03-10", 0, false},
	}
	for _, c := range cases {
		got, ok := DaysApart(c.a, c.b)
		assert.Equal(t, c.ok, ok, "%s vs %s", c.a, c.b)
		assert.Equal(t, c.want, got, "%s vs %s", c.a, c.b)
	}
}

func TestLoadPriceHint(t *testing.T) {
	offered, budget, zero := 15000.0, 9000.0, 0.0

	p, ok := NewImmediateLoad(Load{OfferedPrice: &offered, MaxBudget: &budget}).PriceHint()
	assert.True(t, ok)
	assert.Equal(t, offered, p)

	p, ok = NewScheduledLoad(Load{OfferedPrice: &offered, MaxBudget: &budget}).PriceHint()
	assert.True(t, ok)
	assert.Equal(t, budget, p)

	_, ok = NewImmediateLoad(Load{OfferedPrice: &zero}).PriceHint()
	assert.False(t, ok)
}

func TestLoadSourceOpenStatus(t *testing.T) {
	assert.Equal(t, LoadPending, SourceImmediate.OpenStatus())
	assert.Equal(t, LoadSearching, SourceScheduled.OpenStatus())
	assert.False(t, LoadSource("other").Valid())
}
