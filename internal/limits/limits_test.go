package limits

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBlocked_NumericLimits(t *testing.T) {
	p := Default()
	for f, l := range DefaultTable() {
		if !l.Numeric {
			continue
		}
		t.Run(string(f), func(t *testing.T) {
			assert.False(t, p.IsBlocked(f, l.Max-1, false), "the %d-th add must be allowed", l.Max)
			assert.True(t, p.IsBlocked(f, l.Max, false), "the %d-th add must be blocked", l.Max+1)
			assert.False(t, p.IsBlocked(f, l.Max*10, true), "premium is never blocked")
		})
	}
}

func TestIsBlocked_Flags(t *testing.T) {
	p := Default()
	tests := []struct {
		feature Feature
		premium bool
		want    bool
	}{
		{DataExport, false, true},
		{DataExport, true, false},
		{BasicReports, false, false},
		{QuarterlyTaxEstimates, false, true},
		{Feature("unknown"), false, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/premium=%v", tt.feature, tt.premium), func(t *testing.T) {
			for _, count := range []int{0, 1000} {
				assert.Equal(t, tt.want, p.IsBlocked(tt.feature, count, tt.premium))
			}
		})
	}
}

func TestIsAvailable(t *testing.T) {
	p := Default()
	assert.False(t, p.IsAvailable(CloudSync, false))
	assert.True(t, p.IsAvailable(CloudSync, true))
	assert.True(t, p.IsAvailable(BasicReports, false))
	assert.True(t, p.IsAvailable(MaxGigs, false))
}

func TestLimit(t *testing.T) {
	p := Default()

	n, ok := p.Limit(MaxGigs, false)
	assert.True(t, ok)
	assert.Equal(t, 25, n)

	n, ok = p.Limit(MaxGigs, true)
	assert.True(t, ok)
	assert.Equal(t, Unlimited, n)

	_, ok = p.Limit(DataExport, false)
	assert.False(t, ok)
}

func TestNewPolicyCopiesTable(t *testing.T) {
	table := Table{MaxGigs: Count(1)}
	p := NewPolicy(table)
	table[MaxGigs] = Count(100)
	assert.True(t, p.IsBlocked(MaxGigs, 1, false))
}
