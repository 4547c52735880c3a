package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJob_Expired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		finishAt *time.Time
		want     bool
	}{
		{"no deadline", nil, false},
		{"deadline in the future", &future, false},
		{"deadline passed", &past, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &Job{FinishAt: tt.finishAt}
			assert.Equal(t, tt.want, j.Expired(now))
		})
	}
}

func TestJob_Exhausted(t *testing.T) {
	assert.False(t, (&Job{Count: 4, Total: 5}).Exhausted())
	assert.True(t, (&Job{Count: 5, Total: 5}).Exhausted())
	assert.True(t, (&Job{Count: 6, Total: 5}).Exhausted())
}

func TestJob_LoadFactor(t *testing.T) {
	assert.Equal(t, 3, (&Job{Factor: 3}).LoadFactor())
	assert.Equal(t, 1, (&Job{Factor: 0}).LoadFactor())
	assert.Equal(t, 1, (&Job{Factor: -2}).LoadFactor())
}

func TestComputeTotal(t *testing.T) {
	txs := []Transaction{
		{JobID: 1, Money: 100},
		{JobID: 1, Money: 100},
		{JobID: 2, Money: 250},
		{JobID: 3, Money: 0}, // cancelled attempts carry zero money
	}

	total := ComputeTotal(77, txs)

	assert.Equal(t, int64(77), total.UserID)
	assert.Equal(t, 4, total.CountTransaction)
	assert.Equal(t, int64(450), total.Total)
	assert.Equal(t, 3, total.CountJob)
}

func TestComputeTotal_Empty(t *testing.T) {
	total := ComputeTotal(5, nil)

	assert.Equal(t, Total{UserID: 5}, total)
}
