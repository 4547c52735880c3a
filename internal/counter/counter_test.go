package counter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayCountKey(t *testing.T) {
	s := &Store{
		now: func() time.Time {
			return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		},
	}

	assert.Equal(t, "count:job:42:20240601", s.dayCountKey(42))

	// The key rolls with the UTC calendar day, so counts reset at midnight.
	s.now = func() time.Time {
		return time.Date(2024, 6, 2, 0, 0, 1, 0, time.UTC)
	}
	assert.Equal(t, "count:job:42:20240602", s.dayCountKey(42))
}

func TestLastStartKey(t *testing.T) {
	assert.Equal(t, "start:user:7", lastStartKey(7))
}
