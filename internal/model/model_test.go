package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCapacityCounters(t *testing.T) {
	c := Capacity{Capacity: 5, CapacityLeft: 2}
	assert.Equal(t, 3, c.Reserved())
	assert.False(t, c.IsFull())

	c.CapacityLeft = 0
	assert.Equal(t, 5, c.Reserved())
	assert.True(t, c.IsFull())
}

func TestCapacityIsPast(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	assert.True(t, (&Capacity{Date: now.Add(-time.Minute)}).IsPast(now))
	assert.False(t, (&Capacity{Date: now.Add(time.Minute)}).IsPast(now))
	assert.False(t, (&Capacity{Date: now}).IsPast(now))
}
