package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBenchPercentile(t *testing.T) {
	r := &benchResult{}
	assert.Zero(t, r.percentile(0.5))

	for i := 1; i <= 100; i++ {
		r.latencies = append(r.latencies, time.Duration(i)*time.Millisecond)
	}
	assert.Equal(t, time.Millisecond, r.percentile(0))
	assert.Equal(t, 50*time.Millisecond, r.percentile(0.5))
	assert.Equal(t, 99*time.Millisecond, r.percentile(0.99))
	assert.Equal(t, 100*time.Millisecond, r.percentile(1))
}
