package util

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"
)

func TestGoRecoversPanic(t *testing.T) {
	done := Go(zerolog.Nop(), "boom", func() { panic("boom") })
	assert.Assert(t, Join(done, time.Second))
}

func TestJoinTimesOut(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	done := Go(zerolog.Nop(), "blocked", func() { <-block })
	assert.Assert(t, !Join(done, 10*time.Millisecond))
}
