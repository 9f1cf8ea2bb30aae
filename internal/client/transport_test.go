package client

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconnectPolicyDelayGrowsAndCaps(t *testing.T) {
	policy := ReconnectPolicy{
		Base:     time.Second,
		Max:      8 * time.Second,
		MaxTries: 10,
		Rand:     rand.New(rand.NewSource(1)),
	}

	for attempt := 0; attempt < 6; attempt++ {
		delay := policy.Delay(attempt)

		// Jitter keeps the delay within [nominal/2, nominal].
		nominal := time.Second << attempt
		if nominal > policy.Max {
			nominal = policy.Max
		}
		assert.GreaterOrEqual(t, delay, nominal/2, "attempt %d", attempt)
		assert.LessOrEqual(t, delay, nominal, "attempt %d", attempt)
	}

	// Far past the cap the delay still never exceeds Max.
	assert.LessOrEqual(t, policy.Delay(30), policy.Max)
}

func TestReconnectPolicyZeroBase(t *testing.T) {
	policy := ReconnectPolicy{Base: 0, Max: time.Second, MaxTries: 3}
	assert.Equal(t, time.Duration(0), policy.Delay(0))
}
