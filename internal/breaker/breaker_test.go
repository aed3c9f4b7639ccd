package breaker

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestBreaker(maxFailures uint32, cooldown time.Duration) *Breaker {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New("test", maxFailures, cooldown, logger)
}

func TestBreaker_StartsClosed(t *testing.T) {
	b := newTestBreaker(3, time.Minute)
	assert.Equal(t, StateClosed, b.CurrentState())
	assert.True(t, b.Allow())
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	b := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.CurrentState())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.CurrentState())
	assert.False(t, b.Allow())
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := newTestBreaker(1, 10*time.Millisecond)

	b.RecordFailure()
	assert.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.CurrentState())

	// Trial budget is limited
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())
}

func TestBreaker_ClosesOnHalfOpenSuccess(t *testing.T) {
	b := newTestBreaker(1, 10*time.Millisecond)

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.CurrentState())
	assert.True(t, b.Allow())
}

func TestBreaker_ReopensOnHalfOpenFailure(t *testing.T) {
	b := newTestBreaker(1, 10*time.Millisecond)

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.CurrentState())
	assert.False(t, b.Allow())
}

func TestOpenError_Message(t *testing.T) {
	err := &OpenError{Name: "live"}
	assert.Contains(t, err.Error(), "live")
	assert.Contains(t, err.Error(), "open")
}
