package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerTripsAndRecovers(t *testing.T) {
	clock := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, SuccessThreshold: 2, Cooldown: time.Minute})
	b.now = func() time.Time { return clock }

	boom := errors.New("boom")
	fail := func() error { return boom }
	ok := func() error { return nil }

	assert.ErrorIs(t, b.Do(fail), boom)
	assert.Equal(t, BreakerClosed, b.State())
	assert.ErrorIs(t, b.Do(fail), boom)
	assert.Equal(t, BreakerOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)

	clock = clock.Add(time.Minute)
	assert.Equal(t, BreakerHalfOpen, b.State())
	assert.NoError(t, b.Do(ok))
	assert.Equal(t, BreakerHalfOpen, b.State())
	assert.NoError(t, b.Do(ok))
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	b.now = func() time.Time { return clock }

	_ = b.Do(func() error { return errors.New("x") })
	clock = clock.Add(time.Second)
	assert.Equal(t, BreakerHalfOpen, b.State())

	_ = b.Do(func() error { return errors.New("x") })
	assert.Equal(t, BreakerOpen, b.State())
	assert.Equal(t, "open", b.State().String())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2})
	_ = b.Do(func() error { return errors.New("x") })
	_ = b.Do(func() error { return nil })
	_ = b.Do(func() error { return errors.New("x") })
	assert.Equal(t, BreakerClosed, b.State())
}
