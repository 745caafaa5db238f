package main

import (
	"math/rand/v2"
	"time"
)

const (
	maxIdleBackoff = 10 * time.Second
	maxRetryDelay  = 5 * time.Minute
	jitterWindow   = 250 * time.Millisecond
)

// backoffPolicy derives both the loop's sleep and a row's next attempt time
// from the poll interval.
type backoffPolicy struct {
	base   time.Duration
	jitter func(time.Duration) time.Duration
}

func newBackoffPolicy(base time.Duration) backoffPolicy {
	if base <= 0 {
		base = defaultPollInterval
	}
	return backoffPolicy{base: base, jitter: randomJitter}
}

// idle is the loop sleep after failures consecutive batch errors; zero means
// the last batch was simply empty.
func (p backoffPolicy) idle(failures int) time.Duration {
	return p.jitter(doubled(p.base, failures, maxIdleBackoff))
}

// retry is how long a row waits before publish attempt number attempt+1.
func (p backoffPolicy) retry(attempt int) time.Duration {
	return doubled(p.base, attempt-1, maxRetryDelay)
}

func doubled(base time.Duration, times int, ceiling time.Duration) time.Duration {
	d := base
	for i := 0; i < times; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return d
}

func randomJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
