package logic

import (
	"math"
	"time"
)

// RateLimiter decides whether a sampled value should be published. A value is
// published when it moved far enough from the last published one, or when the
// minimum interval since the last publish has elapsed.
//
// The zero value is ready to use and publishes the first observation.
type RateLimiter struct {
	last float64
	next Tick
}

// Offer reports whether v should be published at now. When it returns true the
// limiter records v as the last published value and closes the gate until
// now+interval.
func (r *RateLimiter) Offer(v float64, now Tick, interval time.Duration, change float64) bool {
	if math.Abs(v-r.last) < change && now < r.next {
		return false
	}
	r.last = v
	r.next = now.Add(interval)
	return true
}

// OfferCount gates an event counter on the interval alone. A zero interval
// disables publishing from this path entirely.
func (r *RateLimiter) OfferCount(count float64, now Tick, interval time.Duration) bool {
	if interval == 0 {
		return false
	}
	return r.Offer(count, now, interval, math.Inf(1))
}

// Last returns the last published value.
func (r *RateLimiter) Last() float64 {
	return r.last
}

// Next returns the earliest tick at which the interval gate opens again.
func (r *RateLimiter) Next() Tick {
	return r.next
}
