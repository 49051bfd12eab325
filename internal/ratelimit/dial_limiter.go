// Package ratelimit provides rate limiting functionality for cost control.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DialLimiter provides rate limiting for outbound dialing to control
// telephony costs and keep campaigns inside polite calling volumes.
type DialLimiter struct {
	mu sync.RWMutex

	// Configuration
	maxCallsPerMinute int
	maxCallsPerHour   int
	maxCallsPerDay    int
	maxConcurrent     int

	// State
	minuteBucket  *tokenBucket
	hourBucket    *tokenBucket
	dayBucket     *tokenBucket
	currentActive int

	// Metrics
	totalRequests   int64
	totalRejected   int64
	lastRejectedAt  time.Time
	rejectionReason string

	logger *zap.Logger
}

// DialLimiterConfig holds configuration for the dial limiter.
type DialLimiterConfig struct {
	MaxCallsPerMinute int
	MaxCallsPerHour   int
	MaxCallsPerDay    int
	MaxConcurrent     int
}

// DefaultDialLimiterConfig returns sensible defaults for cost control.
func DefaultDialLimiterConfig() *DialLimiterConfig {
	return &DialLimiterConfig{
		MaxCallsPerMinute: 2,   // 2 dials per minute
		MaxCallsPerHour:   60,  // 60 dials per hour
		MaxCallsPerDay:    300, // 300 dials per day
		MaxConcurrent:     3,   // 3 simultaneous calls
	}
}

// NewDialLimiter creates a new outbound dial rate limiter.
func NewDialLimiter(cfg *DialLimiterConfig, logger *zap.Logger) *DialLimiter {
	if cfg == nil {
		cfg = DefaultDialLimiterConfig()
	}

	now := time.Now()
	return &DialLimiter{
		maxCallsPerMinute: cfg.MaxCallsPerMinute,
		maxCallsPerHour:   cfg.MaxCallsPerHour,
		maxCallsPerDay:    cfg.MaxCallsPerDay,
		maxConcurrent:     cfg.MaxConcurrent,
		minuteBucket:      newTokenBucket(cfg.MaxCallsPerMinute, time.Minute, now),
		hourBucket:        newTokenBucket(cfg.MaxCallsPerHour, time.Hour, now),
		dayBucket:         newTokenBucket(cfg.MaxCallsPerDay, 24*time.Hour, now),
		logger:            logger,
	}
}

// Errors for rate limiting.
var (
	ErrRateLimitExceeded       = errors.New("rate limit exceeded")
	ErrMinuteLimitExceeded     = errors.New("minute rate limit exceeded")
	ErrHourLimitExceeded       = errors.New("hour rate limit exceeded")
	ErrDayLimitExceeded        = errors.New("day rate limit exceeded")
	ErrConcurrentLimitExceeded = errors.New("concurrent call limit exceeded")
)

// Acquire attempts to acquire a slot for one outbound dial.
// Returns nil if successful, or an error if rate limited.
func (dl *DialLimiter) Acquire(ctx context.Context) error {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.totalRequests++
	now := time.Now()

	// Check concurrent limit
	if dl.currentActive >= dl.maxConcurrent {
		dl.reject("concurrent limit", now)
		return ErrConcurrentLimitExceeded
	}

	// Check minute limit
	if !dl.minuteBucket.tryAcquire(now) {
		dl.reject("minute limit", now)
		return ErrMinuteLimitExceeded
	}

	// Check hour limit
	if !dl.hourBucket.tryAcquire(now) {
		// Rollback minute bucket
		dl.minuteBucket.release()
		dl.reject("hour limit", now)
		return ErrHourLimitExceeded
	}

	// Check day limit
	if !dl.dayBucket.tryAcquire(now) {
		// Rollback minute and hour buckets
		dl.minuteBucket.release()
		dl.hourBucket.release()
		dl.reject("day limit", now)
		return ErrDayLimitExceeded
	}

	// All checks passed
	dl.currentActive++

	dl.logger.Debug("dial rate limit acquired",
		zap.Int("active", dl.currentActive),
		zap.Int("minute_remaining", dl.minuteBucket.remaining()),
		zap.Int("hour_remaining", dl.hourBucket.remaining()),
		zap.Int("day_remaining", dl.dayBucket.remaining()),
	)

	return nil
}

// Release releases a slot after the call completes or fails to connect.
func (dl *DialLimiter) Release() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.currentActive > 0 {
		dl.currentActive--
	}

	dl.logger.Debug("dial rate limit released",
		zap.Int("active", dl.currentActive),
	)
}

// Wait blocks until a dial slot is available or context is canceled.
func (dl *DialLimiter) Wait(ctx context.Context) error {
	// Try to acquire immediately
	if err := dl.Acquire(ctx); err == nil {
		return nil
	}

	// Poll for availability
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := dl.Acquire(ctx); err == nil {
				return nil
			}
		}
	}
}

// reject records a rejection.
func (dl *DialLimiter) reject(reason string, t time.Time) {
	dl.totalRejected++
	dl.lastRejectedAt = t
	dl.rejectionReason = reason

	dl.logger.Warn("dial rate limit exceeded",
		zap.String("reason", reason),
		zap.Int64("total_rejected", dl.totalRejected),
	)
}

// Stats returns current rate limiter statistics.
func (dl *DialLimiter) Stats() DialLimiterStats {
	dl.mu.RLock()
	defer dl.mu.RUnlock()

	now := time.Now()
	return DialLimiterStats{
		CurrentActive:       dl.currentActive,
		MaxConcurrent:       dl.maxConcurrent,
		MinuteRemaining:     dl.minuteBucket.remaining(),
		MinuteMax:           dl.maxCallsPerMinute,
		HourRemaining:       dl.hourBucket.remaining(),
		HourMax:             dl.maxCallsPerHour,
		DayRemaining:        dl.dayBucket.remaining(),
		DayMax:              dl.maxCallsPerDay,
		TotalRequests:       dl.totalRequests,
		TotalRejected:       dl.totalRejected,
		LastRejectedAt:      dl.lastRejectedAt,
		LastRejectionReason: dl.rejectionReason,
		MinuteResetIn:       dl.minuteBucket.resetIn(now),
		HourResetIn:         dl.hourBucket.resetIn(now),
		DayResetIn:          dl.dayBucket.resetIn(now),
	}
}

// DialLimiterStats holds statistics about the rate limiter.
type DialLimiterStats struct {
	CurrentActive       int           `json:"current_active"`
	MaxConcurrent       int           `json:"max_concurrent"`
	MinuteRemaining     int           `json:"minute_remaining"`
	MinuteMax           int           `json:"minute_max"`
	HourRemaining       int           `json:"hour_remaining"`
	HourMax             int           `json:"hour_max"`
	DayRemaining        int           `json:"day_remaining"`
	DayMax              int           `json:"day_max"`
	TotalRequests       int64         `json:"total_requests"`
	TotalRejected       int64         `json:"total_rejected"`
	LastRejectedAt      time.Time     `json:"last_rejected_at,omitempty"`
	LastRejectionReason string        `json:"last_rejection_reason,omitempty"`
	MinuteResetIn       time.Duration `json:"minute_reset_in"`
	HourResetIn         time.Duration `json:"hour_reset_in"`
	DayResetIn          time.Duration `json:"day_reset_in"`
}

// tokenBucket is a simple sliding window token bucket implementation.
type tokenBucket struct {
	max       int
	period    time.Duration
	tokens    int
	lastReset time.Time
}

func newTokenBucket(maxTokens int, period time.Duration, now time.Time) *tokenBucket {
	return &tokenBucket{
		max:       maxTokens,
		period:    period,
		tokens:    maxTokens,
		lastReset: now,
	}
}

func (b *tokenBucket) tryAcquire(now time.Time) bool {
	b.refill(now)
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (b *tokenBucket) release() {
	if b.tokens < b.max {
		b.tokens++
	}
}

func (b *tokenBucket) remaining() int {
	return b.tokens
}

func (b *tokenBucket) resetIn(now time.Time) time.Duration {
	elapsed := now.Sub(b.lastReset)
	remaining := b.period - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (b *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastReset)
	if elapsed >= b.period {
		// Reset the bucket
		b.tokens = b.max
		b.lastReset = now
	}
}
