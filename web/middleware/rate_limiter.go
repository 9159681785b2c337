package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RateLimiterConfig holds configuration for chat rate limiting.
type RateLimiterConfig struct {
	MessagesPerMinute int           // sustained refill rate per client
	BurstSize         int           // bucket capacity
	CleanupInterval   time.Duration // how often to drop idle buckets
}

// TokenBucket implements a token bucket rate limiter.
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request can proceed and consumes a token if so.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()

	tb.tokens = min(tb.maxTokens, tb.tokens+(elapsed*tb.refillRate))
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Remaining returns the number of tokens remaining.
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tokens := min(tb.maxTokens, tb.tokens+(elapsed*tb.refillRate))
	return int(tokens)
}

// ClientRateLimiter manages per-client message budgets. Buckets are
// keyed by the client cookie id, not by session, so spreading load over
// many sessions buys nothing.
type ClientRateLimiter struct {
	config      RateLimiterConfig
	limits      map[uuid.UUID]*TokenBucket
	mu          sync.RWMutex
	logger      *zap.Logger
	stopCleanup chan struct{}
}

func NewClientRateLimiter(config RateLimiterConfig, logger *zap.Logger) *ClientRateLimiter {
	limiter := &ClientRateLimiter{
		config:      config,
		limits:      make(map[uuid.UUID]*TokenBucket),
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}

	go limiter.cleanupRoutine()

	return limiter
}

func (rl *ClientRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup clears the bucket map once it grows past a bound. Clients that
// come back simply start from a full bucket.
func (rl *ClientRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.limits) > 1000 {
		rl.logger.Info("Cleaning up rate limiter cache", zap.Int("buckets", len(rl.limits)))
		rl.limits = make(map[uuid.UUID]*TokenBucket)
	}
}

// Stop stops the cleanup routine.
func (rl *ClientRateLimiter) Stop() {
	close(rl.stopCleanup)
}

// AllowMessage checks if the client may submit another chat message.
func (rl *ClientRateLimiter) AllowMessage(clientID uuid.UUID) bool {
	rl.mu.Lock()
	bucket, exists := rl.limits[clientID]
	if !exists {
		refillRate := float64(rl.config.MessagesPerMinute) / 60.0
		bucket = NewTokenBucket(float64(rl.config.BurstSize), refillRate)
		rl.limits[clientID] = bucket
	}
	rl.mu.Unlock()

	return bucket.Allow()
}

// MessageLimit returns remaining message tokens for a client.
func (rl *ClientRateLimiter) MessageLimit(clientID uuid.UUID) (remaining int, limit int) {
	rl.mu.RLock()
	bucket, exists := rl.limits[clientID]
	rl.mu.RUnlock()

	if !exists {
		return rl.config.BurstSize, rl.config.BurstSize
	}
	return bucket.Remaining(), rl.config.BurstSize
}

// RateLimitMiddleware rejects chat submissions from clients that have
// spent their budget. Must run after ClientMiddleware.
func RateLimitMiddleware(limiter *ClientRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIDValue, exists := c.Get("clientID")
		if !exists {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "client not initialized"})
			return
		}
		clientID := clientIDValue.(uuid.UUID)

		allowed := limiter.AllowMessage(clientID)
		remaining, limit := limiter.MessageLimit(clientID)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			logger, _ := c.Get("logger")
			zapLogger, _ := logger.(*zap.Logger)
			if zapLogger != nil {
				zapLogger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID.String()),
					zap.Int("limit", limit))
			}

			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"limit":       limit,
				"remaining":   remaining,
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}
