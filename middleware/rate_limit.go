package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimitStore keeps fixed-window counters per key
type RateLimitStore interface {
	// Count returns the current count for key without changing it
	Count(ctx context.Context, key string) (int, error)
	// Increment adds one to key, starting a new window when none is open
	Increment(ctx context.Context, key string, window time.Duration) (int, error)
}

// RateLimitConfig defines the configuration for rate limiting
type RateLimitConfig struct {
	// Name namespaces the counters of this limiter inside a shared store
	Name string
	// Requests is the maximum number of requests allowed within the window
	Requests int
	// Window is the time window for rate limiting
	Window time.Duration
	// KeyFuncs name the counters a request is charged to; every counter must
	// stay under the limit. Empty keys are skipped. Defaults to ClientIPKey.
	KeyFuncs []func(c echo.Context) string
	// Message is the error message returned when rate limit is exceeded
	Message string
	// SkipSuccessful counts only requests that end with a status >= 400
	SkipSuccessful bool
	// Store holds the counters (defaults to an in-memory store)
	Store RateLimitStore
}

// RateLimiter is a per-endpoint rate limiter
type RateLimiter struct {
	config RateLimitConfig
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if len(config.KeyFuncs) == 0 {
		config.KeyFuncs = []func(c echo.Context) string{ClientIPKey}
	}
	if config.Message == "" {
		config.Message = "Demasiadas solicitudes. Intente de nuevo más tarde."
	}
	if config.Store == nil {
		config.Store = NewMemoryStore()
	}
	return &RateLimiter{config: config}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			keys := rl.keys(c)

			if !rl.config.SkipSuccessful {
				limited := false
				for _, key := range keys {
					count, err := rl.config.Store.Increment(ctx, key, rl.config.Window)
					if err != nil {
						log.Printf("[WARNING] Rate limit store error: %v", err)
						continue // Allow request on store error
					}
					if count > rl.config.Requests {
						limited = true
					}
				}
				if limited {
					return echo.NewHTTPError(http.StatusTooManyRequests, rl.config.Message)
				}
				return next(c)
			}

			for _, key := range keys {
				count, err := rl.config.Store.Count(ctx, key)
				if err != nil {
					log.Printf("[WARNING] Rate limit store error: %v", err)
					continue
				}
				if count >= rl.config.Requests {
					return echo.NewHTTPError(http.StatusTooManyRequests, rl.config.Message)
				}
			}

			handlerErr := next(c)
			if responseStatus(c, handlerErr) >= http.StatusBadRequest {
				for _, key := range keys {
					if _, err := rl.config.Store.Increment(ctx, key, rl.config.Window); err != nil {
						log.Printf("[WARNING] Rate limit store error: %v", err)
					}
				}
			}
			return handlerErr
		}
	}
}

func (rl *RateLimiter) keys(c echo.Context) []string {
	keys := make([]string, 0, len(rl.config.KeyFuncs))
	for _, fn := range rl.config.KeyFuncs {
		if key := fn(c); key != "" {
			keys = append(keys, rl.config.Name+":"+key)
		}
	}
	return keys
}

// ClientIPKey charges the request to the client address chosen by the
// server's IP extractor
func ClientIPKey(c echo.Context) string {
	return "ip:" + c.RealIP()
}

// maxLoginBody bounds how much of a login body is read to find the username
const maxLoginBody = 64 << 10

// LoginUsernameKey charges the request to the account named in the login
// body. The body is restored so the handler can still bind it.
func LoginUsernameKey(c echo.Context) string {
	req := c.Request()
	var username string
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if req.Body == nil {
			return ""
		}
		head, err := io.ReadAll(io.LimitReader(req.Body, maxLoginBody))
		req.Body = readCloser{io.MultiReader(bytes.NewReader(head), req.Body), req.Body}
		if err != nil {
			return ""
		}
		var payload struct {
			Username string `json:"username"`
		}
		if json.Unmarshal(head, &payload) != nil {
			return ""
		}
		username = payload.Username
	} else {
		username = c.FormValue("username")
	}

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return ""
	}
	return "user:" + username
}

type readCloser struct {
	io.Reader
	io.Closer
}

// NewIPExtractor decides where the client address comes from. Without trusted
// proxies it is the TCP peer and forwarding headers are ignored; otherwise
// X-Forwarded-For is honoured only for hops inside the given IPs or CIDRs.
func NewIPExtractor(trustedProxies []string) (echo.IPExtractor, error) {
	if len(trustedProxies) == 0 {
		return echo.ExtractIPDirect(), nil
	}

	options := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, proxy := range trustedProxies {
		if !strings.Contains(proxy, "/") {
			if strings.Contains(proxy, ":") {
				proxy += "/128"
			} else {
				proxy += "/32"
			}
		}
		_, ipNet, err := net.ParseCIDR(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", proxy, err)
		}
		options = append(options, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(options...), nil
}

// responseStatus returns the status the client will see for this request
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// rateLimitEntry tracks request count and window expiration
type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryStore keeps counters in process memory
type MemoryStore struct {
	store map[string]*rateLimitEntry
	mu    sync.Mutex
	now   func() time.Time
}

// NewMemoryStore creates an in-memory store and starts its cleanup goroutine
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		store: make(map[string]*rateLimitEntry),
		now:   time.Now,
	}
	go s.cleanup()
	return s
}

// Count returns the count of the open window for key
func (s *MemoryStore) Count(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.store[key]
	if !exists || s.now().After(entry.expiresAt) {
		return 0, nil
	}
	return entry.count, nil
}

// Increment adds one to the open window for key
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, exists := s.store[key]
	if !exists || now.After(entry.expiresAt) {
		// Create new entry or reset expired entry
		s.store[key] = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		return 1, nil
	}
	entry.count++
	return entry.count, nil
}

// cleanup removes expired entries every minute
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	for range ticker.C {
		s.mu.Lock()
		now := s.now()
		for key, entry := range s.store {
			if now.After(entry.expiresAt) {
				delete(s.store, key)
			}
		}
		s.mu.Unlock()
	}
}

// RedisStore keeps counters in Redis so several replicas share them
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "rate_limit:"}
}

// NewRedisClient parses a redis:// URL and verifies the connection
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Count returns the count of the open window for key
func (s *RedisStore) Count(ctx context.Context, key string) (int, error) {
	count, err := s.client.Get(ctx, s.prefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Increment adds one to key and sets the window expiry on the first hit
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	redisKey := s.prefix + key
	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return 0, err
		}
	}
	return int(count), nil
}

// Pre-configured rate limiters

const (
	// LoginMaxFailures is how many failed logins a client or an account may
	// accumulate per window
	LoginMaxFailures = 5
	// LoginWindow is the login rate-limit window
	LoginWindow = 15 * time.Minute
)

// NewLoginRateLimiter allows 5 failed login attempts per 15 minutes, counted
// both per client IP and per username. Successful logins are not counted.
func NewLoginRateLimiter(store RateLimitStore) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Name:           "login",
		KeyFuncs:       []func(c echo.Context) string{ClientIPKey, LoginUsernameKey},
		Requests:       LoginMaxFailures,
		Window:         LoginWindow,
		Message:        "Demasiados intentos de inicio de sesión. Intente de nuevo en 15 minutos.",
		SkipSuccessful: true,
		Store:          store,
	})
}

// PublicFormRateLimiter limits public form submissions to 10 per minute per IP
// with a token bucket.
func PublicFormRateLimiter() echo.MiddlewareFunc {
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Every(6 * time.Second),
			Burst:     10,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "No se pudo identificar al cliente")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Demasiados envíos. Espere un momento antes de intentarlo de nuevo.")
		},
	})
}
