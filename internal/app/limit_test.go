package app

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"

	u "certcenter/internal/utils"
)

type memStore struct {
	sync.RWMutex
	m map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{m: make(map[string][]byte)}
}

func (s *memStore) Get(key string) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()
	return s.m[key], nil
}

func (s *memStore) Set(key string, val []byte, exp time.Duration) error {
	s.Lock()
	s.m[key] = val
	s.Unlock()
	return nil
}

func (s *memStore) Delete(key string) error {
	s.Lock()
	delete(s.m, key)
	s.Unlock()
	return nil
}

func (s *memStore) Reset() error {
	s.Lock()
	s.m = make(map[string][]byte)
	s.Unlock()
	return nil
}

func (s *memStore) Close() error { return nil }

func resetLimiters() {
	rateLimitStore = newMemStore()
	keyLimiterCache.Lock()
	keyLimiterCache.handlers = nil
	keyLimiterCache.Unlock()
}

func testKeyAuth() fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: apiKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			return u.ValidateAPIKey(key), nil
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Get("X-API-Key") == ""
		},
	})
}

func request(key string) *http.Request {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "1.2.3.4:5678"
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	return req
}

func expectStatus(t *testing.T, app *fiber.App, req *http.Request, want int) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != want {
		t.Fatalf("expected %d but got %d", want, resp.StatusCode)
	}
}

func TestAPIKeyRateLimitMiddleware(t *testing.T) {
	key := "academy-key"
	limit := 2
	u.LoadAPIKeysFromMap(map[string]int{key: limit})
	u.AppConfig.RateLimiter.Interval = time.Hour
	resetLimiters()

	app := fiber.New()
	app.Use(testKeyAuth())
	app.Use(apiKeyRateLimitMiddleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < limit; i++ {
		expectStatus(t, app, request(key), fiber.StatusOK)
	}
	expectStatus(t, app, request(key), fiber.StatusTooManyRequests)
}

func TestAPIKeyRateLimit_KeysCountedSeparately(t *testing.T) {
	u.LoadAPIKeysFromMap(map[string]int{"a": 1, "b": 1})
	u.AppConfig.RateLimiter.Interval = time.Hour
	resetLimiters()

	app := fiber.New()
	app.Use(testKeyAuth())
	app.Use(apiKeyRateLimitMiddleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	expectStatus(t, app, request("a"), fiber.StatusOK)
	expectStatus(t, app, request("b"), fiber.StatusOK)
	expectStatus(t, app, request("a"), fiber.StatusTooManyRequests)
}

func TestClientRateLimitMiddleware(t *testing.T) {
	cfg := u.Config{}
	cfg.RateLimiter.EnableUserLimiter = true
	cfg.RateLimiter.UserLimit = 2
	cfg.RateLimiter.Interval = time.Hour
	resetLimiters()

	app := fiber.New()
	app.Use(clientRateLimitMiddleware(cfg))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		expectStatus(t, app, request(""), fiber.StatusOK)
	}
	expectStatus(t, app, request(""), fiber.StatusTooManyRequests)
}

func TestAPIKeyBypassesClientLimit(t *testing.T) {
	key := "bulk-issuer"
	// High key limit so only the client limiter could block.
	u.LoadAPIKeysFromMap(map[string]int{key: 100})
	u.AppConfig.RateLimiter.Interval = time.Hour
	resetLimiters()

	cfg := u.Config{}
	cfg.RateLimiter.EnableUserLimiter = true
	cfg.RateLimiter.UserLimit = 2
	cfg.RateLimiter.Interval = time.Hour

	app := fiber.New()
	app.Use(testKeyAuth())
	app.Use(apiKeyRateLimitMiddleware())
	app.Use(clientRateLimitMiddleware(cfg))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		expectStatus(t, app, request(""), fiber.StatusOK)
	}
	expectStatus(t, app, request(""), fiber.StatusTooManyRequests)

	// Same client, now authenticated: the client limiter must not apply.
	expectStatus(t, app, request(key), fiber.StatusOK)
}
