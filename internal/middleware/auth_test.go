package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/corebank/corebank/internal/auth"
	"github.com/corebank/corebank/internal/config"
	"github.com/corebank/corebank/internal/user"
)

func TestJWTAuth(t *testing.T) {
	tokens := auth.NewService(config.JWTConfig{Secret: "test-secret", AccessTTL: time.Hour})
	users := user.NewMemoryRepository()

	known := user.User{ID: uuid.New(), Email: "jane@example.com", CreatedAt: time.Now().UTC()}
	require.NoError(t, users.Create(context.Background(), known))

	app := fiber.New()
	app.Use(JWTAuth(tokens, users))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})

	do := func(authz string) (int, string) {
		t.Helper()
		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		if authz != "" {
			req.Header.Set(fiber.HeaderAuthorization, authz)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	t.Run("missing header", func(t *testing.T) {
		status, _ := do("")
		require.Equal(t, fiber.StatusUnauthorized, status)
	})

	t.Run("malformed token", func(t *testing.T) {
		status, _ := do("Bearer nope")
		require.Equal(t, fiber.StatusUnauthorized, status)
	})

	t.Run("valid token sets subject", func(t *testing.T) {
		pair, err := tokens.Issue(known.ID)
		require.NoError(t, err)
		status, body := do("Bearer " + pair.AccessToken)
		require.Equal(t, fiber.StatusOK, status)
		require.Equal(t, known.ID.String(), body)
	})

	t.Run("token for deleted user is refused", func(t *testing.T) {
		pair, err := tokens.Issue(uuid.New())
		require.NoError(t, err)
		status, _ := do("Bearer " + pair.AccessToken)
		require.Equal(t, fiber.StatusUnauthorized, status)
	})
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, 3), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	attempt := func(email string) int {
		t.Helper()
		body := strings.NewReader(fmt.Sprintf(`{"email":%q,"password":"x"}`, email))
		req := httptest.NewRequest(fiber.MethodPost, "/login", body)
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	for i := 0; i < 3; i++ {
		require.Equal(t, fiber.StatusOK, attempt("jane@example.com"))
	}
	require.Equal(t, fiber.StatusTooManyRequests, attempt("jane@example.com"))

	// Limits are tracked per email.
	require.Equal(t, fiber.StatusOK, attempt("john@example.com"))

	// Counters expire after the window.
	mr.FastForward(2 * time.Minute)
	require.Equal(t, fiber.StatusOK, attempt("jane@example.com"))
}

func TestLoginRateLimit_FailOpenWithoutCache(t *testing.T) {
	app := fiber.New()
	app.Post("/login", LoginRateLimit(nil, 1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"email":"a@b.c"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}
