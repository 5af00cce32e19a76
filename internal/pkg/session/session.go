package session

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/assistdesk/assistdesk/internal/pkg/cache"
	"github.com/assistdesk/assistdesk/internal/pkg/env"
)

// Keys stored in a logged-in session.
const (
	KeyUserID   = "user_id"
	KeyUsername = "username"
	KeyIsAdmin  = "is_admin"
)

var sessionStore *session.Store

// NewStorage returns a Redis backed fiber storage on the given database of
// the cache server.
func NewStorage(database int) fiber.Storage {
	// Get Redis client configuration from existing cache setup
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: database,
		Reset:    false,
	})
}

func NewSessionStore() *session.Store {
	// Sessions live in database 1, the cache and job queue use DB 0
	storage := NewStorage(1)

	sessionStore = session.New(session.Config{
		Storage:        storage,
		CookieHTTPOnly: true,
		CookieSecure:   env.GetEnvBool("SESSION_COOKIE_SECURE", !env.IsDev()),
		CookieSameSite: "Lax",
		Expiration:     env.GetEnvDuration("SESSION_TTL", time.Hour),
		KeyLookup:      "cookie:assistdesk_session",
	})

	return sessionStore
}

func GetSessionStore() *session.Store {
	return sessionStore
}

// SetSessionStore replaces the store, e.g. with an in-memory one in tests.
func SetSessionStore(s *session.Store) {
	sessionStore = s
}

// Login binds the session to a user and rotates its id.
func Login(c *fiber.Ctx, userID uint, username string, isAdmin bool) error {
	if sessionStore == nil {
		return fmt.Errorf("session store not initialized")
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if err := sess.Regenerate(); err != nil {
		return fmt.Errorf("failed to regenerate session: %w", err)
	}
	sess.Set(KeyUserID, userID)
	sess.Set(KeyUsername, username)
	sess.Set(KeyIsAdmin, isAdmin)
	return sess.Save()
}

// Logout destroys the current session.
func Logout(c *fiber.Ctx) error {
	if sessionStore == nil {
		return nil
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	return sess.Destroy()
}
