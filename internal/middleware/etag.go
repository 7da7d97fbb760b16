package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RevalidateConfig defines the configuration for module revalidation
type RevalidateConfig struct {
	// SkipPrefixes are path prefixes that get neither an ETag nor cache headers
	SkipPrefixes []string

	// CacheControl is sent with every validated response
	CacheControl string
}

// DefaultRevalidateConfig returns the default configuration
func DefaultRevalidateConfig() RevalidateConfig {
	return RevalidateConfig{
		SkipPrefixes: []string{"/metrics", "/__unbarrel/"},
		CacheControl: "no-cache",
	}
}

// Revalidate tags successful GET and HEAD responses with a weak ETag and
// answers a matching If-None-Match with 304. Browsers then re-ask for every
// module on reload but only download the ones whose served text changed, for
// instance after an entry was re-analyzed.
func Revalidate(config ...RevalidateConfig) fiber.Handler {
	cfg := DefaultRevalidateConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead {
			return c.Next()
		}
		path := c.Path()
		for _, prefix := range cfg.SkipPrefixes {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status < 200 || status >= 300 {
			return nil
		}

		etag := generateETag(c.Response().Body())
		c.Set(fiber.HeaderETag, etag)
		if cfg.CacheControl != "" {
			c.Set(fiber.HeaderCacheControl, cfg.CacheControl)
		}

		if match := c.Get(fiber.HeaderIfNoneMatch); match != "" && etagMatches(etag, match) {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}

// generateETag creates a weak ETag from the response body
func generateETag(body []byte) string {
	hash := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(hash[:16]) + `"`
}

// etagMatches checks the ETag against an If-None-Match list using weak
// comparison. "*" matches anything.
func etagMatches(etag, ifNoneMatch string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	if ifNoneMatch == "*" {
		return true
	}

	want := normalizeETag(etag)
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate != "" && normalizeETag(candidate) == want {
			return true
		}
	}
	return false
}

// normalizeETag removes the weak indicator for comparison
func normalizeETag(etag string) string {
	return strings.TrimPrefix(strings.TrimSpace(etag), "W/")
}
