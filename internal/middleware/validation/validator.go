package validation

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type Config struct {
	// MaxContextLength bounds the free-text hint submitted with an image.
	MaxContextLength int
	// MaxDocumentSize bounds the HTML payload of a catalog page submission.
	MaxDocumentSize     int
	AllowedContentTypes []string
}

// Middleware rejects malformed writes before they reach a handler: wrong
// content types, oversized catalog documents, and invalid source URLs.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxContextLength == 0 {
		cfg.MaxContextLength = 2000
	}
	if cfg.MaxDocumentSize == 0 {
		cfg.MaxDocumentSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json", "multipart/form-data"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		if contentType != "" && !contentTypeAllowed(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		path := c.Path()

		if strings.HasSuffix(path, "/analyze") && strings.Contains(contentType, "multipart/form-data") {
			if len(c.FormValue("context")) > cfg.MaxContextLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "context exceeds maximum length",
				})
			}
		}

		if strings.HasSuffix(path, "/catalog/documents") {
			var req struct {
				URL  string `json:"url"`
				HTML string `json:"html"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}
			if !isValidURL(req.URL) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "A valid http(s) source url is required",
				})
			}
			if len(req.HTML) > cfg.MaxDocumentSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Document content exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
