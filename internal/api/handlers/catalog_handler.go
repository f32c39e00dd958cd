package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bomlens/backend/internal/ingestion"
	"github.com/bomlens/backend/pkg/logger"
)

type CatalogHandler struct {
	processor *ingestion.Processor
	fetcher   *ingestion.Fetcher
}

func NewCatalogHandler(processor *ingestion.Processor, fetcher *ingestion.Fetcher) *CatalogHandler {
	return &CatalogHandler{processor: processor, fetcher: fetcher}
}

// HandleDocument ingests one supplier product page into the known-component
// catalog. The page HTML may be inlined or fetched from the given URL.
func (h *CatalogHandler) HandleDocument(c *fiber.Ctx) error {
	var req struct {
		URL  string `json:"url"`
		HTML string `json:"html"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.HTML == "" {
		html, err := h.fetcher.FetchProductPage(c.Context(), req.URL)
		if err != nil {
			logger.Error("Failed to fetch product page",
				zap.String("url", req.URL), zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Failed to fetch product page",
			})
		}
		req.HTML = html
	}

	component, err := h.processor.ProcessProductPage(c.Context(), req.URL, req.HTML)
	if err != nil {
		logger.Error("Failed to process product page",
			zap.String("url", req.URL), zap.Error(err))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"component": component,
	})
}

// HandleComponents ingests a batch of structured component records.
func (h *CatalogHandler) HandleComponents(c *fiber.Ctx) error {
	var req struct {
		Components []ingestion.ComponentInput `json:"components"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.Components) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one component is required",
		})
	}

	count, err := h.processor.IngestComponents(c.Context(), req.Components)
	if err != nil {
		logger.Error("Failed to ingest components", zap.Error(err))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"indexed": count,
	})
}
