package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bomlens/backend/internal/bom"
	"github.com/bomlens/backend/internal/extraction"
	"github.com/bomlens/backend/internal/pipeline"
	"github.com/bomlens/backend/internal/storage/models"
	"github.com/bomlens/backend/internal/storage/sqlite"
	"github.com/bomlens/backend/pkg/logger"
)

var allowedImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

type AnalyzeHandler struct {
	controller         *pipeline.Controller
	db                 *sqlite.Client
	defaultOrigin      string
	defaultDestination string
}

func NewAnalyzeHandler(controller *pipeline.Controller, db *sqlite.Client, defaultOrigin, defaultDestination string) *AnalyzeHandler {
	return &AnalyzeHandler{
		controller:         controller,
		db:                 db,
		defaultOrigin:      defaultOrigin,
		defaultDestination: defaultDestination,
	}
}

// HandleAnalyze runs the full image-to-duty pipeline for one uploaded product
// image.
func (h *AnalyzeHandler) HandleAnalyze(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "An image file is required",
		})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedImageExtensions[ext] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported image type; use png, jpg, jpeg, gif, or webp",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded image",
		})
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded image",
		})
	}

	req := pipeline.Request{
		Image:       image,
		ImageRef:    fileHeader.Filename,
		UserContext: c.FormValue("context"),
		Origin:      strings.TrimSpace(c.FormValue("origin_country")),
		Destination: strings.TrimSpace(c.FormValue("destination_country")),
	}
	if req.Origin == "" {
		req.Origin = h.defaultOrigin
	}
	if req.Destination == "" {
		req.Destination = h.defaultDestination
	}

	if raw := c.FormValue("declared_value"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "declared_value must be a positive number",
			})
		}
		req.DeclaredValueUSD = &value
	}

	report, err := h.controller.Run(c.Context(), req, nil)
	if err != nil {
		if errors.Is(err, extraction.ErrExtractionFailed) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Could not identify components in the image",
				"state": string(pipeline.StateFatalFailed),
			})
		}
		logger.Error("Analysis run failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Analysis failed",
			"state": string(pipeline.StateFatalFailed),
		})
	}

	h.recordReport(report)

	return c.JSON(fiber.Map{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"report":    report,
	})
}

// HandleDemo serves the canned sample report without touching any external
// service.
func (h *AnalyzeHandler) HandleDemo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"report":    pipeline.DemoReport(),
	})
}

func (h *AnalyzeHandler) ListReports(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	records, err := h.db.ListReports(limit)
	if err != nil {
		logger.Error("Failed to list reports", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list reports",
		})
	}
	if records == nil {
		records = []models.ReportRecord{}
	}

	return c.JSON(fiber.Map{
		"reports": records,
		"count":   len(records),
	})
}

func (h *AnalyzeHandler) GetReport(c *fiber.Ctx) error {
	record, err := h.db.GetReport(c.Params("id"))
	if err != nil {
		logger.Error("Failed to load report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load report",
		})
	}
	if record == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Report not found",
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(record.ReportJSON)
}

// recordReport persists the run for history queries. History is best effort;
// a storage failure never fails a completed analysis.
func (h *AnalyzeHandler) recordReport(report *bom.Report) {
	encoded, err := json.Marshal(report)
	if err != nil {
		logger.Warn("Failed to encode report for history", zap.Error(err))
		return
	}

	record := &models.ReportRecord{
		ID:             report.Metadata.ReportID,
		ImageRef:       report.Metadata.ImageRef,
		Origin:         report.TradeRoute.Origin,
		Destination:    report.TradeRoute.Destination,
		ComponentCount: len(report.Components),
		TotalWeightKg:  report.WeightSummary.TotalWeightKg,
		ReportJSON:     string(encoded),
		CreatedAt:      report.Metadata.GeneratedAt,
	}
	if est := report.TariffEstimation; est != nil {
		record.PrimaryHSCode = est.HSCodeClassification.PrimaryHSCode
		record.EffectiveRatePercent = est.TariffRates.EffectiveTotalRatePercent
		record.TotalDutyUSD = est.EstimatedDuties.TotalDutyUSD
		record.Confidence = est.Confidence
	}

	if err := h.db.InsertReport(record); err != nil {
		logger.Warn("Failed to record report history", zap.Error(err))
	}
}
