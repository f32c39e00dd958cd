package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bomlens/backend/internal/bom"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	h := NewAnalyzeHandler(nil, nil, "China", "United States")
	app.Post("/api/analyze", h.HandleAnalyze)
	app.Get("/api/demo", h.HandleDemo)
	return app
}

func TestDemoEndpointReturnsValidReport(t *testing.T) {
	app := newTestApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/demo", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload struct {
		Success bool       `json:"success"`
		Report  bom.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))

	assert.True(t, payload.Success)
	assert.NotEmpty(t, payload.Report.Metadata.ReportID)
	assert.NotEmpty(t, payload.Report.Components)
	require.NotNil(t, payload.Report.TariffEstimation)
	assert.NotEmpty(t, payload.Report.TariffEstimation.HSCodeClassification.PrimaryHSCode)

	var sum float64
	for _, pct := range payload.Report.MaterialComposition.AggregatePercentages {
		sum += pct
	}
	assert.InDelta(t, 100.0, sum, 0.5)
}

func TestAnalyzeRequiresImage(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("POST", "/api/analyze", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
