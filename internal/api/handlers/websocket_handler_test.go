package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bomlens/backend/internal/bom"
	"github.com/bomlens/backend/internal/pipeline"
)

type stubExtractor struct {
	calls int
}

func (e *stubExtractor) Extract(ctx context.Context, image []byte, userContext string) ([]bom.RawComponent, error) {
	e.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []bom.RawComponent{{Name: "Frame", Quantity: 1.0, Material: "Steel"}}, nil
}

type stubEnricher struct{}

func (stubEnricher) EnrichAll(ctx context.Context, bill bom.BillOfMaterials) (bom.BillOfMaterials, []string, error) {
	for i := range bill {
		bill[i].WeightPerUnitKg = 1.0
		bill[i].WeightTotalKg = float64(bill[i].Quantity)
		bill[i].RawMaterials = map[string]float64{"steel": 100}
	}
	return bill, nil, nil
}

type stubTariff struct{}

func (stubTariff) Estimate(
	ctx context.Context,
	bill bom.BillOfMaterials,
	composition bom.Composition,
	summary bom.WeightSummary,
	route bom.TradeRoute,
	declaredValueUSD *float64,
) (*bom.TariffEstimate, []string, error) {
	return &bom.TariffEstimate{Confidence: "low"}, nil, nil
}

// recordingWriter collects outbound socket messages.
type recordingWriter struct {
	messages []map[string]interface{}
}

func (w *recordingWriter) WriteJSON(v interface{}) error {
	if m, ok := v.(map[string]interface{}); ok {
		w.messages = append(w.messages, m)
	}
	return nil
}

// closedWriter behaves like a connection whose peer has gone away.
type closedWriter struct{}

func (closedWriter) WriteJSON(v interface{}) error {
	return errors.New("websocket: close sent")
}

func testMessage() analyzeMessage {
	return analyzeMessage{
		Type:        "analyze",
		ImageBase64: base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4e, 0x47}),
		ImageRef:    "shelf.png",
	}
}

func TestRunAnalysisStreamsStagesThenReport(t *testing.T) {
	controller := pipeline.NewController(&stubExtractor{}, stubEnricher{}, stubTariff{})
	h := NewWebSocketHandler(controller, "China", "United States")

	conn := &recordingWriter{}
	err := h.runAnalysis(context.Background(), conn, testMessage())
	require.NoError(t, err)

	require.NotEmpty(t, conn.messages)
	assert.Equal(t, "stage", conn.messages[0]["type"])
	assert.Equal(t, "extracting", conn.messages[0]["state"])

	last := conn.messages[len(conn.messages)-1]
	assert.Equal(t, "complete", last["type"])
	assert.NotNil(t, last["report"])
}

func TestRunAnalysisCancelsRunWhenClientGone(t *testing.T) {
	extractor := &stubExtractor{}
	controller := pipeline.NewController(extractor, stubEnricher{}, stubTariff{})
	h := NewWebSocketHandler(controller, "China", "United States")

	// The first stage write fails, so the run context is cancelled before
	// any external call goes out.
	err := h.runAnalysis(context.Background(), closedWriter{}, testMessage())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunAnalysisRejectsBadBase64(t *testing.T) {
	controller := pipeline.NewController(&stubExtractor{}, stubEnricher{}, stubTariff{})
	h := NewWebSocketHandler(controller, "China", "United States")

	conn := &recordingWriter{}
	msg := testMessage()
	msg.ImageBase64 = "not base64!!"

	err := h.runAnalysis(context.Background(), conn, msg)
	require.NoError(t, err)

	require.Len(t, conn.messages, 1)
	assert.Equal(t, "error", conn.messages[0]["type"])
}
