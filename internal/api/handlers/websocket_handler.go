package handlers

import (
	"context"
	"encoding/base64"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/bomlens/backend/internal/pipeline"
	"github.com/bomlens/backend/pkg/logger"
)

// WebSocketHandler runs analyses over a socket, streaming stage transitions
// as they happen followed by the finished report.
type WebSocketHandler struct {
	controller         *pipeline.Controller
	defaultOrigin      string
	defaultDestination string
}

func NewWebSocketHandler(controller *pipeline.Controller, defaultOrigin, defaultDestination string) *WebSocketHandler {
	return &WebSocketHandler{
		controller:         controller,
		defaultOrigin:      defaultOrigin,
		defaultDestination: defaultDestination,
	}
}

type analyzeMessage struct {
	Type             string   `json:"type"`
	ImageBase64      string   `json:"image_base64"`
	ImageRef         string   `json:"image_ref"`
	UserContext      string   `json:"user_context"`
	Origin           string   `json:"origin"`
	Destination      string   `json:"destination"`
	DeclaredValueUSD *float64 `json:"declared_value_usd"`
}

// jsonWriter is the outbound half of a socket connection.
type jsonWriter interface {
	WriteJSON(v interface{}) error
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg analyzeMessage
		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "analyze" {
			continue
		}

		if err := h.runAnalysis(ctx, c, msg); err != nil {
			h.sendError(c, err.Error())
		}
	}
}

func (h *WebSocketHandler) runAnalysis(ctx context.Context, c jsonWriter, msg analyzeMessage) error {
	image, err := base64.StdEncoding.DecodeString(msg.ImageBase64)
	if err != nil {
		h.sendError(c, "image_base64 is not valid base64")
		return nil
	}

	req := pipeline.Request{
		Image:            image,
		ImageRef:         msg.ImageRef,
		UserContext:      msg.UserContext,
		Origin:           msg.Origin,
		Destination:      msg.Destination,
		DeclaredValueUSD: msg.DeclaredValueUSD,
	}
	if req.Origin == "" {
		req.Origin = h.defaultOrigin
	}
	if req.Destination == "" {
		req.Destination = h.defaultDestination
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Stage callbacks fire on this goroutine, so writing directly to the
	// connection is safe. A failed write means the client is gone: cancel
	// the run so its in-flight external calls stop.
	onProgress := func(event pipeline.StageEvent) {
		if err := c.WriteJSON(map[string]interface{}{
			"type":   "stage",
			"state":  string(event.State),
			"detail": event.Detail,
		}); err != nil {
			logger.Debug("Failed to stream stage event, cancelling run", zap.Error(err))
			cancel()
		}
	}

	report, err := h.controller.Run(runCtx, req, onProgress)
	if err != nil {
		return err
	}

	return c.WriteJSON(map[string]interface{}{
		"type":   "complete",
		"report": report,
	})
}

func (h *WebSocketHandler) sendError(c jsonWriter, errorMsg string) {
	if err := c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}); err != nil {
		logger.Debug("Failed to send WebSocket error", zap.Error(err))
	}
}
