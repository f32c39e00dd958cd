package extraction

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/bomlens/backend/internal/bom"
	"github.com/bomlens/backend/pkg/logger"
)

// ErrExtractionFailed marks the one fatal stage failure: with no product
// identified at all, no report can be built.
var ErrExtractionFailed = errors.New("extraction failed")

// VisionModel is the external visual-recognition capability.
type VisionModel interface {
	AnalyzeProductImage(ctx context.Context, image []byte, userContext string) ([]bom.RawComponent, error)
}

// Adapter calls the vision capability and returns the raw candidate bill of
// materials. Output records are loosely typed; validation belongs to the
// normalization layer.
type Adapter struct {
	vision VisionModel
}

func NewAdapter(vision VisionModel) *Adapter {
	return &Adapter{vision: vision}
}

func (a *Adapter) Extract(ctx context.Context, image []byte, userContext string) ([]bom.RawComponent, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrExtractionFailed)
	}
	if mime := http.DetectContentType(image); !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%w: not a decodable image (%s)", ErrExtractionFailed, mime)
	}

	raw, err := a.vision.AnalyzeProductImage(ctx, image, userContext)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	logger.Info("Raw bill of materials extracted",
		zap.Int("candidates", len(raw)),
		zap.Bool("user_context", userContext != ""),
	)

	return raw, nil
}
