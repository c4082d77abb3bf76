package predictorobs

import (
	"context"
	"errors"
	"time"

	"chartsignal/internal/interfaces"
	"chartsignal/internal/logger"
	"chartsignal/internal/types"
)

// observablePredictor wraps a Predictor with logging and tracing
type observablePredictor struct {
	predictor interfaces.Predictor
}

var _ interfaces.Predictor = (*observablePredictor)(nil)

// Wrap wraps a predictor with observability middleware
func Wrap(predictor interfaces.Predictor) interfaces.Predictor {
	return &observablePredictor{
		predictor: predictor,
	}
}

func (op *observablePredictor) Predict(ctx context.Context, upload types.Upload) (types.Prediction, error) {
	ctx, span := logger.StartSpan(ctx, "predictor.Predict")
	defer span.End()

	start := time.Now()
	logger.DebugSkip(ctx, 1, "Requesting prediction",
		"filename", upload.Filename,
		"content_type", upload.ContentType,
		"bytes", len(upload.Data),
	)

	pred, err := op.predictor.Predict(ctx, upload)
	if err != nil {
		fields := []any{
			"filename", upload.Filename,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		var pe *types.PredictError
		if errors.As(err, &pe) {
			fields = append(fields, "kind", string(pe.Kind), "status", pe.StatusCode)
		}
		logger.ErrorWithErrSkip(ctx, 1, "Prediction request failed", err, fields...)
		return types.Prediction{}, err
	}

	logger.Prediction(ctx, upload.Filename, string(pred.Action), pred.Confidence, pred.Strength,
		"buy", pred.ClassConfidences.Buy,
		"sell", pred.ClassConfidences.Sell,
		"hold", pred.ClassConfidences.Hold,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return pred, nil
}
