package interfaces

import (
	"context"

	"chartsignal/internal/types"
)

// Predictor submits a chart image to the inference service.
type Predictor interface {
	Predict(ctx context.Context, upload types.Upload) (types.Prediction, error)
}
