package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"chartsignal/internal/api"
	"chartsignal/internal/types"
)

const (
	PredictPath = "/predict"
	FileField   = "file"

	maxDetailBytes = 200
)

// Predictor posts chart images to the inference service's /predict endpoint.
type Predictor struct {
	client *api.Client
}

func New(client *api.Client) *Predictor {
	return &Predictor{client: client}
}

type predictResponse struct {
	Success    bool            `json:"success"`
	Prediction *wirePrediction `json:"prediction"`
	Error      string          `json:"error"`
	Detail     any             `json:"detail"`
}

type wirePrediction struct {
	Action           *string                `json:"action"`
	Confidence       *float64               `json:"confidence"`
	Strength         *string                `json:"strength"`
	ClassConfidences *types.ClassConfidences `json:"class_confidences"`
}

func (p *Predictor) Predict(ctx context.Context, upload types.Upload) (types.Prediction, error) {
	resp, err := p.client.PostMultipart(ctx, PredictPath, api.FilePart{
		Field:       FileField,
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		Data:        upload.Data,
	})
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) {
			return types.Prediction{}, &types.PredictError{
				Kind:       types.KindHTTP,
				StatusCode: se.StatusCode,
				Detail:     serverDetail(se.Body),
			}
		}
		return types.Prediction{}, &types.PredictError{Kind: types.KindNetwork, Err: err}
	}

	var r predictResponse
	if err := resp.ParseJSON(&r); err != nil {
		return types.Prediction{}, &types.PredictError{Kind: types.KindApplication, Detail: "malformed response body", Err: err}
	}
	if !r.Success {
		detail := r.Error
		if detail == "" {
			detail = detailString(r.Detail)
		}
		if detail == "" {
			detail = "service reported failure"
		}
		return types.Prediction{}, &types.PredictError{Kind: types.KindApplication, Detail: detail}
	}

	pred, err := r.Prediction.toPrediction()
	if err != nil {
		return types.Prediction{}, &types.PredictError{Kind: types.KindApplication, Detail: "malformed prediction", Err: err}
	}
	return pred, nil
}

func (w *wirePrediction) toPrediction() (types.Prediction, error) {
	if w == nil {
		return types.Prediction{}, errors.New("prediction missing")
	}
	if w.Action == nil || w.Confidence == nil || w.Strength == nil || w.ClassConfidences == nil {
		return types.Prediction{}, errors.New("prediction has missing fields")
	}
	action, ok := types.ParseAction(*w.Action)
	if !ok {
		return types.Prediction{}, fmt.Errorf("unknown action %q", *w.Action)
	}
	if err := checkPercent("confidence", *w.Confidence); err != nil {
		return types.Prediction{}, err
	}
	cc := *w.ClassConfidences
	for name, v := range map[string]float64{"buy": cc.Buy, "sell": cc.Sell, "hold": cc.Hold} {
		if err := checkPercent("class_confidences."+name, v); err != nil {
			return types.Prediction{}, err
		}
	}
	return types.Prediction{
		Action:           action,
		Confidence:       *w.Confidence,
		Strength:         strings.TrimSpace(*w.Strength),
		ClassConfidences: cc,
	}, nil
}

func checkPercent(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return fmt.Errorf("%s %.2f outside [0,100]", name, v)
	}
	return nil
}

// serverDetail extracts a human readable reason from an error response body.
func serverDetail(body []byte) string {
	var r predictResponse
	if err := json.Unmarshal(body, &r); err == nil {
		if r.Error != "" {
			return r.Error
		}
		if d := detailString(r.Detail); d != "" {
			return d
		}
	}
	return truncate(strings.TrimSpace(string(body)), maxDetailBytes)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// detailString flattens FastAPI style "detail" values (string or list of objects with msg).
func detailString(d any) string {
	switch v := d.(type) {
	case string:
		return v
	case []any:
		msgs := make([]string, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				if s, ok := m["msg"].(string); ok {
					msgs = append(msgs, s)
				}
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
