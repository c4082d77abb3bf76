package types

import "fmt"

// FailureKind classifies why a prediction request did not succeed.
type FailureKind string

const (
	KindHTTP        FailureKind = "HttpError"
	KindApplication FailureKind = "ApplicationError"
	KindNetwork     FailureKind = "NetworkError"
)

// PredictError is returned by predictors for every unsuccessful request.
type PredictError struct {
	Kind       FailureKind
	StatusCode int    // KindHTTP only
	Detail     string // server supplied reason, if any
	Err        error
}

func (e *PredictError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PredictError) Unwrap() error { return e.Err }

// Message is the user-facing text shown in the error slot.
func (e *PredictError) Message() string {
	switch e.Kind {
	case KindHTTP:
		if e.Detail != "" {
			return fmt.Sprintf("Prediction service returned HTTP %d: %s", e.StatusCode, e.Detail)
		}
		return fmt.Sprintf("Prediction service returned HTTP %d", e.StatusCode)
	case KindApplication:
		if e.Detail != "" {
			return "Prediction failed: " + e.Detail
		}
		return "Prediction failed: unexpected response from service"
	default:
		return "Could not reach the prediction service. Is it running?"
	}
}
