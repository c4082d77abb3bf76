package types

import (
	"fmt"
	"strings"
)

// Action is the trading signal returned by the inference service.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction normalizes s and reports whether it names a known action.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case ActionBuy, ActionSell, ActionHold:
		return a, true
	}
	return "", false
}

// ClassConfidences holds per-class scores in [0,100]. They are not normalized.
type ClassConfidences struct {
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
	Hold float64 `json:"hold"`
}

type Prediction struct {
	Action           Action           `json:"action"`
	Confidence       float64          `json:"confidence"`
	Strength         string           `json:"strength"`
	ClassConfidences ClassConfidences `json:"class_confidences"`
}

// Upload is the binary payload handed to a Predictor.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type HistoryEntry struct {
	ID         string     `json:"id"`
	Filename   string     `json:"filename"`
	Prediction Prediction `json:"prediction"`
	Timestamp  string     `json:"timestamp"`
	Preview    string     `json:"preview"`
}

// RequestStatus is the lifecycle state of the submission controller.
type RequestStatus int

const (
	StatusIdle RequestStatus = iota
	StatusPending
	StatusSucceeded
	StatusFailed
)

func (s RequestStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type RequestState struct {
	Status  RequestStatus
	Failure *PredictError // set only when Status == StatusFailed
}
