package view

import (
	"encoding/json"
	"fmt"
	"strings"

	"chartsignal/internal/session"
	"chartsignal/internal/types"
)

// Format specifies the output format for rendered snapshots
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat returns the format named by s, defaulting to text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unsupported format: %s", s)
	}
}

// Renderer turns session snapshots into terminal output
type Renderer struct {
	format Format
	width  int
}

func NewRenderer(format Format) *Renderer {
	return &Renderer{format: format, width: 60}
}

// Snapshot renders the selection, request state and prediction.
func (r *Renderer) Snapshot(snap session.Snapshot) (string, error) {
	if r.format == FormatJSON {
		return r.snapshotJSON(snap)
	}
	return r.snapshotText(snap), nil
}

// History renders the recent predictions, newest first.
func (r *Renderer) History(entries []types.HistoryEntry) (string, error) {
	if r.format == FormatJSON {
		return marshal(historyJSON(entries))
	}
	return r.historyText(entries), nil
}

func (r *Renderer) snapshotText(snap session.Snapshot) string {
	var sb strings.Builder

	if snap.Selection == nil {
		sb.WriteString("No chart selected\n")
	} else {
		sel := snap.Selection
		preview := "loading preview"
		if sel.PreviewReady {
			preview = "preview ready"
		}
		sb.WriteString(fmt.Sprintf("Chart: %s (%s, %s, %s)\n", sel.Name, sel.ContentType, humanSize(sel.Size), preview))
	}

	switch snap.State.Status {
	case types.StatusPending:
		sb.WriteString("Analyzing chart...\n")
	case types.StatusIdle:
		if snap.InFlight {
			sb.WriteString("Waiting for the previous request to finish...\n")
		}
	case types.StatusSucceeded:
		if snap.Prediction != nil {
			r.writePrediction(&sb, *snap.Prediction)
		}
	}

	if snap.Message != "" {
		sb.WriteString(fmt.Sprintf("Error: %s\n", snap.Message))
	}
	return sb.String()
}

func (r *Renderer) writePrediction(sb *strings.Builder, p types.Prediction) {
	sb.WriteString(strings.Repeat("-", r.width) + "\n")
	sb.WriteString(fmt.Sprintf("Signal: %s  Confidence: %.1f%%  Strength: %s\n", p.Action, p.Confidence, p.Strength))
	for _, c := range []struct {
		label string
		value float64
	}{
		{"BUY", p.ClassConfidences.Buy},
		{"SELL", p.ClassConfidences.Sell},
		{"HOLD", p.ClassConfidences.Hold},
	} {
		sb.WriteString(fmt.Sprintf("  %-4s %5.1f%% %s\n", c.label, c.value, bar(c.value, 30)))
	}
	sb.WriteString(strings.Repeat("-", r.width) + "\n")
}

func (r *Renderer) historyText(entries []types.HistoryEntry) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("RECENT PREDICTIONS: %d\n", len(entries)))
	sb.WriteString(strings.Repeat("=", r.width) + "\n")
	if len(entries) == 0 {
		sb.WriteString("No predictions yet.\n")
		return sb.String()
	}
	for i, e := range entries {
		sb.WriteString(fmt.Sprintf("%d. [%s] %-4s %5.1f%%  %s\n", i+1, e.Timestamp, e.Prediction.Action, e.Prediction.Confidence, e.Filename))
	}
	return sb.String()
}

func (r *Renderer) snapshotJSON(snap session.Snapshot) (string, error) {
	out := snapshotDoc{
		Status:     snap.State.Status.String(),
		InFlight:   snap.InFlight,
		Prediction: snap.Prediction,
		Message:    snap.Message,
		History:    historyJSON(snap.History),
	}
	if snap.Selection != nil {
		out.Selection = &selectionDoc{
			Name:         snap.Selection.Name,
			Size:         snap.Selection.Size,
			ContentType:  snap.Selection.ContentType,
			PreviewReady: snap.Selection.PreviewReady,
		}
	}
	if f := snap.State.Failure; f != nil {
		out.FailureKind = string(f.Kind)
	}
	return marshal(out)
}

type selectionDoc struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
	PreviewReady bool   `json:"preview_ready"`
}

type snapshotDoc struct {
	Selection   *selectionDoc     `json:"selection,omitempty"`
	Status      string            `json:"status"`
	InFlight    bool              `json:"in_flight"`
	FailureKind string            `json:"failure_kind,omitempty"`
	Prediction  *types.Prediction `json:"prediction,omitempty"`
	Message     string            `json:"message,omitempty"`
	History     []historyDoc      `json:"history"`
}

// historyDoc omits the preview; data URIs are too large for terminal output.
type historyDoc struct {
	ID         string           `json:"id"`
	Filename   string           `json:"filename"`
	Timestamp  string           `json:"timestamp"`
	Prediction types.Prediction `json:"prediction"`
}

func historyJSON(entries []types.HistoryEntry) []historyDoc {
	docs := make([]historyDoc, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, historyDoc{ID: e.ID, Filename: e.Filename, Timestamp: e.Timestamp, Prediction: e.Prediction})
	}
	return docs
}

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func bar(pct float64, width int) string {
	n := int(pct / 100 * float64(width))
	if n < 0 {
		n = 0
	}
	if n > width {
		n = width
	}
	return strings.Repeat("#", n) + strings.Repeat(".", width-n)
}

func humanSize(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
