package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"chartsignal/internal/api"
	"chartsignal/internal/types"
)

const buyResponse = `{"success":true,"prediction":{"action":"BUY","confidence":82,"strength":"strong","class_confidences":{"buy":82,"sell":10,"hold":8}}}`

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PredictPath {
			t.Errorf("path = %s, want %s", r.URL.Path, PredictPath)
		}
		f, hdr, err := r.FormFile(FileField)
		if err != nil {
			t.Errorf("FormFile(%s): %v", FileField, err)
		} else {
			data, _ := io.ReadAll(f)
			f.Close()
			if hdr.Filename != "chart.png" || string(data) != "pngdata" {
				t.Errorf("unexpected upload %s %q", hdr.Filename, data)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func predict(t *testing.T, baseURL string) (types.Prediction, error) {
	t.Helper()
	p := New(api.NewClient(api.WithBaseURL(baseURL)))
	return p.Predict(context.Background(), types.Upload{
		Filename:    "chart.png",
		ContentType: "image/png",
		Data:        []byte("pngdata"),
	})
}

func TestPredict_Success(t *testing.T) {
	srv := newServer(t, http.StatusOK, buyResponse)

	got, err := predict(t, srv.URL)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := types.Prediction{
		Action:           types.ActionBuy,
		Confidence:       82,
		Strength:         "strong",
		ClassConfidences: types.ClassConfidences{Buy: 82, Sell: 10, Hold: 8},
	}
	if got != want {
		t.Errorf("Predict = %+v, want %+v", got, want)
	}
}

func TestPredict_UnnormalizedClassConfidences(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"success":true,"prediction":{"action":"hold","confidence":40,"strength":"weak","class_confidences":{"buy":40,"sell":40,"hold":40}}}`)

	got, err := predict(t, srv.URL)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got.Action != types.ActionHold {
		t.Errorf("Action = %s, want HOLD", got.Action)
	}
	if sum := got.ClassConfidences.Buy + got.ClassConfidences.Sell + got.ClassConfidences.Hold; sum != 120 {
		t.Errorf("class confidences should be kept as sent, sum = %v", sum)
	}
}

func TestPredict_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   types.FailureKind
		wantDetail string
	}{
		{"http 500", http.StatusInternalServerError, `{"detail":"model crashed"}`, types.KindHTTP, "model crashed"},
		{"http 422 list detail", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"}]}`, types.KindHTTP, "field required"},
		{"success false", http.StatusOK, `{"success":false,"error":"Invalid image"}`, types.KindApplication, "Invalid image"},
		{"not json", http.StatusOK, `<html>oops</html>`, types.KindApplication, "malformed response body"},
		{"missing prediction", http.StatusOK, `{"success":true}`, types.KindApplication, "malformed prediction"},
		{"unknown action", http.StatusOK, `{"success":true,"prediction":{"action":"SHORT","confidence":50,"strength":"x","class_confidences":{"buy":1,"sell":1,"hold":1}}}`, types.KindApplication, "malformed prediction"},
		{"confidence out of range", http.StatusOK, `{"success":true,"prediction":{"action":"SELL","confidence":150,"strength":"x","class_confidences":{"buy":1,"sell":1,"hold":1}}}`, types.KindApplication, "malformed prediction"},
		{"negative class confidence", http.StatusOK, `{"success":true,"prediction":{"action":"SELL","confidence":50,"strength":"x","class_confidences":{"buy":-1,"sell":1,"hold":1}}}`, types.KindApplication, "malformed prediction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.body)
			_, err := predict(t, srv.URL)

			var pe *types.PredictError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *types.PredictError, got %v", err)
			}
			if pe.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", pe.Kind, tt.wantKind)
			}
			if pe.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", pe.Detail, tt.wantDetail)
			}
			if tt.wantKind == types.KindHTTP && pe.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", pe.StatusCode, tt.status)
			}
			if pe.Message() == "" {
				t.Error("expected a user-facing message")
			}
		})
	}
}

func TestPredict_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := predict(t, url)
	var pe *types.PredictError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *types.PredictError, got %v", err)
	}
	if pe.Kind != types.KindNetwork {
		t.Errorf("Kind = %s, want %s", pe.Kind, types.KindNetwork)
	}
	if pe.Unwrap() == nil {
		t.Error("expected underlying transport error")
	}
}

func TestPredict_LongDetailKeepsRunes(t *testing.T) {
	body := strings.Repeat("a", maxDetailBytes-1) + strings.Repeat("é", 10)
	srv := newServer(t, http.StatusBadGateway, body)

	_, err := predict(t, srv.URL)
	var pe *types.PredictError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *types.PredictError, got %v", err)
	}
	if !utf8.ValidString(pe.Detail) || !utf8.ValidString(pe.Message()) {
		t.Errorf("detail split a rune: %q", pe.Detail)
	}
	if len(pe.Detail) != maxDetailBytes-1 {
		t.Errorf("len(Detail) = %d, want %d", len(pe.Detail), maxDetailBytes-1)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"aé", 2, "a"},
		{"日本語", 6, "日本"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
