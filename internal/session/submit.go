package session

import (
	"context"
	"errors"
	"time"

	"chartsignal/internal/history"
	"chartsignal/internal/intake"
	"chartsignal/internal/logger"
	"chartsignal/internal/metrics"
	"chartsignal/internal/types"
)

// Submit sends the current selection to the predictor and blocks until the
// request resolves. The pending state is published before the request is
// made. At most one request is outstanding at a time, even across selection
// changes: a request for a superseded selection still blocks new submissions
// until it resolves.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.selection == nil {
		s.message = userMessage(ErrNoSelection)
		s.mu.Unlock()
		s.publish()
		return ErrNoSelection
	}
	if s.inflight {
		s.mu.Unlock()
		return ErrAlreadyPending
	}
	gen := s.generation
	sel := s.selection
	s.inflight = true
	s.state = types.RequestState{Status: types.StatusPending}
	s.prediction = nil
	s.message = ""
	s.mu.Unlock()
	s.publish()

	op := logger.StartOperation(ctx, "session.Submit", "filename", sel.Name, "selection", gen)
	ctx = op.GetContext()
	start := time.Now()

	pred, err := s.predict(ctx, sel)
	elapsed := time.Since(start)

	s.mu.Lock()
	s.inflight = false
	if s.generation != gen {
		s.mu.Unlock()
		s.metrics.Resolved(metrics.OutcomeSuperseded, elapsed)
		logger.Info(ctx, "Discarding result for superseded selection", "filename", sel.Name, "selection", gen)
		op.End("outcome", metrics.OutcomeSuperseded)
		s.publish()
		return ErrSuperseded
	}

	if err != nil {
		pe := asPredictError(err)
		s.state = types.RequestState{Status: types.StatusFailed, Failure: pe}
		s.message = pe.Message()
		s.mu.Unlock()

		s.metrics.Resolved(outcomeFor(pe.Kind), elapsed)
		op.EndWithError(pe, "kind", string(pe.Kind))
		s.publish()
		return pe
	}

	entry := history.NewEntry(sel.Name, pred, sel.Preview, s.now(), s.layout)
	seq, evicted := s.history.Record(entry)
	s.state = types.RequestState{Status: types.StatusSucceeded}
	s.prediction = &pred
	s.message = ""
	s.mu.Unlock()

	s.metrics.Resolved(metrics.OutcomeSucceeded, elapsed)
	s.metrics.HistoryRecorded(len(seq), evicted)
	op.End("outcome", metrics.OutcomeSucceeded, "action", string(pred.Action))
	s.publish()
	return nil
}

func (s *Session) predict(ctx context.Context, sel *intake.Selection) (types.Prediction, error) {
	data, err := intake.ReadAll(sel.File)
	if err != nil {
		return types.Prediction{}, &types.PredictError{
			Kind:   types.KindNetwork,
			Detail: "could not read the selected file",
			Err:    err,
		}
	}
	return s.predictor.Predict(ctx, types.Upload{
		Filename:    sel.Name,
		ContentType: sel.ContentType,
		Data:        data,
	})
}

func asPredictError(err error) *types.PredictError {
	var pe *types.PredictError
	if errors.As(err, &pe) {
		return pe
	}
	return &types.PredictError{Kind: types.KindNetwork, Err: err}
}

func outcomeFor(kind types.FailureKind) string {
	switch kind {
	case types.KindHTTP:
		return metrics.OutcomeHTTPError
	case types.KindApplication:
		return metrics.OutcomeApplicationError
	default:
		return metrics.OutcomeNetworkError
	}
}
