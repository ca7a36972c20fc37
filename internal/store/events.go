package store

import (
	"context"

	"gigledger/internal/core"
	"gigledger/internal/log"
)

// Publisher announces committed mutations, e.g. on a message bus.
type Publisher interface {
	PublishRecordEvent(ctx context.Context, ev core.RecordEvent) error
}

// Outcome classifies a mutation for metrics.
type Outcome string

const (
	OutcomeAccepted        Outcome = "accepted"
	OutcomeUpgradeRequired Outcome = "upgrade_required"
	OutcomeFailed          Outcome = "failed"
)

// Recorder counts mutation outcomes.
type Recorder interface {
	RecordMutation(c core.Collection, op string, outcome Outcome)
}

func (s *Store) record(c core.Collection, op string, res Result) {
	if s.recorder == nil {
		return
	}
	outcome := OutcomeFailed
	switch {
	case res.Success:
		outcome = OutcomeAccepted
	case res.RequiresUpgrade:
		outcome = OutcomeUpgradeRequired
	}
	s.recorder.RecordMutation(c, op, outcome)
}

// emit publishes ev. A publish failure never fails the mutation; the
// record is already committed.
func (s *Store) emit(ctx context.Context, c core.Collection, op, id string) {
	if s.publisher == nil {
		return
	}
	ev := core.RecordEvent{Collection: c, Op: op, ID: id, At: s.now().UTC()}
	if err := s.publisher.PublishRecordEvent(ctx, ev); err != nil {
		s.logger.LogError(ctx, "Failed to publish record event", err, log.OpPublish,
			log.NewFields().WithRecord(string(c), id).WithErrorType(log.ErrorTypeNetwork))
	}
}
