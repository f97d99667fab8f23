package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/martinemde/mojocode/codegen"
)

// turn is the reconciliation state of one feedback turn. It is discarded
// when the turn ends.
type turn struct {
	feedback string
	history  *History
	emit     Sink

	planID    string
	fileID    string
	planFinal bool
	plan      string
	seen      map[string]bool
	code      CodeMap
	snapshots int
}

func newTurn(feedback string, history *History, emit Sink) *turn {
	return &turn{
		feedback: feedback,
		history:  history,
		emit:     emit,
		planID:   uuid.NewString(),
		fileID:   uuid.NewString(),
		seen:     make(map[string]bool),
		code:     make(CodeMap),
	}
}

// apply reconciles one cumulative snapshot against what the turn has already
// reported. Plan messages go out before file messages.
func (t *turn) apply(snap codegen.Snapshot) error {
	t.snapshots++

	if !t.planFinal {
		t.plan = snap.Plan.Value
		if snap.Plan.State != codegen.PlanComplete {
			if err := t.emit(NewMessageWithID(t.planID, TypeAgentPartial, map[string]any{"text": snap.Plan.Value})); err != nil {
				return err
			}
		} else {
			if err := t.emit(NewMessageWithID(t.planID, TypeAgentFinal, map[string]any{"text": snap.Plan.Value})); err != nil {
				return err
			}
			t.history.Append(t.feedback, snap.Plan.Value)
			t.planFinal = true
		}
	}

	for _, f := range snap.Files {
		// Notify once per path, but always keep the latest content for the
		// write-back.
		t.code[f.Path] = f.Content
		if t.seen[f.Path] {
			continue
		}
		t.seen[f.Path] = true
		err := t.emit(NewMessageWithID(t.fileID, TypeUpdateFile, map[string]any{
			"text": "Working on " + f.Path,
			"path": f.Path,
		}))
		if err != nil {
			return err
		}
	}
	return nil
}

// run applies updates in arrival order until the stream closes. It returns
// ctx.Err() when cancelled and the wrapped stream error when the model
// fails; in both cases the accumulated code must not be written back.
func (t *turn) run(ctx context.Context, updates <-chan codegen.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			if u.Err != nil {
				return fmt.Errorf("agent: model stream: %w", u.Err)
			}
			if err := t.apply(u.Snapshot); err != nil {
				return err
			}
		}
	}
}
