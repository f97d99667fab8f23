// Package codegen turns a streaming model response into a sequence of
// cumulative Snapshots of a code edit: the plan text and the files written so
// far. Each Snapshot supersedes the previous one; nothing in it is a delta.
package codegen

import (
	"context"

	"github.com/martinemde/mojocode/unifiedllm"
)

// PlanState is the streaming state of the plan block.
type PlanState string

const (
	PlanPending    PlanState = "Pending"
	PlanIncomplete PlanState = "Incomplete"
	PlanComplete   PlanState = "Complete"
)

// Plan is the cumulative plan text and whether it has been closed.
type Plan struct {
	State PlanState `json:"state"`
	Value string    `json:"value"`
}

// File is the cumulative content written to one path.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Done    bool   `json:"done,omitempty"`
}

// Snapshot is one cumulative progress update for a turn.
type Snapshot struct {
	Plan  Plan   `json:"plan"`
	Files []File `json:"files"`
}

// Equal reports whether two snapshots carry the same plan and files.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Plan != o.Plan || len(s.Files) != len(o.Files) {
		return false
	}
	for i := range s.Files {
		if s.Files[i] != o.Files[i] {
			return false
		}
	}
	return true
}

// Request is everything the model is conditioned on for one turn.
type Request struct {
	History  []unifiedllm.Message
	Feedback string
	Files    []File
	Manifest any
}

// Update is one element of a snapshot stream. A non-nil Err is terminal.
type Update struct {
	Snapshot Snapshot
	Err      error
}

// Streamer produces the snapshot stream for one turn. The channel is closed
// when the model finishes, after an Update carrying Err, or when ctx is done.
type Streamer interface {
	Stream(ctx context.Context, req Request) (<-chan Update, error)
}
