package controller

import "github.com/helmcode/repoguardian/pkg/model"

// GenericFailureMessage is the only failure text shown to users. Technical
// detail is logged and kept in LastError.
const GenericFailureMessage = "Something went wrong; ensure the service is reachable and the repository is public"

type Phase int

const (
	Idle Phase = iota
	InFlight
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case InFlight:
		return "in-flight"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Settled reports whether the phase ends a submission.
func (p Phase) Settled() bool {
	return p == Succeeded || p == Failed
}

// State is a snapshot of the controller. Aggregate is set only when
// Succeeded and Message only when Failed; the aggregate must be treated as
// read-only.
type State struct {
	Phase        Phase
	RepositoryID string
	RequestID    string
	Generation   uint64
	Aggregate    *model.Aggregate
	Message      string
}
