package lifecycle

import "github.com/harrisonrobin/taskflow/pkg/model"

// Phase distinguishes a fresh pending task from one bounced back for
// rework. Storage only ever holds the three Status values.
type Phase string

const (
	PhasePending       Phase = "pending"
	PhaseReturned      Phase = "returned"
	PhaseWaitingVerify Phase = "waiting_verify"
	PhaseCompleted     Phase = "completed"
)

// PhaseOf derives the display phase of a task.
func PhaseOf(task *model.Task) Phase {
	switch task.Status {
	case model.StatusWaitingVerify:
		return PhaseWaitingVerify
	case model.StatusCompleted:
		return PhaseCompleted
	}
	if task.RejectReason != "" {
		return PhaseReturned
	}
	return PhasePending
}
