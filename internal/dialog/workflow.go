package dialog

import (
	"sync"

	"github.com/spec-kit/community-service/internal/domain"
)

// WorkflowKind identifies a multi-turn collection flow.
type WorkflowKind string

const (
	WorkflowFeedback WorkflowKind = "feedback"
	WorkflowFeature  WorkflowKind = "feature"
	WorkflowSupport  WorkflowKind = "support"
)

// Valid reports whether the value is a known workflow kind.
func (k WorkflowKind) Valid() bool {
	switch k {
	case WorkflowFeedback, WorkflowFeature, WorkflowSupport:
		return true
	}
	return false
}

// step is the position inside a workflow. Text steps consume free-form
// messages; choice steps consume button selections.
type step string

const (
	stepChooseType       step = "choose_type"
	stepEnterContent     step = "enter_content"
	stepChooseRating     step = "choose_rating"
	stepEnterTitle       step = "enter_title"
	stepEnterDescription step = "enter_description"
	stepEnterSubject     step = "enter_subject"
	stepChoosePriority   step = "choose_priority"
)

func (s step) acceptsText() bool {
	switch s {
	case stepEnterContent, stepEnterTitle, stepEnterDescription, stepEnterSubject:
		return true
	}
	return false
}

// draft is the workflow-specific accumulation of answers. Each kind
// carries only the fields its own flow collects.
type draft interface {
	workflowKind() WorkflowKind
}

type feedbackDraft struct {
	Type    domain.FeedbackType
	Content string
}

func (*feedbackDraft) workflowKind() WorkflowKind { return WorkflowFeedback }

type featureDraft struct {
	Title string
}

func (*featureDraft) workflowKind() WorkflowKind { return WorkflowFeature }

type supportDraft struct {
	Subject     string
	Description string
}

func (*supportDraft) workflowKind() WorkflowKind { return WorkflowSupport }

// session is one active workflow instance for one user. A user holds at
// most one session per workflow kind; re-entering a flow replaces it.
// mu serializes all step and draft access: the platform gives no
// ordering guarantee, so two deliveries for the same user can race.
// done marks a session that finished or was replaced; late input
// against it is ignored rather than re-advanced.
type session struct {
	mu     sync.Mutex
	userID int64
	kind   WorkflowKind
	step   step
	draft  draft
	done   bool
}

func newSession(kind WorkflowKind, userID int64) *session {
	sess := &session{userID: userID, kind: kind}
	switch kind {
	case WorkflowFeedback:
		sess.step = stepChooseType
		sess.draft = &feedbackDraft{}
	case WorkflowFeature:
		sess.step = stepEnterTitle
		sess.draft = &featureDraft{}
	case WorkflowSupport:
		sess.step = stepEnterSubject
		sess.draft = &supportDraft{}
	}
	return sess
}
