package dialog

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/community-service/internal/domain"
	"github.com/spec-kit/community-service/internal/gateway"
	"github.com/spec-kit/community-service/internal/observability"
	"github.com/spec-kit/community-service/internal/repository"
	"github.com/spec-kit/community-service/internal/service"
	"github.com/spec-kit/community-service/pkg/util"
)

// Selection data namespaces. The platform echoes these back when a user
// taps a button; the prefix routes the payload to the right step.
const (
	selectFeedbackPrefix = "feedback_"
	selectRatingPrefix   = "rating_"
	selectPriorityPrefix = "priority_"
	selectCancelPrefix   = "cancel_"
	selectVotePrefix     = "vote_"
	selectResolvePrefix  = "resolve_"
)

type sessionKey struct {
	userID int64
	kind   WorkflowKind
}

// textRouting is the order in which a user's concurrent sessions are
// offered a free-form message.
var textRouting = []WorkflowKind{WorkflowFeedback, WorkflowFeature, WorkflowSupport}

// Dispatcher routes inbound platform traffic (commands, text messages,
// button selections) through per-user workflow sessions and into the
// services. All state lives in memory; a restart drops unfinished
// drafts but never stored entities.
type Dispatcher struct {
	// mu guards the sessions map only; step and draft access goes
	// through each session's own lock. Lock order is sess.mu then mu.
	mu       sync.Mutex
	sessions map[sessionKey]*session

	gateway  gateway.Gateway
	users    UserResolver
	feedback *service.FeedbackService
	features *service.FeatureService
	support  *service.SupportService
	stats    *service.StatsService
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// UserResolver resolves a platform user ID into an identity.
type UserResolver interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

// Dependencies bundles collaborators for the dispatcher.
type Dependencies struct {
	Gateway         gateway.Gateway
	Users           UserResolver
	FeedbackService *service.FeedbackService
	FeatureService  *service.FeatureService
	SupportService  *service.SupportService
	StatsService    *service.StatsService
	Metrics         *observability.Metrics
	Logger          *zap.Logger
}

// NewDispatcher constructs the dispatcher.
func NewDispatcher(deps Dependencies) *Dispatcher {
	return &Dispatcher{
		sessions: make(map[sessionKey]*session),
		gateway:  deps.Gateway,
		users:    deps.Users,
		feedback: deps.FeedbackService,
		features: deps.FeatureService,
		support:  deps.SupportService,
		stats:    deps.StatsService,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// StartWorkflow opens (or restarts) a workflow for the user and sends
// the opening prompt. An unfinished instance of the same kind is
// discarded; other kinds keep running.
func (d *Dispatcher) StartWorkflow(ctx context.Context, kind WorkflowKind, userID int64) error {
	if !kind.Valid() {
		return util.NewValidationError("unknown workflow kind", map[string]any{"kind": kind})
	}

	d.mu.Lock()
	key := sessionKey{userID: userID, kind: kind}
	old := d.sessions[key]
	sess := newSession(kind, userID)
	d.sessions[key] = sess
	d.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		replaced := !old.done
		old.done = true
		old.mu.Unlock()
		if replaced {
			d.logger.Debug("replacing unfinished workflow",
				zap.Int64("user_id", userID), zap.String("kind", string(kind)))
			d.metrics.RecordWorkflow(string(kind), "aborted")
		}
	}

	d.metrics.RecordWorkflow(string(kind), "started")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return d.promptStep(ctx, sess)
}

// HandleText feeds a free-form message to the user's active workflow.
// It reports false when no session was waiting for text, so the caller
// can treat the message as stray input.
func (d *Dispatcher) HandleText(ctx context.Context, userID int64, text string) (bool, error) {
	d.mu.Lock()
	candidates := make([]*session, 0, len(textRouting))
	for _, kind := range textRouting {
		if sess, ok := d.sessions[sessionKey{userID: userID, kind: kind}]; ok {
			candidates = append(candidates, sess)
		}
	}
	d.mu.Unlock()

	for _, sess := range candidates {
		sess.mu.Lock()
		if sess.done || !sess.step.acceptsText() {
			sess.mu.Unlock()
			continue
		}
		handled, err := d.advanceText(ctx, sess, text)
		sess.mu.Unlock()
		return handled, err
	}
	return false, nil
}

// advanceText runs with sess.mu held so the read-advance-write of the
// step and draft is atomic against concurrent deliveries.
func (d *Dispatcher) advanceText(ctx context.Context, sess *session, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		// Blank input never advances a step.
		return true, d.promptStep(ctx, sess)
	}

	switch dr := sess.draft.(type) {
	case *feedbackDraft:
		return true, d.advanceFeedbackText(ctx, sess, dr, text)
	case *featureDraft:
		return true, d.advanceFeatureText(ctx, sess, dr, text)
	case *supportDraft:
		return true, d.advanceSupportText(ctx, sess, dr, text)
	}
	return false, nil
}

func (d *Dispatcher) advanceFeedbackText(ctx context.Context, sess *session, dr *feedbackDraft, text string) error {
	if sess.step != stepEnterContent {
		return d.promptStep(ctx, sess)
	}
	dr.Content = text
	if dr.Type == domain.FeedbackTypeGeneral {
		sess.step = stepChooseRating
		return d.promptStep(ctx, sess)
	}
	d.endSession(sess)
	return d.completeFeedback(ctx, sess.userID, dr, 0)
}

func (d *Dispatcher) advanceFeatureText(ctx context.Context, sess *session, dr *featureDraft, text string) error {
	switch sess.step {
	case stepEnterTitle:
		dr.Title = text
		sess.step = stepEnterDescription
		return d.promptStep(ctx, sess)
	case stepEnterDescription:
		d.endSession(sess)
		req, err := d.features.SubmitRequest(ctx, sess.userID, service.FeatureSubmission{
			Title:       dr.Title,
			Description: text,
		})
		if err != nil {
			d.metrics.RecordWorkflow(string(WorkflowFeature), "failed")
			return d.notifyError(ctx, sess.userID, err)
		}
		d.metrics.RecordWorkflow(string(WorkflowFeature), "completed")
		return d.gateway.Notify(ctx, sess.userID,
			"Feature request #"+strconv.FormatInt(req.ID, 10)+" filed: "+req.Title+
				"\nYour vote has been counted. Others can support it with /vote "+strconv.FormatInt(req.ID, 10)+".")
	}
	return d.promptStep(ctx, sess)
}

func (d *Dispatcher) advanceSupportText(ctx context.Context, sess *session, dr *supportDraft, text string) error {
	switch sess.step {
	case stepEnterSubject:
		dr.Subject = text
		sess.step = stepEnterDescription
		return d.promptStep(ctx, sess)
	case stepEnterDescription:
		dr.Description = text
		sess.step = stepChoosePriority
		return d.promptStep(ctx, sess)
	}
	return d.promptStep(ctx, sess)
}

// HandleSelection feeds a button selection to the matching workflow or
// one-shot action. It reports false for selections nothing was waiting
// for, e.g. taps on buttons from an already finished flow.
func (d *Dispatcher) HandleSelection(ctx context.Context, userID int64, data string) (bool, error) {
	switch {
	case strings.HasPrefix(data, selectCancelPrefix):
		return d.cancelByKind(ctx, userID, WorkflowKind(strings.TrimPrefix(data, selectCancelPrefix)))
	case strings.HasPrefix(data, selectFeedbackPrefix):
		return d.selectFeedbackType(ctx, userID, domain.FeedbackType(strings.TrimPrefix(data, selectFeedbackPrefix)))
	case strings.HasPrefix(data, selectRatingPrefix):
		return d.selectRating(ctx, userID, strings.TrimPrefix(data, selectRatingPrefix))
	case strings.HasPrefix(data, selectPriorityPrefix):
		return d.selectPriority(ctx, userID, domain.TicketPriority(strings.TrimPrefix(data, selectPriorityPrefix)))
	case strings.HasPrefix(data, selectVotePrefix):
		return d.selectVote(ctx, userID, strings.TrimPrefix(data, selectVotePrefix))
	case strings.HasPrefix(data, selectResolvePrefix):
		return d.selectResolve(ctx, userID, strings.TrimPrefix(data, selectResolvePrefix))
	}
	return false, nil
}

func (d *Dispatcher) cancelByKind(ctx context.Context, userID int64, kind WorkflowKind) (bool, error) {
	if !kind.Valid() {
		return false, nil
	}
	sess := d.peekSession(userID, kind)
	if sess == nil {
		return false, nil
	}
	sess.mu.Lock()
	live := !sess.done
	if live {
		d.endSession(sess)
	}
	sess.mu.Unlock()
	if !live {
		return false, nil
	}
	d.metrics.RecordWorkflow(string(kind), "aborted")
	return true, d.gateway.Notify(ctx, userID, "Cancelled. Nothing was saved.")
}

func (d *Dispatcher) selectFeedbackType(ctx context.Context, userID int64, feedbackType domain.FeedbackType) (bool, error) {
	sess := d.peekSession(userID, WorkflowFeedback)
	if sess == nil {
		return false, nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.done {
		return false, nil
	}
	dr, ok := sess.draft.(*feedbackDraft)
	if !ok || sess.step != stepChooseType {
		return true, d.promptStep(ctx, sess)
	}
	if !feedbackType.Valid() {
		return true, d.promptStep(ctx, sess)
	}
	dr.Type = feedbackType
	sess.step = stepEnterContent
	return true, d.promptStep(ctx, sess)
}

func (d *Dispatcher) selectRating(ctx context.Context, userID int64, raw string) (bool, error) {
	sess := d.peekSession(userID, WorkflowFeedback)
	if sess == nil {
		return false, nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.done {
		return false, nil
	}
	dr, ok := sess.draft.(*feedbackDraft)
	if !ok || sess.step != stepChooseRating {
		return true, d.promptStep(ctx, sess)
	}
	rating, err := strconv.Atoi(raw)
	if err != nil || rating < 1 || rating > 5 {
		return true, d.promptStep(ctx, sess)
	}
	d.endSession(sess)
	return true, d.completeFeedback(ctx, userID, dr, rating)
}

func (d *Dispatcher) selectPriority(ctx context.Context, userID int64, priority domain.TicketPriority) (bool, error) {
	sess := d.peekSession(userID, WorkflowSupport)
	if sess == nil {
		return false, nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.done {
		return false, nil
	}
	dr, ok := sess.draft.(*supportDraft)
	if !ok || sess.step != stepChoosePriority {
		return true, d.promptStep(ctx, sess)
	}
	if !priority.Valid() {
		return true, d.promptStep(ctx, sess)
	}
	d.endSession(sess)

	ticket, err := d.support.CreateTicket(ctx, userID, service.TicketSubmission{
		Subject:     dr.Subject,
		Description: dr.Description,
		Priority:    priority,
	})
	if err != nil {
		d.metrics.RecordWorkflow(string(WorkflowSupport), "failed")
		return true, d.notifyError(ctx, userID, err)
	}
	d.metrics.RecordWorkflow(string(WorkflowSupport), "completed")
	return true, d.gateway.Notify(ctx, userID,
		"Support ticket #"+strconv.FormatInt(ticket.ID, 10)+" opened with "+string(ticket.Priority)+
			" priority.\nCheck on it any time with /ticketstatus "+strconv.FormatInt(ticket.ID, 10)+".")
}

func (d *Dispatcher) selectVote(ctx context.Context, userID int64, raw string) (bool, error) {
	requestID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, nil
	}
	return true, d.castVote(ctx, userID, requestID)
}

func (d *Dispatcher) selectResolve(ctx context.Context, userID int64, raw string) (bool, error) {
	ticketID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, nil
	}
	return true, d.resolveTicket(ctx, userID, ticketID)
}

// completeFeedback commits a finished feedback draft. The caller has
// already ended the session; a store failure loses the draft but the
// user is told to retry.
func (d *Dispatcher) completeFeedback(ctx context.Context, userID int64, dr *feedbackDraft, rating int) error {
	result, err := d.feedback.SubmitFeedback(ctx, userID, service.FeedbackSubmission{
		Type:    dr.Type,
		Content: dr.Content,
		Rating:  rating,
	})
	if err != nil {
		d.metrics.RecordWorkflow(string(WorkflowFeedback), "failed")
		return d.notifyError(ctx, userID, err)
	}
	d.metrics.RecordWorkflow(string(WorkflowFeedback), "completed")

	reply := "Thanks for your feedback!"
	if result.DerivedRequest != nil {
		id := strconv.FormatInt(result.DerivedRequest.ID, 10)
		reply += "\nI've also filed it as feature request #" + id +
			" and counted your vote. Others can support it with /vote " + id + "."
	}
	return d.gateway.Notify(ctx, userID, reply)
}

func (d *Dispatcher) castVote(ctx context.Context, userID, requestID int64) error {
	req, err := d.features.Vote(ctx, requestID, userID)
	switch {
	case err == nil:
		return d.gateway.Notify(ctx, userID,
			"Vote counted! \""+req.Title+"\" now has "+strconv.Itoa(req.Votes)+" vote(s).")
	case util.HasCode(err, util.CodeDuplicateVote):
		return d.gateway.Notify(ctx, userID, "You've already voted for this request.")
	case util.HasCode(err, util.CodeNotFound):
		return d.gateway.Notify(ctx, userID, "That feature request doesn't exist.")
	default:
		return d.notifyError(ctx, userID, err)
	}
}

func (d *Dispatcher) resolveTicket(ctx context.Context, userID, ticketID int64) error {
	user, err := d.users.GetUser(ctx, userID)
	if err != nil {
		return d.notifyError(ctx, userID, err)
	}
	status := domain.TicketStatusResolved
	ticket, err := d.support.UpdateTicket(ctx, user, ticketID, repository.TicketUpdate{Status: &status})
	switch {
	case err == nil:
		return d.gateway.Notify(ctx, userID,
			"Ticket #"+strconv.FormatInt(ticket.ID, 10)+" marked as resolved. Thanks for confirming!")
	case util.HasCode(err, util.CodeForbidden):
		return d.gateway.Notify(ctx, userID, "That ticket belongs to someone else.")
	case util.HasCode(err, util.CodeNotFound):
		return d.gateway.Notify(ctx, userID, "That ticket doesn't exist.")
	default:
		return d.notifyError(ctx, userID, err)
	}
}

// promptStep sends the prompt for the session's current step. Re-sent
// verbatim when input is rejected, so invalid input never loses state.
func (d *Dispatcher) promptStep(ctx context.Context, sess *session) error {
	switch sess.step {
	case stepChooseType:
		return d.gateway.Prompt(ctx, sess.userID, "What type of feedback would you like to share?", [][]gateway.Choice{
			{{Label: "🐛 Bug Report", Data: "feedback_bug"}},
			{{Label: "💡 Feature Suggestion", Data: "feedback_feature"}},
			{{Label: "💬 General Feedback", Data: "feedback_general"}},
			{{Label: "Cancel", Data: "cancel_feedback"}},
		})
	case stepEnterContent:
		text := "Please describe it in your own words."
		if dr, ok := sess.draft.(*feedbackDraft); ok {
			switch dr.Type {
			case domain.FeedbackTypeBug:
				text = "Please describe the bug: what happened and what you expected."
			case domain.FeedbackTypeFeature:
				text = "Please describe the feature you'd like to see."
			case domain.FeedbackTypeGeneral:
				text = "Please share your thoughts with us."
			}
		}
		return d.gateway.Notify(ctx, sess.userID, text)
	case stepChooseRating:
		return d.gateway.Prompt(ctx, sess.userID, "How would you rate your overall experience?", [][]gateway.Choice{
			{
				{Label: "1 ⭐", Data: "rating_1"},
				{Label: "2 ⭐", Data: "rating_2"},
				{Label: "3 ⭐", Data: "rating_3"},
				{Label: "4 ⭐", Data: "rating_4"},
				{Label: "5 ⭐", Data: "rating_5"},
			},
			{{Label: "Cancel", Data: "cancel_feedback"}},
		})
	case stepEnterTitle:
		return d.gateway.Notify(ctx, sess.userID, "What feature would you like to request? Send a short title.")
	case stepEnterDescription:
		if sess.kind == WorkflowSupport {
			return d.gateway.Notify(ctx, sess.userID, "Thanks. Now describe the problem in as much detail as you can.")
		}
		return d.gateway.Notify(ctx, sess.userID, "Great. Now describe the feature in more detail.")
	case stepEnterSubject:
		return d.gateway.Notify(ctx, sess.userID, "What do you need help with? Send a short subject line.")
	case stepChoosePriority:
		return d.gateway.Prompt(ctx, sess.userID, "How urgent is this issue?", [][]gateway.Choice{
			{
				{Label: "Low", Data: "priority_low"},
				{Label: "Medium", Data: "priority_medium"},
			},
			{
				{Label: "High", Data: "priority_high"},
				{Label: "🚨 Urgent", Data: "priority_urgent"},
			},
			{{Label: "Cancel", Data: "cancel_support"}},
		})
	}
	return nil
}

func (d *Dispatcher) peekSession(userID int64, kind WorkflowKind) *session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[sessionKey{userID: userID, kind: kind}]
}

// endSession retires a session. The caller holds sess.mu; the map entry
// is removed only if it still points at this session, so a restarted
// flow is never torn down by its predecessor's completion.
func (d *Dispatcher) endSession(sess *session) {
	sess.done = true
	d.mu.Lock()
	key := sessionKey{userID: sess.userID, kind: sess.kind}
	if d.sessions[key] == sess {
		delete(d.sessions, key)
	}
	d.mu.Unlock()
}

// notifyError translates a failure into a user-facing reply. Store
// internals are never echoed to the user.
func (d *Dispatcher) notifyError(ctx context.Context, userID int64, err error) error {
	switch {
	case util.HasCode(err, util.CodeValidationFailed):
		if de := util.ToDomainError(err); de != nil {
			return d.gateway.Notify(ctx, userID, "That doesn't look right: "+de.Message)
		}
	case util.HasCode(err, util.CodeForbidden):
		return d.gateway.Notify(ctx, userID, "You don't have permission to do that.")
	case util.HasCode(err, util.CodeNotFound):
		return d.gateway.Notify(ctx, userID, "Sorry, I couldn't find that.")
	}
	d.logger.Error("workflow action failed", zap.Int64("user_id", userID), zap.Error(err))
	return d.gateway.Notify(ctx, userID, "Something went wrong on our side. Please try again later.")
}
