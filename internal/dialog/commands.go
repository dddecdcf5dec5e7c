package dialog

import (
	"context"
	"strconv"
	"strings"

	"github.com/spec-kit/community-service/internal/domain"
	"github.com/spec-kit/community-service/internal/gateway"
	"github.com/spec-kit/community-service/internal/repository"
	"github.com/spec-kit/community-service/pkg/util"
)

// HandleCommand routes a slash command. It reports false for commands
// this dispatcher doesn't own.
func (d *Dispatcher) HandleCommand(ctx context.Context, userID int64, command string, args []string) (bool, error) {
	switch strings.ToLower(strings.TrimPrefix(command, "/")) {
	case "feedback":
		return true, d.StartWorkflow(ctx, WorkflowFeedback, userID)
	case "feature":
		return true, d.StartWorkflow(ctx, WorkflowFeature, userID)
	case "support":
		return true, d.StartWorkflow(ctx, WorkflowSupport, userID)
	case "cancel":
		return true, d.cancelAll(ctx, userID)
	case "features":
		return true, d.listFeatures(ctx, userID)
	case "vote":
		return true, d.voteCommand(ctx, userID, args)
	case "unvote":
		return true, d.unvoteCommand(ctx, userID, args)
	case "ticketstatus":
		return true, d.ticketStatus(ctx, userID, args)
	case "respond":
		return true, d.respondCommand(ctx, userID, args)
	case "communitystats":
		return true, d.communityStats(ctx, userID)
	}
	return false, nil
}

func (d *Dispatcher) cancelAll(ctx context.Context, userID int64) error {
	cancelled := []WorkflowKind{}
	for _, kind := range textRouting {
		sess := d.peekSession(userID, kind)
		if sess == nil {
			continue
		}
		sess.mu.Lock()
		if !sess.done {
			d.endSession(sess)
			cancelled = append(cancelled, kind)
		}
		sess.mu.Unlock()
	}

	if len(cancelled) == 0 {
		return d.gateway.Notify(ctx, userID, "Nothing to cancel.")
	}
	for _, kind := range cancelled {
		d.metrics.RecordWorkflow(string(kind), "aborted")
	}
	return d.gateway.Notify(ctx, userID, "Cancelled. Nothing was saved.")
}

func (d *Dispatcher) listFeatures(ctx context.Context, userID int64) error {
	requests, err := d.features.ListRequests(ctx, repository.FeatureRequestFilter{Limit: 5})
	if err != nil {
		return d.notifyError(ctx, userID, err)
	}
	if len(requests) == 0 {
		return d.gateway.Notify(ctx, userID, "No feature requests yet. File one with /feature!")
	}

	var sb strings.Builder
	sb.WriteString("Top feature requests:\n")
	choices := make([][]gateway.Choice, 0, len(requests))
	for _, req := range requests {
		id := strconv.FormatInt(req.ID, 10)
		sb.WriteString("\n#" + id + " — " + req.Title +
			" (" + strconv.Itoa(req.Votes) + " votes, " + string(req.Status) + ")")
		choices = append(choices, []gateway.Choice{
			{Label: "👍 Vote #" + id, Data: "vote_" + id},
		})
	}
	return d.gateway.Prompt(ctx, userID, sb.String(), choices)
}

func (d *Dispatcher) voteCommand(ctx context.Context, userID int64, args []string) error {
	requestID, ok := parseIDArg(args)
	if !ok {
		return d.gateway.Notify(ctx, userID, "Usage: /vote <request id>")
	}
	return d.castVote(ctx, userID, requestID)
}

func (d *Dispatcher) unvoteCommand(ctx context.Context, userID int64, args []string) error {
	requestID, ok := parseIDArg(args)
	if !ok {
		return d.gateway.Notify(ctx, userID, "Usage: /unvote <request id>")
	}
	req, err := d.features.Unvote(ctx, requestID, userID)
	switch {
	case err == nil:
		return d.gateway.Notify(ctx, userID,
			"Vote withdrawn. \""+req.Title+"\" now has "+strconv.Itoa(req.Votes)+" vote(s).")
	case util.HasCode(err, util.CodeNotFound):
		return d.gateway.Notify(ctx, userID, "You haven't voted for that request.")
	default:
		return d.notifyError(ctx, userID, err)
	}
}

func (d *Dispatcher) ticketStatus(ctx context.Context, userID int64, args []string) error {
	if len(args) == 0 {
		return d.listOwnTickets(ctx, userID)
	}
	ticketID, ok := parseIDArg(args)
	if !ok {
		return d.gateway.Notify(ctx, userID, "Usage: /ticketstatus [ticket id]")
	}

	user, err := d.users.GetUser(ctx, userID)
	if err != nil {
		return d.notifyError(ctx, userID, err)
	}
	detail, err := d.support.GetTicketForUser(ctx, user, ticketID)
	switch {
	case util.HasCode(err, util.CodeForbidden):
		return d.gateway.Notify(ctx, userID, "That ticket belongs to someone else.")
	case util.HasCode(err, util.CodeNotFound):
		return d.gateway.Notify(ctx, userID, "That ticket doesn't exist.")
	case err != nil:
		return d.notifyError(ctx, userID, err)
	}

	text := formatTicketDetail(detail.Ticket, detail.Responses)
	if detail.Ticket.Status == domain.TicketStatusOpen || detail.Ticket.Status == domain.TicketStatusInProgress {
		id := strconv.FormatInt(detail.Ticket.ID, 10)
		return d.gateway.Prompt(ctx, userID, text,
			gateway.Row(gateway.Choice{Label: "✅ Mark resolved", Data: "resolve_" + id}))
	}
	return d.gateway.Notify(ctx, userID, text)
}

func (d *Dispatcher) listOwnTickets(ctx context.Context, userID int64) error {
	tickets, err := d.support.ListUserTickets(ctx, userID, 10, 0)
	if err != nil {
		return d.notifyError(ctx, userID, err)
	}
	if len(tickets) == 0 {
		return d.gateway.Notify(ctx, userID, "You have no support tickets. Open one with /support.")
	}

	var sb strings.Builder
	sb.WriteString("Your support tickets:\n")
	for _, ticket := range tickets {
		sb.WriteString("\n#" + strconv.FormatInt(ticket.ID, 10) + " — " + ticket.Subject +
			" [" + string(ticket.Status) + ", " + string(ticket.Priority) + "]")
	}
	sb.WriteString("\n\nSend /ticketstatus <id> for details.")
	return d.gateway.Notify(ctx, userID, sb.String())
}

func (d *Dispatcher) respondCommand(ctx context.Context, userID int64, args []string) error {
	if len(args) < 2 {
		return d.gateway.Notify(ctx, userID, "Usage: /respond <ticket id> <message>")
	}
	ticketID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return d.gateway.Notify(ctx, userID, "Usage: /respond <ticket id> <message>")
	}

	user, err := d.users.GetUser(ctx, userID)
	if err != nil {
		return d.notifyError(ctx, userID, err)
	}
	content := strings.Join(args[1:], " ")
	_, err = d.support.AddResponse(ctx, user, ticketID, content)
	switch {
	case err == nil:
		return d.gateway.Notify(ctx, userID,
			"Reply added to ticket #"+strconv.FormatInt(ticketID, 10)+".")
	case util.HasCode(err, util.CodeForbidden):
		return d.gateway.Notify(ctx, userID, "That ticket belongs to someone else.")
	case util.HasCode(err, util.CodeNotFound):
		return d.gateway.Notify(ctx, userID, "That ticket doesn't exist.")
	default:
		return d.notifyError(ctx, userID, err)
	}
}

func (d *Dispatcher) communityStats(ctx context.Context, userID int64) error {
	stats, err := d.stats.CommunityStats(ctx, userID)
	if util.HasCode(err, util.CodeForbidden) {
		return d.gateway.Notify(ctx, userID, "Community statistics are only available to admins.")
	}
	if err != nil {
		return d.notifyError(ctx, userID, err)
	}
	return d.gateway.Notify(ctx, userID, formatCommunityStats(stats))
}

func parseIDArg(args []string) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
