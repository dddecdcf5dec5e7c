package dialog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spec-kit/community-service/internal/domain"
	"github.com/spec-kit/community-service/internal/service"
)

func formatTicketDetail(ticket *domain.SupportTicket, responses []domain.TicketResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticket #%d — %s\n", ticket.ID, ticket.Subject)
	fmt.Fprintf(&sb, "Status: %s | Priority: %s\n", ticket.Status, ticket.Priority)
	fmt.Fprintf(&sb, "Opened: %s\n", ticket.CreatedAt.Format("2006-01-02 15:04"))
	if ticket.ResolvedAt != nil {
		fmt.Fprintf(&sb, "Resolved: %s\n", ticket.ResolvedAt.Format("2006-01-02 15:04"))
	}
	sb.WriteString("\n" + ticket.Description + "\n")

	if len(responses) > 0 {
		sb.WriteString("\nThread:")
		for _, resp := range responses {
			author := "You"
			if resp.IsStaff {
				author = "Support"
			}
			fmt.Fprintf(&sb, "\n[%s] %s: %s",
				resp.CreatedAt.Format("Jan 2 15:04"), author, resp.Content)
		}
	}
	return sb.String()
}

func formatCommunityStats(stats *service.CommunityStats) string {
	var sb strings.Builder
	sb.WriteString("📊 Community Statistics\n")

	fmt.Fprintf(&sb, "\nFeedback: %d total", stats.Feedback.Total)
	if len(stats.Feedback.ByType) > 0 {
		fmt.Fprintf(&sb, " (%s)", formatCounts(stats.Feedback.ByType))
	}
	if stats.Feedback.AverageRating > 0 {
		fmt.Fprintf(&sb, "\nAverage rating: %.1f/5", stats.Feedback.AverageRating)
	}
	fmt.Fprintf(&sb, "\nLast 30 days: %d submissions\n", stats.Feedback.RecentCount)

	fmt.Fprintf(&sb, "\nFeature requests: %d total", stats.Features.Total)
	if len(stats.Features.ByStatus) > 0 {
		fmt.Fprintf(&sb, " (%s)", formatCounts(stats.Features.ByStatus))
	}
	if len(stats.Features.TopVoted) > 0 {
		sb.WriteString("\nMost wanted:")
		for _, top := range stats.Features.TopVoted {
			fmt.Fprintf(&sb, "\n  #%d %s — %d votes", top.ID, top.Title, top.Votes)
		}
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "\nSupport tickets: %d total, %d open", stats.Support.Total, stats.Support.OpenTickets)
	if len(stats.Support.ByPriority) > 0 {
		fmt.Fprintf(&sb, "\nBy priority: %s", formatPriorityCounts(stats.Support.ByPriority))
	}
	if stats.Support.AvgResolutionHours > 0 {
		fmt.Fprintf(&sb, "\nAverage resolution time: %.1f hours", stats.Support.AvgResolutionHours)
	}
	return sb.String()
}

// formatCounts renders a count map with stable key order.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return joinCounts(keys, counts)
}

// formatPriorityCounts renders priority counts in queue order, most
// urgent first.
func formatPriorityCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return domain.PriorityRank(domain.TicketPriority(keys[i])) <
			domain.PriorityRank(domain.TicketPriority(keys[j]))
	})
	return joinCounts(keys, counts)
}

func joinCounts(keys []string, counts map[string]int) string {
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", key, counts[key]))
	}
	return strings.Join(parts, ", ")
}
