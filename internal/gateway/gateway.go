package gateway

import "context"

// Choice is one selectable option presented alongside a prompt. Data is
// the opaque selection payload routed back through the dialog layer.
type Choice struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Gateway delivers outbound messages to users on the chat platform.
// Choices are laid out row by row.
type Gateway interface {
	Prompt(ctx context.Context, userID int64, text string, choices [][]Choice) error
	Notify(ctx context.Context, userID int64, text string) error
}

// Row builds a single-row choice layout.
func Row(choices ...Choice) [][]Choice {
	return [][]Choice{choices}
}
