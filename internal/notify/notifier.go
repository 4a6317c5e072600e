package notify

import (
	"context"
	"errors"
)

// ErrNotifierDisabled signals that outbound chat delivery is disabled via configuration.
var ErrNotifierDisabled = errors.New("notify: delivery disabled")

// ErrRecipientUnreachable marks a destination that can never be delivered to
// (the user blocked the bot, or the chat does not exist). Callers skip such
// recipients instead of retrying.
var ErrRecipientUnreachable = errors.New("notify: recipient unreachable")

// AccessGrant is a single-use invitation artifact issued for a destination chat.
// For Telegram this is a member-limited channel invite link; the link itself is
// the handle used for revocation.
type AccessGrant struct {
	Link string `json:"link"`
}

// Notifier is the only side-effecting boundary toward end users.
//
// All errors other than ErrRecipientUnreachable and ErrNotifierDisabled are
// transport-level and safe to retry on the next scheduled tick.
type Notifier interface {
	// IssueAccessGrant creates a fresh single-use grant scoped to the destination chat.
	IssueAccessGrant(ctx context.Context, destination string) (AccessGrant, error)

	// RevokeAccessGrant invalidates a previously issued grant.
	RevokeAccessGrant(ctx context.Context, destination string, grant AccessGrant) error

	// SendText delivers a plain text message to the given chat.
	SendText(ctx context.Context, chatID int64, text string) error
}

// IsUnreachable reports whether the error marks a permanently undeliverable recipient.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrRecipientUnreachable)
}
