// Package channel defines the capability interface a chat platform must
// provide for the dispatch pipeline, plus the identifiers shared between
// the registry and the workers.
package channel

import (
	"context"
	"errors"

	"issuecast/internal/digest"
)

// Kind identifies a destination's platform.
type Kind string

const (
	KindTelegram Kind = "telegram"
	KindDiscord  Kind = "discord"
)

// ErrUnreachable marks a destination that the platform reports as gone or
// inaccessible (kicked from a group, deleted channel, missing permission).
// Other send failures are transport-level and wrapped as-is.
var ErrUnreachable = errors.New("destination unreachable")

// Sender is the per-platform delivery capability. Format renders the cycle
// batch into the platform's message representation; Send delivers it to one
// destination. The dispatch worker is written once against this interface.
type Sender interface {
	Kind() Kind
	Format(batch digest.Batch) string
	Send(ctx context.Context, destinationID string, message string) error
}
