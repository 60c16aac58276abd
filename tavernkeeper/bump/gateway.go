package bump

import (
	"context"
	"time"
)

// ThreadMeta is the slice of thread state the due-time calculator cares about.
type ThreadMeta struct {
	// AutoArchiveMinutes is the platform's inactivity window before the
	// thread auto-archives. 0 when the platform did not report one.
	AutoArchiveMinutes int
	// LastActivityAt is the platform-observed last activity. Zero when
	// unknown. Note that deleting a message can make this roll backward,
	// which is why the repository's own last_bumped_at wins when newer.
	LastActivityAt time.Time
}

// ThreadGateway is the engine's only view of the chat platform.
//
// Platform contract: sending a message into a thread resets its auto-archive
// inactivity clock, and that reset survives deleting the message afterwards.
// The executor depends on this to keep threads alive without leaving clutter.
type ThreadGateway interface {
	// FetchThread resolves a thread by id. Returns a *GatewayError with
	// KindNotFound when the channel is gone, inaccessible or not a thread.
	FetchThread(ctx context.Context, threadID string) (Thread, error)
}

type Thread interface {
	Meta() ThreadMeta
	Archived() bool
	Locked() bool
	// Unarchive reopens an archived thread. Permission failures are terminal
	// for the registration since the thread can never be bumped again.
	Unarchive(ctx context.Context) error
	// Unlock is best-effort; callers treat failures as non-fatal.
	Unlock(ctx context.Context) error
	// Send posts content with all mentions suppressed.
	Send(ctx context.Context, content string) (Message, error)
}

type Message interface {
	// Delete is best-effort cleanup. The activity reset from the send
	// already happened, so failures here never fail the bump.
	Delete(ctx context.Context) error
}
