package storage

import (
	"errors"
	"time"

	"issuecast/internal/channel"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrExists is returned when inserting a row that is already present.
	ErrExists = errors.New("storage: already exists")
)

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// DeliveryState is the per-destination delivery state machine.
// Transitions are monotonic within one cycle:
//
//	idle -> pending  (poller arms the whole registry)
//	pending -> idle  (worker disarms after an attempted send)
type DeliveryState string

const (
	StateIdle    DeliveryState = "idle"
	StatePending DeliveryState = "pending"
)

// Destination is one addressable recipient on one platform.
type Destination struct {
	Kind       channel.Kind
	ExternalID string
	State      DeliveryState
}

// Settings is the dynamic, operator-editable configuration stored in the
// settings table. Criteria fields drive the poller's search; SendHours and
// LastSentUnix form the trigger gate's schedule state.
type Settings struct {
	Stars             int    // minimum repository star count
	RepoCreatedBefore string // YYYY-MM-DD
	IssueCreatedAfter string // YYYY-MM-DD
	IssuesPerRepo     int    // per-repository contribution cap (1..3)
	SendHours         []int  // allowed hours of day (UTC)
	ServiceChatID     int64  // telegram chat receiving status lines
	GeneralTopic      string
	SpotlightTopic    string
	LastSentUnix      int64
}

// AllowsHour reports whether the trigger gate admits the given UTC hour.
func (s Settings) AllowsHour(hour int) bool {
	for _, h := range s.SendHours {
		if h == hour {
			return true
		}
	}
	return false
}

// Settings keys. Exposed so the bot's settings editor can write them
// without duplicating strings.
const (
	KeyStars             = "repo_stars"
	KeyRepoCreatedBefore = "repo_created_before"
	KeyIssueCreatedAfter = "issue_created_after"
	KeyIssuesPerRepo     = "issues_per_repo"
	KeySendHours         = "send_hours"
	KeyServiceChatID     = "service_chat_id"
	KeyGeneralTopic      = "general_topic"
	KeySpotlightTopic    = "spotlight_topic"
	KeyLastSent          = "last_sent"
)
