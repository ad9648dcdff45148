package eventbus

import "time"

// Event types.
const (
	TypeItemDetected      = "watch.item.detected"
	TypeProbeNoItem       = "watch.probe.no_item"
	TypeProbeRateLimited  = "watch.probe.rate_limited"
	TypeProbeFailed       = "watch.probe.failed"
	TypeSaveFailed        = "watch.save.failed"
	TypeFault             = "watch.fault"
	TypePassCompleted     = "watch.pass.completed"
	TypeNotifierSent      = "notifier.sent"
	TypeNotifierFailed    = "notifier.failed"
	TypeConfigReloaded    = "config.reloaded"
	TypeSupervisorFailure = "supervisor.failure"
)

// ProbeEvent describes one probe outcome for a channel.
type ProbeEvent struct {
	Channel string `json:"channel"`
	ItemID  string `json:"item_id,omitempty"`
	Status  int    `json:"status,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// DeliveryEvent is emitted by the notifier after each attempt.
type DeliveryEvent struct {
	Channel string        `json:"channel"`
	ItemID  string        `json:"item_id"`
	URL     string        `json:"url"`
	Status  int           `json:"status,omitempty"`
	Took    time.Duration `json:"took"`
	Error   string        `json:"error,omitempty"`
}

// PassEvent summarizes a finished (or faulted) pass.
type PassEvent struct {
	PassID   string        `json:"pass_id"`
	Channels int           `json:"channels"`
	Sent     int           `json:"sent"`
	Failed   int           `json:"failed"`
	Took     time.Duration `json:"took"`
	SaveErr  string        `json:"save_err,omitempty"`
	Fault    string        `json:"fault,omitempty"`
}

// TaskFailure is emitted by the supervisor when a goroutine returns an error
// or panics.
type TaskFailure struct {
	Task  string `json:"task"`
	Error string `json:"error"`
}
