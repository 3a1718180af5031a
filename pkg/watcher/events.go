package watcher

// EventType defines the type of event being broadcast.
type EventType string

const (
	// EventDataUpdated carries a models.FundData.
	EventDataUpdated EventType = "data_updated"
	// EventStatusUpdated carries a Status.
	EventStatusUpdated EventType = "status_updated"
	// EventWalletChanged carries a wallet.State.
	EventWalletChanged EventType = "wallet_changed"
)

// Event represents a dashboard event.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
