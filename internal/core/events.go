package core

// Sender used for envelopes the coordinator publishes itself.
const Sender = "designer.core"

// Actions published by the coordinator.
const (
	// ActionHandlerFailed reports a handler error or panic.
	ActionHandlerFailed = "designer.core.handler_failed"

	// ActionPluginFailed reports a plugin whose Initialize failed.
	ActionPluginFailed = "designer.core.plugin_failed"

	// ActionStateDiscarded reports persisted state that could not be
	// loaded and was replaced by defaults.
	ActionStateDiscarded = "designer.core.state_discarded"
)

// Failure is the payload of the coordinator's failure actions.
type Failure struct {
	Plugin string `json:"plugin"`
	Action string `json:"action,omitempty"`
	Sender string `json:"sender,omitempty"`
	Error  string `json:"error"`
}
