// Package envelope defines the unit of communication on the designer bus.
//
// An Envelope is the (sender, action, payload) triple delivered to every
// enabled plugin. The action is a dot-namespaced discriminator such as
// "designer.project_manager.event" and is compared by exact, case-sensitive
// string equality. The payload is a schema-less structured value whose shape
// is agreed per action by convention.
//
// Anything that implements Command can be published:
//
//	type OpenProject struct {
//	    Path string `json:"path"`
//	}
//
//	func (OpenProject) Action() string { return "designer.project_manager.management" }
//
// The ad hoc form pairs an action with any JSON-encodable value:
//
//	cmd := envelope.New("designer.logger.log", map[string]any{"kind": "Clear"})
//
// Payloads are canonical JSON. Handlers inspect them by path with Get or
// decode them into typed structs with Decode.
package envelope
