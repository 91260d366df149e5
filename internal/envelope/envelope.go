package envelope

import "errors"

// Command is any value that can be published on the bus.
// Unless it also implements PayloadProvider, the payload is the JSON
// encoding of the command value itself.
type Command interface {
	Action() string
}

// PayloadProvider lets a Command supply its own payload.
type PayloadProvider interface {
	Payload() (Payload, error)
}

// Envelope is a queued (sender, action, payload) triple.
// Envelopes are immutable once created.
type Envelope struct {
	Sender  string  `json:"sender"`
	Action  string  `json:"action"`
	Payload Payload `json:"payload"`
}

// Encode converts a Command into an Envelope. It fails with a
// SerializationError when the action is empty or the payload cannot be
// encoded.
func Encode(sender string, cmd Command) (Envelope, error) {
	if cmd == nil {
		return Envelope{}, &SerializationError{Op: "encode", Err: errors.New("nil command")}
	}
	action := cmd.Action()
	if action == "" {
		return Envelope{}, &SerializationError{Op: "encode", Err: ErrEmptyAction}
	}

	var (
		payload Payload
		err     error
	)
	if pp, ok := cmd.(PayloadProvider); ok {
		payload, err = pp.Payload()
	} else {
		payload, err = PayloadOf(cmd)
	}
	if err != nil {
		var serr *SerializationError
		if errors.As(err, &serr) {
			return Envelope{}, &SerializationError{Action: action, Op: "encode", Err: serr.Err}
		}
		return Envelope{}, &SerializationError{Action: action, Op: "encode", Err: err}
	}

	return Envelope{Sender: sender, Action: action, Payload: payload}, nil
}

// Raw is a Command built from an action string and an arbitrary value.
type Raw struct {
	action string
	value  any
}

// New pairs an action with any JSON-encodable value.
func New(action string, value any) Raw {
	return Raw{action: action, value: value}
}

// Action implements Command.
func (r Raw) Action() string {
	return r.action
}

// Payload implements PayloadProvider.
func (r Raw) Payload() (Payload, error) {
	return PayloadOf(r.value)
}

// Is reports whether the envelope carries the given action.
func (e Envelope) Is(action string) bool {
	return e.Action == action
}
