package envelope

import (
	"errors"
	"math"
	"testing"
)

type openProject struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

func (openProject) Action() string { return "designer.project_manager.management" }

type emptyAction struct{}

func (emptyAction) Action() string { return "" }

type badPayload struct {
	Value float64 `json:"value"`
}

func (badPayload) Action() string { return "designer.test.bad" }

func TestEncodeStruct(t *testing.T) {
	env, err := Encode("ui", openProject{Kind: "OpenProject", Path: "/p"})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if env.Sender != "ui" {
		t.Errorf("Sender = %q, want %q", env.Sender, "ui")
	}
	if env.Action != "designer.project_manager.management" {
		t.Errorf("Action = %q", env.Action)
	}
	if got := env.Payload.Get("path").String(); got != "/p" {
		t.Errorf("payload path = %q, want %q", got, "/p")
	}
	if got := env.Payload.Kind(); got != "OpenProject" {
		t.Errorf("Kind() = %q, want %q", got, "OpenProject")
	}
}

func TestEncodeRaw(t *testing.T) {
	env, err := Encode("A", New("x.y.open", map[string]any{"path": "/p"}))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !env.Is("x.y.open") {
		t.Errorf("Is(x.y.open) = false")
	}
	if env.Is("X.Y.OPEN") {
		t.Errorf("action matching must be case-sensitive")
	}
	if env.Payload.String() != `{"path":"/p"}` {
		t.Errorf("Payload = %s", env.Payload)
	}
}

func TestEncodeNilValueIsNull(t *testing.T) {
	env, err := Encode("A", New("x.y.ping", nil))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !env.Payload.IsNull() {
		t.Errorf("payload = %s, want null", env.Payload)
	}
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"nil command", nil},
		{"empty action", emptyAction{}},
		{"unencodable payload", badPayload{Value: math.Inf(1)}},
		{"unencodable raw", New("x.y.z", make(chan int))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode("s", tt.cmd)
			if err == nil {
				t.Fatal("Encode() error = nil, want error")
			}
			if !errors.Is(err, ErrSerializationFailed) {
				t.Errorf("errors.Is(err, ErrSerializationFailed) = false, err = %v", err)
			}
		})
	}
}

func TestSerializationErrorMessage(t *testing.T) {
	err := &SerializationError{Action: "a.b.c", Op: "decode", Err: errors.New("boom")}
	if err.Error() != "decode payload for a.b.c: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	err = &SerializationError{Op: "encode", Err: errors.New("boom")}
	if err.Error() != "encode payload: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}
