package plugin

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dshills/bluebird/internal/envelope"
	"github.com/google/uuid"
)

type fakePlugin struct {
	Base
	Count int `json:"count"`
}

func newFake(name string) *fakePlugin {
	return &fakePlugin{Base: NewBase(Info{
		ID:      uuid.New(),
		Name:    name,
		Version: Version{0, 0, 1},
		Author:  "test",
	})}
}

func (f *fakePlugin) Handle(Core, string, string, envelope.Payload) error {
	f.Count++
	return nil
}

func (f *fakePlugin) LoadState(s Storage) error {
	_, err := LoadJSON(s, f)
	return err
}

func (f *fakePlugin) StoreState(s Storage) error {
	return StoreJSON(s, f)
}

func (f *fakePlugin) State() envelope.Payload {
	p, _ := envelope.PayloadOf(f)
	return p
}

type otherPlugin struct {
	fakePlugin
}

type memStorage struct {
	value envelope.Payload
	err   error
}

func (m *memStorage) StoreState(v envelope.Payload) error {
	if m.err != nil {
		return m.err
	}
	m.value = v
	return nil
}

func (m *memStorage) LoadState() (envelope.Payload, error) {
	return m.value, m.err
}

type fakeCore struct {
	reg *Registry
}

func (c *fakeCore) Publish(string, envelope.Command) error { return nil }
func (c *fakeCore) NotifyHost()                            {}
func (c *fakeCore) Plugins() *Registry                     { return c.reg }

func TestStatusText(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Disabled, "Disabled"},
		{Enabled, "Enabled"},
		{Status(7), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}

	var s Status
	if err := s.UnmarshalText([]byte("Enabled")); err != nil || s != Enabled {
		t.Errorf("UnmarshalText(Enabled) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("Removed")); err == nil {
		t.Error("UnmarshalText(Removed) error = nil")
	}
}

func TestVersionJSON(t *testing.T) {
	data, err := json.Marshal(Version{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[1,2,3]" {
		t.Errorf("Marshal = %s, want [1,2,3]", data)
	}
	var v Version
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatal(err)
	}
	if v.String() != "1.2.3" {
		t.Errorf("String() = %q", v.String())
	}
}

func TestInfoValidate(t *testing.T) {
	if err := (Info{Name: "x"}).Validate(); !errors.Is(err, ErrInvalidPlugin) {
		t.Errorf("missing uuid: err = %v", err)
	}
	if err := (Info{ID: uuid.New()}).Validate(); !errors.Is(err, ErrInvalidPlugin) {
		t.Errorf("missing name: err = %v", err)
	}
}

func TestBaseLifecycleIdempotent(t *testing.T) {
	p := newFake("p")
	if p.Status() != Disabled {
		t.Fatalf("initial status = %v, want Disabled", p.Status())
	}

	p.Disable(nil)
	if p.Status() != Disabled {
		t.Errorf("Disable on disabled = %v", p.Status())
	}

	p.Enable(nil)
	p.Enable(nil)
	if p.Status() != Enabled {
		t.Errorf("Enable twice = %v, want Enabled", p.Status())
	}

	p.Disable(nil)
	if p.Enabled() {
		t.Error("Enabled() = true after Disable")
	}
}

func TestRegistryOrderAndDuplicates(t *testing.T) {
	r := NewRegistry()
	a, b := newFake("a"), newFake("b")

	for _, p := range []Plugin{a, b} {
		if err := r.Add(p); err != nil {
			t.Fatalf("Add(%s) error = %v", p.Info().Name, err)
		}
	}

	if err := r.Add(a); !errors.Is(err, ErrDuplicatePlugin) {
		t.Errorf("Add(dup) error = %v, want ErrDuplicatePlugin", err)
	}
	if err := r.Add(nil); !errors.Is(err, ErrInvalidPlugin) {
		t.Errorf("Add(nil) error = %v, want ErrInvalidPlugin", err)
	}

	all := r.All()
	if len(all) != 2 || all[0] != Plugin(a) || all[1] != Plugin(b) {
		t.Errorf("All() order wrong: %v", all)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d", r.Len())
	}

	if p, ok := r.ByName("b"); !ok || p != Plugin(b) {
		t.Error("ByName(b) failed")
	}
	if p, ok := r.ByID(a.Info().ID); !ok || p != Plugin(a) {
		t.Error("ByID(a) failed")
	}
	if _, ok := r.ByName("missing"); ok {
		t.Error("ByName(missing) found something")
	}
}

func TestLookupByConcreteType(t *testing.T) {
	r := NewRegistry()
	first := newFake("first")
	second := newFake("second")
	other := &otherPlugin{fakePlugin: *newFake("other")}
	_ = r.Add(first)
	_ = r.Add(other)
	_ = r.Add(second)

	core := &fakeCore{reg: r}

	got, ok := Lookup[*fakePlugin](core)
	if !ok || got != first {
		t.Fatalf("Lookup[*fakePlugin] = %v, %v; want first", got, ok)
	}
	again, _ := Lookup[*fakePlugin](core)
	if again.Info().ID != got.Info().ID {
		t.Error("Lookup returned a different identity on repeat")
	}

	o, ok := Lookup[*otherPlugin](core)
	if !ok || o != other {
		t.Errorf("Lookup[*otherPlugin] = %v, %v", o, ok)
	}

	type neverRegistered struct{ *fakePlugin }
	if _, ok := Lookup[*neverRegistered](core); ok {
		t.Error("Lookup of unregistered type reported found")
	}
	if _, ok := Lookup[*fakePlugin](nil); ok {
		t.Error("Lookup on nil core reported found")
	}
}

func TestStoreLoadJSON(t *testing.T) {
	s := &memStorage{}
	p := newFake("p")

	loaded, err := LoadJSON(s, p)
	if err != nil || loaded {
		t.Fatalf("LoadJSON(empty) = %v, %v; want false, nil", loaded, err)
	}

	p.Count = 4
	if err := p.StoreState(s); err != nil {
		t.Fatalf("StoreState() error = %v", err)
	}
	before := p.State()

	p.Count = 0
	if err := p.LoadState(s); err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if !p.State().Equal(before) {
		t.Errorf("State() = %s, want %s", p.State(), before)
	}

	s.value, _ = envelope.PayloadOf("not an object")
	if _, err := LoadJSON(s, p); !errors.Is(err, ErrStateDeserialization) {
		t.Errorf("LoadJSON(mismatch) error = %v, want ErrStateDeserialization", err)
	}

	s.err = ErrStorageUnavailable
	if _, err := LoadJSON(s, p); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("LoadJSON(unavailable) error = %v", err)
	}
	if err := StoreJSON(s, p); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("StoreJSON(unavailable) error = %v", err)
	}
}

func TestStateError(t *testing.T) {
	err := &StateError{Plugin: "Logger", Op: "load", Err: ErrStorageCorrupt}
	if err.Error() != "load state of plugin Logger: state storage corrupt" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrStorageCorrupt) {
		t.Error("errors.Is(StateError, ErrStorageCorrupt) = false")
	}
}
