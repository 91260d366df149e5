package plugin

import (
	"errors"

	"github.com/dshills/bluebird/internal/envelope"
)

// Storage persists one plugin's state snapshot. The medium is chosen by the
// host.
type Storage interface {
	// StoreState persists the full snapshot.
	StoreState(value envelope.Payload) error

	// LoadState returns the last persisted snapshot, or a null payload when
	// nothing has been stored.
	LoadState() (envelope.Payload, error)
}

// Provider hands out the Storage for a given plugin.
type Provider interface {
	For(info Info) Storage
}

// StoreJSON encodes v and stores it.
func StoreJSON(s Storage, v any) error {
	p, err := envelope.PayloadOf(v)
	if err != nil {
		return err
	}
	if err := s.StoreState(p); err != nil {
		return err
	}
	return nil
}

// LoadJSON loads the snapshot into v. It reports false with a nil error
// when nothing has been stored, leaving v untouched. A snapshot that does
// not decode into v fails with ErrStateDeserialization.
func LoadJSON(s Storage, v any) (bool, error) {
	p, err := s.LoadState()
	if err != nil {
		return false, err
	}
	if p.IsNull() {
		return false, nil
	}
	if err := p.Decode(v); err != nil {
		return false, errors.Join(ErrStateDeserialization, err)
	}
	return true, nil
}
