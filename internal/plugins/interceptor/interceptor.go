// Package interceptor implements the system event interceptor, a plugin
// that records every delivered envelope for debugging views.
package interceptor

import (
	"time"

	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/plugin"
	"github.com/google/uuid"
)

// DefaultCapacity is the number of records kept when none is configured.
const DefaultCapacity = 512

// ID is the fixed plugin UUID.
var ID = uuid.MustParse("f9006025-8a2c-424f-b9a7-e9fb5aeddedf")

// Record is one observed envelope.
type Record struct {
	ID      uuid.UUID        `json:"id"`
	Sender  string           `json:"sender"`
	Action  string           `json:"action"`
	Payload envelope.Payload `json:"payload"`
	At      time.Time        `json:"at"`
}

// Plugin keeps the most recent records in a ring buffer.
type Plugin struct {
	plugin.Base

	ring     []Record
	head     int // index of the oldest record
	size     int
	capacity int
	now      func() time.Time
}

// New creates an interceptor holding up to capacity records.
// A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Plugin {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Plugin{
		Base: plugin.NewBase(plugin.Info{
			ID:          ID,
			Name:        "System event logger (Core)",
			Description: "Collects all the system events, commands to provide debuggrable feature.",
			Version:     plugin.Version{Patch: 1},
			Author:      "dream-lab",
		}),
		ring:     make([]Record, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Capacity returns the maximum number of records.
func (p *Plugin) Capacity() int {
	return p.capacity
}

// Len returns the number of records held.
func (p *Plugin) Len() int {
	return p.size
}

// Records returns the held records, oldest first.
func (p *Plugin) Records() []Record {
	out := make([]Record, p.size)
	for i := range out {
		out[i] = p.ring[(p.head+i)%p.capacity]
	}
	return out
}

// Clear drops every record.
func (p *Plugin) Clear() {
	clear(p.ring)
	p.head, p.size = 0, 0
}

// Handle implements plugin.Plugin.
func (p *Plugin) Handle(c plugin.Core, sender, action string, payload envelope.Payload) error {
	p.push(Record{
		ID:      uuid.New(),
		Sender:  sender,
		Action:  action,
		Payload: payload,
		At:      p.now(),
	})
	c.NotifyHost()
	return nil
}

func (p *Plugin) push(r Record) {
	if p.size < p.capacity {
		p.ring[(p.head+p.size)%p.capacity] = r
		p.size++
		return
	}
	p.ring[p.head] = r
	p.head = (p.head + 1) % p.capacity
}

type persisted struct {
	Records []Record `json:"records"`
}

// LoadState restores records, keeping only the newest that fit.
func (p *Plugin) LoadState(s plugin.Storage) error {
	var st persisted
	ok, err := plugin.LoadJSON(s, &st)
	if err != nil || !ok {
		return err
	}
	p.Clear()
	for _, r := range st.Records {
		p.push(r)
	}
	return nil
}

// StoreState persists the held records.
func (p *Plugin) StoreState(s plugin.Storage) error {
	return plugin.StoreJSON(s, persisted{Records: p.Records()})
}

// State returns {"capacity": n, "records": [...]}.
func (p *Plugin) State() envelope.Payload {
	out, err := envelope.PayloadOf(map[string]any{
		"capacity": p.capacity,
		"records":  p.Records(),
	})
	if err != nil {
		return envelope.Null()
	}
	return out
}
