// Package notifytest provides in-memory channels and subscriber indexes for
// tests of packages that notify.
package notifytest

import (
	"context"
	"errors"
	"sync"

	"maintenance-service/internal/models"
	"maintenance-service/internal/providers"
)

// Sent is one recorded channel call.
type Sent struct {
	Recipient models.Recipient
	Message   models.Message
}

// Channel records sends. Sends to a recipient whose Name is in FailFor fail.
type Channel struct {
	ChannelName string
	FailFor     map[string]bool

	mu   sync.Mutex
	sent []Sent
}

func NewChannel(name string) *Channel {
	return &Channel{ChannelName: name, FailFor: map[string]bool{}}
}

func (c *Channel) Name() string { return c.ChannelName }

func (c *Channel) Send(_ context.Context, r models.Recipient, msg models.Message) error {
	switch c.ChannelName {
	case providers.ChannelEmail:
		if r.Email == "" {
			return providers.ErrNoAddress
		}
	case providers.ChannelChat:
		if r.ChatID == 0 {
			return providers.ErrNoAddress
		}
	case providers.ChannelInApp:
		if r.UserID == 0 {
			return providers.ErrNoAddress
		}
	}
	if c.FailFor[r.Name] {
		return errors.New("transport down")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, Sent{Recipient: r, Message: msg})
	return nil
}

// Sent returns a copy of everything delivered so far.
func (c *Channel) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.sent...)
}

// Index maps subscription type -> machine id -> users. Machine id 0 holds
// global subscribers.
type Index struct {
	Subs map[string]map[int64][]models.User
	Err  error
}

func (i *Index) Subscribers(_ context.Context, typ string, _ models.TargetKind, id int64) ([]models.User, error) {
	if i.Err != nil {
		return nil, i.Err
	}
	byMachine := i.Subs[typ]
	out := append([]models.User(nil), byMachine[0]...)
	if id != 0 {
		out = append(out, byMachine[id]...)
	}
	return out, nil
}
