// Package notify fans engine messages out to subscribers and escalation
// contacts across the registered channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"maintenance-service/internal/logging"
	"maintenance-service/internal/metrics"
	"maintenance-service/internal/models"
	"maintenance-service/internal/providers"
)

// ErrUnknownChannel is returned when sending through an unregistered channel.
var ErrUnknownChannel = errors.New("unknown channel")

// Channel is an outbound transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, r models.Recipient, msg models.Message) error
}

// SubscriberIndex resolves subscribers of a notification type for a target.
type SubscriberIndex interface {
	Subscribers(ctx context.Context, notificationType string, kind models.TargetKind, id int64) ([]models.User, error)
}

// Subscription suffixes per channel name. A subscription to
// "maintenance.reminder.email" means: email me maintenance reminders.
var typeSuffix = map[string]string{
	providers.ChannelInApp: "",
	providers.ChannelEmail: ".email",
	providers.ChannelChat:  ".chat",
}

// channelOrder keeps fan-out deterministic.
var channelOrder = []string{providers.ChannelInApp, providers.ChannelEmail, providers.ChannelChat}

// SubscriptionType returns the preference type for baseType on channel.
func SubscriptionType(baseType, channel string) string {
	return baseType + typeSuffix[channel]
}

// Delivery summarizes one fan-out.
type Delivery struct {
	Recipients int
	Sent       int
	Failed     int
	Skipped    int
}

func (d *Delivery) add(o Delivery) {
	d.Recipients += o.Recipients
	d.Sent += o.Sent
	d.Failed += o.Failed
	d.Skipped += o.Skipped
}

// Options configures a Notifier.
type Options struct {
	// Timeout bounds every single channel call.
	Timeout time.Duration
	// EscalationChatID is the organisational chat escalations are posted to.
	EscalationChatID int64
	// BreakerFailures opens a channel's breaker after that many consecutive failures.
	BreakerFailures uint32
	// BreakerCooldown is how long an open breaker rejects calls.
	BreakerCooldown time.Duration
}

// Notifier sends messages through channels. Every send is bounded by a
// timeout and guarded by a per-channel circuit breaker; a failing send is
// logged and counted, never returned.
type Notifier struct {
	channels map[string]Channel
	breakers map[string]*gobreaker.CircuitBreaker
	index    SubscriberIndex
	opts     Options
	logger   *logging.Logger
}

func New(index SubscriberIndex, logger *logging.Logger, opts Options, channels ...Channel) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = time.Minute
	}

	n := &Notifier{
		channels: make(map[string]Channel),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		index:    index,
		opts:     opts,
		logger:   logger,
	}
	for _, ch := range channels {
		name := ch.Name()
		n.channels[name] = ch
		n.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: opts.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= opts.BreakerFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || isNoAddress(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warnf("Channel %s breaker %s -> %s", name, from, to)
			},
		})
	}
	return n
}

func isNoAddress(err error) bool {
	return errors.Is(err, providers.ErrNoAddress)
}

// Send delivers msg to r through the named channel.
func (n *Notifier) Send(ctx context.Context, channel string, r models.Recipient, msg models.Message) error {
	ch, ok := n.channels[channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}

	_, err := n.breakers[channel].Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
		defer cancel()
		return nil, ch.Send(callCtx, r, msg)
	})
	return err
}

func (n *Notifier) deliver(ctx context.Context, channel string, r models.Recipient, msg models.Message, d *Delivery) {
	d.Recipients++
	err := n.Send(ctx, channel, r, msg)
	switch {
	case err == nil:
		d.Sent++
		metrics.NotificationsTotal.WithLabelValues(channel, "sent").Inc()
	case isNoAddress(err):
		d.Skipped++
		metrics.NotificationsTotal.WithLabelValues(channel, "skipped").Inc()
		n.logger.Debugf("Skipped %s for %q on task %d: %v", channel, r.Name, msg.TaskID, err)
	default:
		d.Failed++
		metrics.NotificationsTotal.WithLabelValues(channel, "failed").Inc()
		n.logger.Errorf("Dispatch error via %s to %q on task %d: %v", channel, r.Name, msg.TaskID, err)
	}
}

// NotifySubscribers sends msg to every user subscribed to baseType (per
// channel suffix) globally or for the given machine. Lookup failures on one
// channel do not stop the others.
func (n *Notifier) NotifySubscribers(ctx context.Context, baseType string, machineID int64, msg models.Message) Delivery {
	var total Delivery
	for _, channel := range channelOrder {
		if _, ok := n.channels[channel]; !ok {
			continue
		}
		subType := SubscriptionType(baseType, channel)
		users, err := n.index.Subscribers(ctx, subType, models.TargetMachine, machineID)
		if err != nil {
			n.logger.Errorf("Failed to resolve %s subscribers for machine %d: %v", subType, machineID, err)
			continue
		}
		var d Delivery
		for _, u := range users {
			if ctx.Err() != nil {
				break
			}
			m := msg
			m.Type = subType
			n.deliver(ctx, channel, models.RecipientFromUser(u), m, &d)
		}
		total.add(d)
	}
	return total
}

// NotifyContacts is the forced escalation path: every contact gets an email
// and the organisational chat gets one message naming all contacts,
// regardless of anyone's subscriptions.
func (n *Notifier) NotifyContacts(ctx context.Context, contacts []models.Contact, msg models.Message) Delivery {
	var d Delivery
	if len(contacts) == 0 {
		return d
	}

	if _, ok := n.channels[providers.ChannelEmail]; ok {
		seen := make(map[string]struct{})
		for _, c := range contacts {
			key := strings.ToLower(strings.TrimSpace(c.Email))
			if key != "" {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			n.deliver(ctx, providers.ChannelEmail, models.RecipientFromContact(c), msg, &d)
		}
	}

	if _, ok := n.channels[providers.ChannelChat]; ok && n.opts.EscalationChatID != 0 {
		names := make([]string, 0, len(contacts))
		for _, c := range contacts {
			names = append(names, c.Name)
		}
		chatMsg := msg
		chatMsg.Body = fmt.Sprintf("%s\nContacts: %s", msg.Body, strings.Join(names, ", "))
		n.deliver(ctx, providers.ChannelChat, models.Recipient{Name: "escalation chat", ChatID: n.opts.EscalationChatID}, chatMsg, &d)
	}
	return d
}
