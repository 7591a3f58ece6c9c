// Package notify turns license events from the broker into notifications
// for license holders.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dlms-org/apiserver/internal/mq"
	"github.com/dlms-org/apiserver/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Channels consumed by the dispatcher.
var Channels = []string{
	types.ChannelLicenseIssued,
	types.ChannelLicenseRenewed,
	types.ChannelViolationRecorded,
}

// Subscriber is satisfied by *mq.MQ.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Notification is a message addressed to a license holder.
type Notification struct {
	UserID  int
	Subject string
	Body    string
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the log. It is the only sender until a
// mail provider is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, n Notification) error {
	s.Logger.Info().
		Int("user_id", n.UserID).
		Str("subject", n.Subject).
		Str("body", n.Body).
		Msg("notification sent")
	return nil
}

// seenLimit bounds the memory used to drop redelivered events.
const seenLimit = 4096

type Dispatcher struct {
	sub    Subscriber
	sender Sender
	logger zerolog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
	fifo []string
}

func NewDispatcher(sub Subscriber, sender Sender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sub:    sub,
		sender: sender,
		logger: logger.With().Str("component", "notify").Logger(),
		seen:   make(map[string]struct{}),
	}
}

// Run subscribes to every channel and blocks until ctx is cancelled or a
// subscription fails.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, channel := range Channels {
		g.Go(func() error {
			d.logger.Info().Str("channel", channel).Msg("subscribing")
			if err := d.sub.Subscribe(gctx, channel, d.Handle); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("subscribe %s: %w", channel, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Handle processes one delivery. Malformed payloads are logged and
// acknowledged so they are not redelivered forever.
func (d *Dispatcher) Handle(ctx context.Context, msg mq.Message) error {
	var event types.LicenseEvent
	if err := msg.Decode(&event); err != nil {
		d.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dropping malformed event")
		return nil
	}
	if event.EventID != "" && !d.markSeen(event.EventID) {
		d.logger.Debug().Str("event_id", event.EventID).Msg("duplicate event skipped")
		return nil
	}

	n, ok := render(event)
	if !ok {
		d.logger.Warn().Str("type", event.Type).Str("event_id", event.EventID).Msg("unknown event type")
		return nil
	}
	if err := d.sender.Send(ctx, n); err != nil {
		d.forget(event.EventID)
		return fmt.Errorf("send notification for %s: %w", event.EventID, err)
	}
	return nil
}

func render(event types.LicenseEvent) (Notification, bool) {
	expiry := event.ExpiryDate.Format(time.DateOnly)
	switch event.Type {
	case types.ChannelLicenseIssued:
		return Notification{
			UserID:  event.UserID,
			Subject: "Your driving license has been issued",
			Body:    fmt.Sprintf("License %s is valid until %s.", event.Number, expiry),
		}, true
	case types.ChannelLicenseRenewed:
		return Notification{
			UserID:  event.UserID,
			Subject: "Your driving license has been renewed",
			Body:    fmt.Sprintf("Your renewed license number is %s, valid until %s.", event.Number, expiry),
		}, true
	case types.ChannelViolationRecorded:
		return Notification{
			UserID:  event.UserID,
			Subject: "A traffic violation was recorded",
			Body:    fmt.Sprintf("License %s now carries %d penalty points.", event.Number, event.Points),
		}, true
	default:
		return Notification{}, false
	}
}

func (d *Dispatcher) markSeen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	d.fifo = append(d.fifo, id)
	if len(d.fifo) > seenLimit {
		delete(d.seen, d.fifo[0])
		d.fifo = d.fifo[1:]
	}
	return true
}

func (d *Dispatcher) forget(id string) {
	if id == "" {
		return
	}
	d.mu.Lock()
	delete(d.seen, id)
	d.mu.Unlock()
}
