// Package notify delivers booking notifications to market owners.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"marketbook/internal/events"
	"marketbook/internal/metrics"
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// Config holds configuration for the dispatcher.
type Config struct {
	// QueueSize bounds messages waiting for delivery. Default: 100.
	QueueSize int
	// PerSecond limits outgoing sends. Default: 25 (Telegram's global bot limit is ~30/s).
	PerSecond float64
	Retry     RetryConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{QueueSize: 100, PerSecond: 25, Retry: DefaultRetryConfig()}
}

// Dispatcher queues owner notifications and delivers them in the background.
type Dispatcher struct {
	config  *Config
	sender  Sender
	log     *zerolog.Logger
	limiter *rate.Limiter
	queue   chan Message
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewDispatcher creates a dispatcher; call Start before enqueueing.
func NewDispatcher(sender Sender, config *Config, log *zerolog.Logger) *Dispatcher {
	if config == nil {
		config = DefaultConfig()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.PerSecond <= 0 {
		config.PerSecond = 25
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Dispatcher{
		config:  config,
		sender:  sender,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(config.PerSecond), 1),
		queue:   make(chan Message, config.QueueSize),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the delivery loop.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.loop()
	d.log.Info().Int("queue_size", d.config.QueueSize).Msg("notification dispatcher started")
}

// Stop ends the loop; messages still queued are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()

	dropped := len(d.queue)
	for i := 0; i < dropped; i++ {
		<-d.queue
		metrics.IncNotification("dropped")
	}
	d.log.Info().Int("dropped", dropped).Msg("notification dispatcher stopped")
}

// Enqueue adds a message without blocking. It reports false when the
// dispatcher is stopped or the queue is full.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		metrics.IncNotification("dropped")
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		metrics.IncNotification("dropped")
		d.log.Warn().Str("event_id", msg.EventID).Msg("notification queue full")
		return false
	}
}

// HandleEvent is an events.EventHandler that turns booking events into messages.
func (d *Dispatcher) HandleEvent(ev events.Event) error {
	msg, err := FormatEvent(ev)
	if err != nil {
		return err
	}
	d.Enqueue(msg)
	return nil
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-d.stopCh
		cancel()
	}()

	for {
		select {
		case <-d.stopCh:
			return
		case msg := <-d.queue:
			if err := d.deliver(ctx, msg); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				d.log.Error().Err(err).Str("event_id", msg.EventID).Int64("chat_id", msg.ChatID).Msg("notification failed")
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) error {
	delays := d.config.Retry.RetryDelays
	var lastErr error

	for attempt := 0; attempt <= d.config.Retry.MaxRetries; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		err := d.sender.Send(ctx, msg)
		if err == nil {
			metrics.IncNotification("sent")
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrNoRecipient) {
			metrics.IncNotification("skipped")
			return nil
		}

		var wait time.Duration
		if attempt < len(delays) {
			wait = delays[attempt]
		}
		if tgErr, ok := IsTelegramError(err); ok {
			switch tgErr.Code {
			case 429:
				if tgErr.RetryAfter > 0 {
					wait = time.Duration(tgErr.RetryAfter) * time.Second
				}
			case 400, 403:
				metrics.IncNotification("failed")
				return err
			}
		}
		if attempt == d.config.Retry.MaxRetries {
			break
		}

		d.log.Info().Err(err).Int("attempt", attempt+1).Dur("delay", wait).Msg("retrying notification")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	metrics.IncNotification("failed")
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// FormatEvent renders the owner-facing text for a booking event.
func FormatEvent(ev events.Event) (Message, error) {
	switch ev.Type {
	case events.BookingConfirmed, events.BookingPending:
		var p events.CheckInPayload
		if err := ev.Decode(&p); err != nil {
			return Message{}, err
		}
		var b strings.Builder
		if ev.Type == events.BookingPending {
			fmt.Fprintf(&b, "Booking request awaiting approval: %s\n", marketTitle(p.MarketName, p.MarketID))
		} else {
			fmt.Fprintf(&b, "New booking: %s\n", marketTitle(p.MarketName, p.MarketID))
		}
		fmt.Fprintf(&b, "Order: %s", p.OrderID)
		for _, bk := range p.Bookings {
			fmt.Fprintf(&b, "\n%s %s", bk.Date, bk.Interval())
			if bk.ResourceID != "" {
				fmt.Fprintf(&b, " (%s)", bk.ResourceID)
			}
		}
		return Message{ChatID: p.OwnerChatID, Text: b.String(), EventID: ev.ID}, nil
	case events.BookingStatus:
		var p events.StatusPayload
		if err := ev.Decode(&p); err != nil {
			return Message{}, err
		}
		text := fmt.Sprintf("Booking %s is now %s", p.BookingID, p.Status)
		return Message{ChatID: p.OwnerChatID, Text: text, EventID: ev.ID}, nil
	}
	return Message{}, fmt.Errorf("notify: unsupported event type %q", ev.Type)
}

func marketTitle(name, id string) string {
	if name == "" {
		return id
	}
	return name
}
