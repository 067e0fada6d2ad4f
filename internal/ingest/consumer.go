package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/jonquils-io/jonquils/internal/sink"
)

// Sentinel errors for listen-event validation.
var (
	ErrUnknownAction    = errors.New("unknown listen action")
	ErrMissingTrackID   = errors.New("track_id is required")
	ErrNegativeDuration = errors.New("duration_ms cannot be negative")
)

// listenActions are the actions clients may publish on the listen topic.
// Everything else on the topic is a producer bug and is rejected, not stored.
var listenActions = map[string]bool{
	sink.ActionPlay: true,
	sink.ActionSkip: true,
	sink.ActionLike: true,
}

// ListenEvent is the JSON payload clients publish to the listen topic.
type ListenEvent struct {
	EventID    string    `json:"event_id"`
	Timestamp  time.Time `json:"timestamp"`
	TrackID    uint32    `json:"track_id"`
	ArtistID   uint32    `json:"artist_id"`
	AlbumID    uint32    `json:"album_id"`
	GenreID    uint32    `json:"genre_id"`
	UserID     *uint32   `json:"user_id,omitempty"`
	Action     string    `json:"action"`
	DurationMs int64     `json:"duration_ms"`
	Completion float32   `json:"completion"`
	Platform   string    `json:"platform"`
	DeviceType string    `json:"device_type"`
	SessionID  string    `json:"session_id"`
}

// Validate checks the event against the listen-topic contract.
func (e *ListenEvent) Validate() error {
	if !listenActions[e.Action] {
		return fmt.Errorf("%w: %q (valid: play, skip, like)", ErrUnknownAction, e.Action)
	}

	if e.TrackID == 0 {
		return ErrMissingTrackID
	}

	if e.DurationMs < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeDuration, e.DurationMs)
	}

	return nil
}

// MessageReader is the subset of kafka.Reader the consumer uses.
// A fetch/commit pair rather than ReadMessage so that an event is only
// committed after the sink has seen it.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventSink accepts telemetry facts. Inserts are best-effort: a false return
// means the event was dropped (degraded sink or write failure) and counted.
type EventSink interface {
	Insert(ctx context.Context, e sink.Event) bool
}

// Consumer reads listen events from Kafka and forwards them to the sink.
//
// Delivery is at-least-once: offsets are committed after the sink insert,
// so a crash between insert and commit replays the event. The fact tables
// key on event_id, which keeps replays harmless downstream.
type Consumer struct {
	reader MessageReader
	dest   EventSink
	logger *slog.Logger

	consumed atomic.Uint64
	rejected atomic.Uint64

	stop chan struct{}
	done chan struct{}
}

// NewConsumer builds a consumer over a real Kafka reader.
func NewConsumer(cfg *Config, dest EventSink, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	})

	return NewConsumerWithReader(reader, dest, logger)
}

// NewConsumerWithReader builds a consumer over an injected reader.
func NewConsumerWithReader(reader MessageReader, dest EventSink, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: reader,
		dest:   dest,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the consume loop in a goroutine.
func (c *Consumer) Start(ctx context.Context) {
	go c.run(ctx)
}

// Close stops the consume loop and closes the underlying reader. It blocks
// until the loop has exited.
func (c *Consumer) Close() error {
	close(c.stop)
	err := c.reader.Close()
	<-c.done

	return err
}

// Consumed returns the number of events forwarded to the sink.
func (c *Consumer) Consumed() uint64 { return c.consumed.Load() }

// Rejected returns the number of malformed events skipped.
func (c *Consumer) Rejected() uint64 { return c.rejected.Load() }

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if c.stopping(ctx) || errors.Is(err, context.Canceled) {
				return
			}

			c.logger.Error("fetch from listen topic failed", "error", err)

			// Transient broker errors: back off briefly instead of spinning.
			select {
			case <-time.After(time.Second):
			case <-c.stop:
				return
			case <-ctx.Done():
				return
			}

			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && !c.stopping(ctx) {
			c.logger.Error("commit listen offset failed",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err)
		}
	}
}

// handle decodes, validates and forwards one message. Malformed payloads are
// logged and skipped; the offset is still committed so one bad producer
// cannot wedge the partition.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var event ListenEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.rejected.Add(1)
		c.logger.Warn("malformed listen event skipped",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err)

		return
	}

	if err := event.Validate(); err != nil {
		c.rejected.Add(1)
		c.logger.Warn("invalid listen event skipped",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err)

		return
	}

	if c.dest.Insert(ctx, event.trackEvent()) {
		c.consumed.Add(1)
	}
}

// trackEvent converts the wire payload into a fact row, stamping identity
// and time where the producer left them blank.
func (e *ListenEvent) trackEvent() sink.TrackEvent {
	eventID := e.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return sink.TrackEvent{
		EventID:    eventID,
		Timestamp:  ts,
		TrackID:    e.TrackID,
		ArtistID:   e.ArtistID,
		AlbumID:    e.AlbumID,
		GenreID:    e.GenreID,
		UserID:     e.UserID,
		Action:     e.Action,
		DurationMs: e.DurationMs,
		Completion: e.Completion,
		Platform:   e.Platform,
		DeviceType: e.DeviceType,
		SessionID:  e.SessionID,
	}
}

func (c *Consumer) stopping(ctx context.Context) bool {
	select {
	case <-c.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
