package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brattlof/usersdb/internal/store"
)

type Type string

const (
	UserCreated Type = "user.created"
	UserUpdated Type = "user.updated"
	UserDeleted Type = "user.deleted"
)

type Event struct {
	Type Type        `json:"type"`
	ID   int         `json:"id"`
	User *store.User `json:"user,omitempty"`
	At   time.Time   `json:"at"`
}

// Publisher receives an event after each persisted mutation.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type Driver string

const (
	DriverNone  Driver = "none"
	DriverLog   Driver = "log"
	DriverKafka Driver = "kafka"
)

type Options struct {
	Driver  Driver
	Brokers []string
	Topic   string
}

func New(opts Options, logger *slog.Logger) (Publisher, error) {
	switch opts.Driver {
	case DriverNone, "":
		return Nop{}, nil
	case DriverLog:
		return NewLogPublisher(logger), nil
	case DriverKafka:
		if len(opts.Brokers) == 0 {
			return nil, fmt.Errorf("kafka events need at least one broker")
		}
		return NewKafkaPublisher(opts.Brokers, opts.Topic)
	default:
		return nil, fmt.Errorf("unknown events driver %q", opts.Driver)
	}
}

type Nop struct{}

func (Nop) Publish(ctx context.Context, ev Event) error { return nil }
func (Nop) Close() error                                { return nil }

type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	p.logger.InfoContext(ctx, "user event", "type", ev.Type, "id", ev.ID, "at", ev.At)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
