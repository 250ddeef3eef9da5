// Package seed fills a user document with generated people for local use.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/brattlof/usersdb/internal/events"
	"github.com/brattlof/usersdb/internal/store"
	"github.com/brattlof/usersdb/internal/users"
)

type Seeder struct {
	faker     *gofakeit.Faker
	store     store.Store
	publisher events.Publisher
	logger    *slog.Logger
}

// NewSeeder uses a fixed seed when seed is non-zero so runs are repeatable.
func NewSeeder(s store.Store, pub events.Publisher, seed uint64, logger *slog.Logger) *Seeder {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Seeder{
		faker:     gofakeit.New(seed),
		store:     s,
		publisher: pub,
		logger:    logger,
	}
}

func (s *Seeder) NewUser(id int) store.User {
	return store.User{
		ID:    id,
		Name:  store.StringPtr(s.faker.Name()),
		Email: store.StringPtr(s.faker.Email()),
	}
}

// Seed appends count users in one write, assigning ids the way the API does.
func (s *Seeder) Seed(ctx context.Context, count int) ([]store.User, error) {
	if count <= 0 {
		return nil, nil
	}

	doc, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}

	created := make([]store.User, 0, count)
	for range count {
		u := s.NewUser(users.NextID(doc))
		users.Append(doc, u)
		created = append(created, u)
	}

	if err := s.store.Write(ctx, doc); err != nil {
		return nil, fmt.Errorf("seed %d users: %w", count, err)
	}

	now := time.Now().UTC()
	for i := range created {
		ev := events.Event{Type: events.UserCreated, ID: created[i].ID, User: &created[i], At: now}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("Failed to publish user event", "type", ev.Type, "id", ev.ID, "error", err)
		}
	}

	s.logger.Info("Seeded users", "count", len(created), "total", len(doc.Users))
	return created, nil
}
