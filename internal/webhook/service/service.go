package service

import (
	"context"
	"errors"
	"log/slog"

	"rwaledger/internal/webhook/models"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	"rwaledger/pkg/platform/sentinel"
	"rwaledger/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, subID id.SubscriptionID) (*models.Subscription, error)
	Delete(ctx context.Context, subID id.SubscriptionID) error
	ListActive(ctx context.Context) ([]*models.Subscription, error)
}

// Service manages webhook subscriptions.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("subscription store is required")
	}
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register adds an endpoint. An empty events list subscribes to everything.
func (s *Service) Register(ctx context.Context, url, secret string, events []string) (*models.Subscription, error) {
	sub, err := models.NewSubscription(id.NewSubscriptionID(), url, secret, events, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, translate(err, "failed to save subscription")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "webhook subscription registered",
			"subscription_id", sub.ID,
			"url", sub.URL,
			"events", sub.Events)
	}
	return sub, nil
}

func (s *Service) Unregister(ctx context.Context, subID id.SubscriptionID) error {
	if err := s.store.Delete(ctx, subID); err != nil {
		return translate(err, "failed to delete subscription")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "webhook subscription removed", "subscription_id", subID)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, subID id.SubscriptionID) (*models.Subscription, error) {
	sub, err := s.store.FindByID(ctx, subID)
	if err != nil {
		return nil, translate(err, "failed to load subscription")
	}
	return sub, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Subscription, error) {
	subs, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, translate(err, "failed to list subscriptions")
	}
	return subs, nil
}

func translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "subscription not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "subscription already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
