package consumers

import (
	"context"
	"log/slog"

	"parkly/internal/cache"
	"parkly/internal/config"
	"parkly/internal/database"
	"parkly/internal/external"
	"parkly/internal/messaging"
	"parkly/internal/models"
	"parkly/internal/repository"
	"parkly/internal/service"

	"github.com/nats-io/stan.go"
)

const queueGroup = "parkly-consumers"

// ConsumerService runs the NATS consumers and owns the connections the background jobs share
type ConsumerService struct {
	db            *database.DB
	nats          *messaging.NATSClient
	pending       *cache.PendingExtensionStore
	handlers      *Handlers
	bookings      *service.BookingService
	subscriptions []stan.Subscription
}

func NewConsumerService(ctx context.Context, cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	pending, err := cache.NewPendingExtensionStore(ctx, cfg.Redis)
	if err != nil {
		natsClient.Close()
		db.Close()
		return nil, err
	}

	repos := repository.NewRepositories(db)

	services := service.NewServices(service.Deps{
		Bookings:      repos.Bookings,
		Extensions:    pending,
		Holds:         repos.Holds,
		Spots:         repos.Spots,
		Calendar:      repos.Calendar,
		Notifications: repos.Notifications,
		Gateway:       external.NewPaymentClient(cfg.Payment),
		Notifier:      messaging.NewNotifier(natsClient),
		Publisher:     natsClient,
	}, cfg.Booking)

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		pending:  pending,
		handlers: NewHandlers(repos.Notifications),
		bookings: services.Bookings,
	}, nil
}

// Bookings is the lifecycle engine used by the background jobs
func (cs *ConsumerService) Bookings() *service.BookingService {
	return cs.bookings
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	subscriptions := []struct {
		subject string
		handler stan.MsgHandler
	}{
		{models.SubjectBookingNotification, cs.handlers.HandleNotification},
		{models.SubjectBookingTransition, cs.handlers.HandleTransition},
	}

	for _, s := range subscriptions {
		sub, err := cs.nats.SubscribeQueue(s.subject, queueGroup, s.handler)
		if err != nil {
			return err
		}
		cs.subscriptions = append(cs.subscriptions, sub)
	}

	slog.Info("All consumers started successfully", "subscriptions", len(cs.subscriptions))
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	// Close rather than Unsubscribe keeps the durable queue position for the next start
	for _, sub := range cs.subscriptions {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.pending != nil {
		if err := cs.pending.Close(); err != nil {
			slog.Error("Error closing Redis connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return ctx.Err()
}
