package service

import (
	"context"
	"fmt"

	apperr "parkly/internal/errors"
	"parkly/internal/models"
)

const inboxLimit = 50

type NotificationService struct {
	store NotificationStore
}

func NewNotificationService(store NotificationStore) *NotificationService {
	return &NotificationService{store: store}
}

// List returns the latest inbox entries of the caller
func (s *NotificationService) List(ctx context.Context, caller models.Caller) ([]models.Notification, error) {
	if caller.ID == "" {
		return nil, apperr.Authorization("notifications.list", "sign in to read notifications")
	}

	items, err := s.store.ListByUser(ctx, caller.ID, inboxLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, nil
}
