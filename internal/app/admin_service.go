package app

import (
	"context"
	"fmt"

	"sweep_reminder_bot/internal/domain/subscriber"
	idb "sweep_reminder_bot/internal/infra/database"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrSubscriberAlreadyExists = fmt.Errorf("subscriber with this Telegram ID already exists")
var ErrSubscriberAlreadyInactive = fmt.Errorf("subscriber is already inactive")

type AdminService struct {
	subscriberRepo  subscriber.Repository
	adminTelegramID int64
}

func NewAdminService(sr subscriber.Repository, adminID int64) *AdminService {
	return &AdminService{
		subscriberRepo:  sr,
		adminTelegramID: adminID,
	}
}

// AddSubscriber handles the business logic for registering a new subscriber.
func (s *AdminService) AddSubscriber(ctx context.Context, performingAdminID int64, telegramID int64, firstName string) (*subscriber.Subscriber, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}

	_, err := s.subscriberRepo.GetByTelegramID(ctx, telegramID)
	if err == nil { // Subscriber found, so already exists
		return nil, ErrSubscriberAlreadyExists
	}
	if err != idb.ErrSubscriberNotFound {
		return nil, fmt.Errorf("failed to check existing subscriber: %w", err)
	}

	newSubscriber := &subscriber.Subscriber{
		TelegramID: telegramID,
		FirstName:  firstName,
		IsActive:   true, // New subscribers are active by default
	}

	if err := s.subscriberRepo.Create(ctx, newSubscriber); err != nil {
		if err == idb.ErrDuplicateTelegramID {
			return nil, ErrSubscriberAlreadyExists
		}
		return nil, fmt.Errorf("failed to create subscriber in repository: %w", err)
	}

	return newSubscriber, nil
}

// RemoveSubscriber handles the business logic for deactivating a subscriber.
func (s *AdminService) RemoveSubscriber(ctx context.Context, performingAdminID int64, telegramIDToRemove int64) (*subscriber.Subscriber, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}

	target, err := s.subscriberRepo.GetByTelegramID(ctx, telegramIDToRemove)
	if err != nil {
		if err == idb.ErrSubscriberNotFound {
			return nil, idb.ErrSubscriberNotFound // Propagate specific error
		}
		return nil, fmt.Errorf("failed to get subscriber by Telegram ID for removal: %w", err)
	}

	if !target.IsActive {
		return target, ErrSubscriberAlreadyInactive
	}

	target.IsActive = false
	if err := s.subscriberRepo.Update(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to update subscriber to inactive in repository: %w", err)
	}

	return target, nil
}

// ListSubscribers returns the subscriber roster for the admin.
func (s *AdminService) ListSubscribers(ctx context.Context, performingAdminID int64, includeInactive bool) ([]*subscriber.Subscriber, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	if includeInactive {
		return s.subscriberRepo.ListAll(ctx)
	}
	return s.subscriberRepo.ListActive(ctx)
}
