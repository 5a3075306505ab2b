package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
	"github.com/helloquitx/hqx-api/internal/domain/repository"
)

// PreferencesUpdate carries the consent/onboarding flags a user may change,
// plus the contact email collected alongside the newsletter opt-in.
// Pointers distinguish "leave unchanged" from "set false".
type PreferencesUpdate struct {
	Email              *string `json:"email"`
	HasOnboarded       *bool   `json:"has_onboarded"`
	HqxNewsletter      *bool   `json:"hqx_newsletter"`
	OepAccepted        *bool   `json:"oep_accepted"`
	ResearchAccepted   *bool   `json:"research_accepted"`
	HaveSeenNewsletter *bool   `json:"have_seen_newsletter"`
	AutomaticReconnect *bool   `json:"automatic_reconnect"`
}

// UserService handles user reads and explicit preference mutations. The
// linking core never touches these flags; this is the only write path.
type UserService struct {
	userRepo     repository.UserRepository
	emailService EmailService
}

func NewUserService(userRepo repository.UserRepository, emailService EmailService) *UserService {
	return &UserService{
		userRepo:     userRepo,
		emailService: emailService,
	}
}

func (s *UserService) GetByID(id uuid.UUID) (*entity.User, error) {
	return s.userRepo.GetByID(id)
}

// UpdatePreferences applies the requested flag changes. Subscribing to the
// newsletter for the first time triggers a welcome email; email failures are
// logged, not surfaced, preferences were already saved.
func (s *UserService) UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs *PreferencesUpdate) (*entity.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	updates := map[string]interface{}{}
	setFlag := func(column string, current bool, requested *bool) {
		if requested != nil && *requested != current {
			updates[column] = *requested
		}
	}
	if prefs.Email != nil {
		current := ""
		if user.Email != nil {
			current = *user.Email
		}
		if *prefs.Email != current {
			if *prefs.Email == "" {
				// Clearing the address stores NULL, not an empty string
				// that would collide on the unique index.
				updates["email"] = nil
			} else {
				updates["email"] = *prefs.Email
			}
		}
	}
	setFlag("has_onboarded", user.HasOnboarded, prefs.HasOnboarded)
	setFlag("hqx_newsletter", user.HqxNewsletter, prefs.HqxNewsletter)
	setFlag("oep_accepted", user.OepAccepted, prefs.OepAccepted)
	setFlag("research_accepted", user.ResearchAccepted, prefs.ResearchAccepted)
	setFlag("have_seen_newsletter", user.HaveSeenNewsletter, prefs.HaveSeenNewsletter)
	setFlag("automatic_reconnect", user.AutomaticReconnect, prefs.AutomaticReconnect)

	if len(updates) == 0 {
		return user, nil
	}

	if err := s.userRepo.UpdateFields(userID, updates); err != nil {
		return nil, fmt.Errorf("failed to update preferences for user %s: %w", userID, err)
	}

	subscribed := prefs.HqxNewsletter != nil && *prefs.HqxNewsletter && !user.HqxNewsletter

	user, err = s.userRepo.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user %s: %w", userID, err)
	}

	if subscribed && s.emailService != nil && user.Email != nil {
		go s.sendWelcome(*user.Email, user.DisplayName())
	}

	return user, nil
}

func (s *UserService) sendWelcome(email, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.emailService.SendNewsletterWelcome(ctx, email, name); err != nil {
		log.Printf("[User] Failed to send newsletter welcome to %s: %v", email, err)
	}
}
