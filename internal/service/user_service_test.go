package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
)

func boolptr(b bool) *bool { return &b }

func TestUserService_UpdatePreferences_ChangedFlagsOnly(t *testing.T) {
	// Arrange
	userID := uuid.New()
	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", userID).Return(&entity.User{ID: userID, HasOnboarded: true}, nil)
	userRepo.On("UpdateFields", userID, mock.MatchedBy(func(updates map[string]interface{}) bool {
		_, touchesOnboarded := updates["has_onboarded"]
		return updates["oep_accepted"] == true && !touchesOnboarded
	})).Return(nil)

	svc := NewUserService(userRepo, nil)

	// Act: has_onboarded already true, oep_accepted flips.
	_, err := svc.UpdatePreferences(context.Background(), userID, &PreferencesUpdate{
		HasOnboarded: boolptr(true),
		OepAccepted:  boolptr(true),
	})

	// Assert
	require.NoError(t, err)
	userRepo.AssertExpectations(t)
}

func TestUserService_UpdatePreferences_NoChangesNoWrite(t *testing.T) {
	userID := uuid.New()
	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", userID).Return(&entity.User{ID: userID}, nil)

	svc := NewUserService(userRepo, nil)

	user, err := svc.UpdatePreferences(context.Background(), userID, &PreferencesUpdate{})

	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	userRepo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything)
}

func TestUserService_UpdatePreferences_EmailSetWithNewsletterOptIn(t *testing.T) {
	// The email arrives in the same request as the opt-in; the welcome must
	// go to the freshly stored address.
	userID := uuid.New()
	email := "grace@example.com"

	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", userID).Return(&entity.User{ID: userID}, nil).Once()
	userRepo.On("UpdateFields", userID, mock.MatchedBy(func(updates map[string]interface{}) bool {
		return updates["email"] == email && updates["hqx_newsletter"] == true
	})).Return(nil)
	userRepo.On("GetByID", userID).Return(&entity.User{ID: userID, Email: &email, HqxNewsletter: true}, nil)

	emailService := new(MockEmailService)
	done := make(chan struct{})
	emailService.On("SendNewsletterWelcome", mock.Anything, email, mock.Anything).
		Run(func(args mock.Arguments) { close(done) }).Return(nil)

	svc := NewUserService(userRepo, emailService)

	_, err := svc.UpdatePreferences(context.Background(), userID, &PreferencesUpdate{
		Email:         &email,
		HqxNewsletter: boolptr(true),
	})

	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("welcome email was not sent")
	}
	emailService.AssertExpectations(t)
}

func TestUserService_UpdatePreferences_NewsletterWelcomeEmail(t *testing.T) {
	userID := uuid.New()
	email := "ada@example.com"

	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", userID).Return(&entity.User{ID: userID, Email: &email}, nil).Once()
	userRepo.On("UpdateFields", userID, mock.Anything).Return(nil)
	userRepo.On("GetByID", userID).Return(&entity.User{ID: userID, Email: &email, HqxNewsletter: true}, nil)

	emailService := new(MockEmailService)
	done := make(chan struct{})
	emailService.On("SendNewsletterWelcome", mock.Anything, email, mock.Anything).
		Run(func(args mock.Arguments) { close(done) }).Return(nil)

	svc := NewUserService(userRepo, emailService)

	user, err := svc.UpdatePreferences(context.Background(), userID, &PreferencesUpdate{
		HqxNewsletter: boolptr(true),
	})

	require.NoError(t, err)
	assert.True(t, user.HqxNewsletter)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("welcome email was not sent")
	}
	emailService.AssertExpectations(t)
}
