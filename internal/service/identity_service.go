package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/helloquitx/hqx-api/internal/domain/entity"
	"github.com/helloquitx/hqx-api/internal/domain/repository"
	apperrors "github.com/helloquitx/hqx-api/internal/pkg/errors"
	"github.com/helloquitx/hqx-api/internal/provider"
	"github.com/helloquitx/hqx-api/pkg/crypto"
)

// ResolutionKind classifies what a sign-in event does to the user store.
type ResolutionKind int

const (
	// ResolutionNewUser creates a fresh user from the profile.
	ResolutionNewUser ResolutionKind = iota
	// ResolutionUpdateUser refreshes an already-linked user.
	ResolutionUpdateUser
	// ResolutionLinkToCurrentUser binds the external account to the signed-in user.
	ResolutionLinkToCurrentUser
	// ResolutionConflict rejects the event: the external account belongs to
	// someone else.
	ResolutionConflict
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolutionNewUser:
		return "new_user"
	case ResolutionUpdateUser:
		return "update_user"
	case ResolutionLinkToCurrentUser:
		return "link_to_current_user"
	case ResolutionConflict:
		return "conflict"
	}
	return "unknown"
}

// Resolution is the outcome of resolving one sign-in event. UserID is the
// target user for update/link outcomes and the existing owner for conflicts.
type Resolution struct {
	Kind    ResolutionKind
	UserID  uuid.UUID
	Profile provider.Profile
}

// ProviderTokens carries the token material a provider handed back; tokens
// are encrypted before persistence.
type ProviderTokens struct {
	Type         string // oauth or credentials
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    *time.Time
}

// IdentityService resolves sign-in events against the user store and
// persists account links. The database uniqueness constraint on
// (provider, provider_account_id, provider_instance) is the real arbiter for
// concurrent first-link races; Link is insert-or-fail and losers re-resolve.
type IdentityService struct {
	userRepo    repository.UserRepository
	accountRepo repository.AccountRepository
	tokenBox    *crypto.TokenBox
}

func NewIdentityService(
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	tokenBox *crypto.TokenBox,
) *IdentityService {
	return &IdentityService{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		tokenBox:    tokenBox,
	}
}

// Resolve decides what a sign-in event means. An already-linked external
// account always wins over "attach to whoever is signed in": the conflict
// check runs before the link-to-current branch, otherwise a signed-in
// attacker could absorb a victim's provider account.
func (s *IdentityService) Resolve(currentUserID *uuid.UUID, p *provider.Profile) (*Resolution, error) {
	if p == nil || p.ProviderAccountID == "" {
		return nil, fmt.Errorf("%w: profile has no provider account id", apperrors.ErrValidation)
	}

	account, err := s.accountRepo.GetByProviderAccount(p.Provider, p.ProviderAccountID, p.InstanceOrigin)
	switch {
	case err == nil:
		if currentUserID != nil && *currentUserID != account.UserID {
			log.Printf("[Identity] Conflict: %s account %s already linked to user %s, attempted by user %s",
				p.Provider, p.ProviderAccountID, account.UserID, *currentUserID)
			return &Resolution{Kind: ResolutionConflict, UserID: account.UserID, Profile: *p}, nil
		}
		return &Resolution{Kind: ResolutionUpdateUser, UserID: account.UserID, Profile: *p}, nil

	case errors.Is(err, apperrors.ErrNotFound):
		if currentUserID != nil {
			return &Resolution{Kind: ResolutionLinkToCurrentUser, UserID: *currentUserID, Profile: *p}, nil
		}
		return &Resolution{Kind: ResolutionNewUser, Profile: *p}, nil

	default:
		return nil, fmt.Errorf("failed to look up account link for %s/%s: %w",
			p.Provider, p.ProviderAccountID, err)
	}
}

// PersistLink applies a resolution to the store and returns the resulting
// user. Conflicts persist nothing. Display fields are always refreshed from
// the latest profile, linking is deliberately not idempotent on display data.
func (s *IdentityService) PersistLink(res *Resolution, tokens *ProviderTokens) (*entity.User, error) {
	switch res.Kind {
	case ResolutionConflict:
		return nil, fmt.Errorf("%w: %s account is already linked to another user",
			apperrors.ErrConflict, res.Profile.Provider)
	case ResolutionNewUser:
		return s.persistNewUser(res, tokens)
	case ResolutionUpdateUser, ResolutionLinkToCurrentUser:
		return s.persistExistingUser(res, tokens)
	default:
		return nil, fmt.Errorf("unknown resolution kind %d", res.Kind)
	}
}

func (s *IdentityService) persistNewUser(res *Resolution, tokens *ProviderTokens) (*entity.User, error) {
	user := s.userFromProfile(&res.Profile)
	account, err := s.newAccount(user.ID, res, tokens)
	if err != nil {
		return nil, err
	}

	err = s.accountRepo.LinkNewUser(user, account)
	if err == nil {
		log.Printf("[Identity] Created user %s from %s account %s",
			user.ID, res.Profile.Provider, res.Profile.ProviderAccountID)
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrConflict) {
		return nil, fmt.Errorf("failed to create user for %s account: %w", res.Profile.Provider, err)
	}

	// Lost a concurrent first-link race. The winner's row exists now, so the
	// event re-resolves as a plain update of the winner's user.
	log.Printf("[Identity] Lost first-link race for %s account %s, re-resolving",
		res.Profile.Provider, res.Profile.ProviderAccountID)
	winner, lookupErr := s.accountRepo.GetByProviderAccount(
		res.Profile.Provider, res.Profile.ProviderAccountID, res.Profile.InstanceOrigin)
	if lookupErr != nil {
		return nil, fmt.Errorf("failed to re-resolve after link race: %w", lookupErr)
	}
	return s.persistExistingUser(&Resolution{
		Kind:    ResolutionUpdateUser,
		UserID:  winner.UserID,
		Profile: res.Profile,
	}, tokens)
}

func (s *IdentityService) persistExistingUser(res *Resolution, tokens *ProviderTokens) (*entity.User, error) {
	if err := s.userRepo.UpdateFields(res.UserID, providerFieldUpdates(&res.Profile)); err != nil {
		return nil, fmt.Errorf("failed to refresh %s profile fields for user %s: %w",
			res.Profile.Provider, res.UserID, err)
	}

	existing, err := s.accountRepo.GetByProviderAccount(
		res.Profile.Provider, res.Profile.ProviderAccountID, res.Profile.InstanceOrigin)
	switch {
	case err == nil:
		if err := s.updateAccountTokens(existing.ID, tokens); err != nil {
			return nil, err
		}
	case errors.Is(err, apperrors.ErrNotFound):
		account, buildErr := s.newAccount(res.UserID, res, tokens)
		if buildErr != nil {
			return nil, buildErr
		}
		if linkErr := s.accountRepo.Link(account); linkErr != nil {
			if !errors.Is(linkErr, apperrors.ErrConflict) {
				return nil, fmt.Errorf("failed to link %s account to user %s: %w",
					res.Profile.Provider, res.UserID, linkErr)
			}
			// Raced against another request linking the same external
			// account. Accept the winner only if it bound the same user.
			winner, lookupErr := s.accountRepo.GetByProviderAccount(
				res.Profile.Provider, res.Profile.ProviderAccountID, res.Profile.InstanceOrigin)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to re-resolve after link race: %w", lookupErr)
			}
			if winner.UserID != res.UserID {
				return nil, fmt.Errorf("%w: %s account is already linked to another user",
					apperrors.ErrConflict, res.Profile.Provider)
			}
			if err := s.updateAccountTokens(winner.ID, tokens); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("failed to look up existing %s link: %w", res.Profile.Provider, err)
	}

	user, err := s.userRepo.GetByID(res.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s after linking: %w", res.UserID, err)
	}
	return user, nil
}

func (s *IdentityService) updateAccountTokens(accountID uuid.UUID, tokens *ProviderTokens) error {
	if tokens == nil {
		return nil
	}
	access, err := s.tokenBox.Seal(tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to seal access token: %w", err)
	}
	refresh, err := s.tokenBox.Seal(tokens.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to seal refresh token: %w", err)
	}
	if err := s.accountRepo.UpdateTokens(accountID, access, refresh, tokens.ExpiresAt); err != nil {
		return fmt.Errorf("failed to update account tokens: %w", err)
	}
	return nil
}

func (s *IdentityService) newAccount(userID uuid.UUID, res *Resolution, tokens *ProviderTokens) (*entity.Account, error) {
	account := &entity.Account{
		ID:                uuid.New(),
		UserID:            userID,
		Type:              "oauth",
		Provider:          res.Profile.Provider,
		ProviderAccountID: res.Profile.ProviderAccountID,
		ProviderInstance:  res.Profile.InstanceOrigin,
	}
	if tokens != nil {
		if tokens.Type != "" {
			account.Type = tokens.Type
		}
		account.TokenType = tokens.TokenType
		account.Scope = tokens.Scope
		account.ExpiresAt = tokens.ExpiresAt

		var err error
		if account.AccessToken, err = s.tokenBox.Seal(tokens.AccessToken); err != nil {
			return nil, fmt.Errorf("failed to seal access token: %w", err)
		}
		if account.RefreshToken, err = s.tokenBox.Seal(tokens.RefreshToken); err != nil {
			return nil, fmt.Errorf("failed to seal refresh token: %w", err)
		}
	}
	return account, nil
}

func (s *IdentityService) userFromProfile(p *provider.Profile) *entity.User {
	user := &entity.User{ID: uuid.New()}
	if p.DisplayName != "" {
		user.Name = ptr(p.DisplayName)
	}
	applyProfileToUser(user, p)
	return user
}

// providerFieldUpdates builds the column update for one provider's snapshot.
func providerFieldUpdates(p *provider.Profile) map[string]interface{} {
	updates := map[string]interface{}{}
	if p.DisplayName != "" {
		updates["name"] = p.DisplayName
	}
	switch p.Provider {
	case provider.Twitter:
		updates["twitter_id"] = p.ProviderAccountID
		updates["twitter_username"] = p.Username
		updates["twitter_image"] = p.AvatarURL
	case provider.Mastodon:
		updates["mastodon_id"] = p.ProviderAccountID
		updates["mastodon_username"] = p.Username
		updates["mastodon_image"] = p.AvatarURL
		updates["mastodon_instance"] = p.InstanceOrigin
	case provider.Bluesky:
		updates["bluesky_id"] = p.ProviderAccountID
		updates["bluesky_username"] = p.Username
		updates["bluesky_image"] = p.AvatarURL
	}
	return updates
}

func applyProfileToUser(user *entity.User, p *provider.Profile) {
	switch p.Provider {
	case provider.Twitter:
		user.TwitterID = ptr(p.ProviderAccountID)
		user.TwitterUsername = ptr(p.Username)
		user.TwitterImage = ptr(p.AvatarURL)
	case provider.Mastodon:
		user.MastodonID = ptr(p.ProviderAccountID)
		user.MastodonUsername = ptr(p.Username)
		user.MastodonImage = ptr(p.AvatarURL)
		user.MastodonInstance = ptr(p.InstanceOrigin)
	case provider.Bluesky:
		user.BlueskyID = ptr(p.ProviderAccountID)
		user.BlueskyUsername = ptr(p.Username)
		user.BlueskyImage = ptr(p.AvatarURL)
	}
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
