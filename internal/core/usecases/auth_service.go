package usecases

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/samirrijal/mapme/internal/core/domain"
	"github.com/samirrijal/mapme/internal/core/ports"
)

// AuthService drives the Strava sign-in flow.
type AuthService struct {
	auth     ports.AthleteAuthenticator
	athletes *AthleteService
}

// NewAuthService creates a new AuthService.
func NewAuthService(auth ports.AthleteAuthenticator, athletes *AthleteService) *AuthService {
	return &AuthService{auth: auth, athletes: athletes}
}

// LoginURL returns the provider authorization URL and the state value the
// callback must echo back.
func (s *AuthService) LoginURL() (url, state string) {
	state = uuid.NewString()
	return s.auth.AuthCodeURL(state), state
}

// Callback exchanges an authorization code and signs the athlete in.
func (s *AuthService) Callback(ctx context.Context, code string) (*domain.Athlete, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}
	a, err := s.auth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return s.athletes.Login(ctx, a)
}
