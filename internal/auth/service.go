package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/cohaus/cohaus/internal/shared"
	"github.com/cohaus/cohaus/internal/users"
)

// UserFinder is the slice of the users module that login needs.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	finder UserFinder
}

// NewService constructs a new Service.
func NewService(finder UserFinder) *Service {
	return &Service{finder: finder}
}

// Authenticate validates email/password credentials. All failure modes
// collapse into ErrInvalidCredentials so responses cannot be used to probe
// which accounts exist.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*users.User, error) {
	user, err := s.finder.GetByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}
