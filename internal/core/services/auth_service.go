package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/ports"
)

// AuthService résout le viewer à partir d'un token émis par le service d'identité.
type AuthService struct {
	verifier ports.TokenVerifier
	users    ports.UserRepository
}

func NewAuthService(verifier ports.TokenVerifier, users ports.UserRepository) *AuthService {
	return &AuthService{verifier: verifier, users: users}
}

var _ ports.AuthService = (*AuthService)(nil)

func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	identity, err := s.verifier.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	user, err := s.users.GetByID(ctx, identity.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.provision(ctx, identity)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// provision crée le compte local à la première visite d'un utilisateur du service d'identité,
// avec le même ID : posts et abonnements le référencent par cette clé.
func (s *AuthService) provision(ctx context.Context, identity ports.Identity) (*domain.User, error) {
	// Sans username, on ne peut pas créer de profil
	if identity.Username == "" {
		return nil, domain.ErrUnauthenticated
	}

	user := &domain.User{ID: identity.UserID, Username: identity.Username}
	if err := s.users.Save(ctx, user); err != nil {
		// Deux premières requêtes concurrentes : l'autre a déjà inséré la ligne
		if existing, getErr := s.users.GetByID(ctx, identity.UserID); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("provision user %d: %w", identity.UserID, err)
	}

	slog.Info("👤 User provisioned from token", "user_id", user.ID, "username", user.Username)
	return user, nil
}
