package domain

import (
	"errors"
	"fmt"
)

// --- ERREURS DU DOMAINE ---
var (
	ErrNotFound = errors.New("not found")

	ErrPostNotFound  = fmt.Errorf("post %w", ErrNotFound)
	ErrGroupNotFound = fmt.Errorf("group %w", ErrNotFound)
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)

	ErrUnauthenticated  = errors.New("authentication required")
	ErrForbidden        = errors.New("only the author can edit this post")
	ErrSelfFollow       = errors.New("cannot follow yourself")
	ErrAlreadyFollowing = errors.New("already following this author")
)

// IsFollowNoop regroupe les refus d'abonnement qui ne sont pas des erreurs pour l'utilisateur.
func IsFollowNoop(err error) bool {
	return errors.Is(err, ErrSelfFollow) || errors.Is(err, ErrAlreadyFollowing)
}
