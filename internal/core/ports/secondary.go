package ports

import (
	"context"
	"time"

	"github.com/arhipvp/hw05-final/internal/core/domain"
)

// --- PERSISTANCE (DB) ---

// UserRepository lit les comptes créés par le service d'identité.
// Save sert au seeding et aux tests.
type UserRepository interface {
	Save(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type GroupRepository interface {
	Save(ctx context.Context, group *domain.Group) error
	GetByID(ctx context.Context, id int64) (*domain.Group, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Group, error)
	List(ctx context.Context) ([]*domain.Group, error)
}

// PostFilter restreint une liste de posts. Filtre vide = tous les posts.
type PostFilter struct {
	GroupID   *int64
	AuthorIDs []int64
}

// PostRepository renvoie des posts hydratés (Author et Group remplis),
// toujours triés du plus récent au plus ancien.
type PostRepository interface {
	Save(ctx context.Context, post *domain.Post) error
	FindByID(ctx context.Context, id int64) (*domain.Post, error)

	// Update ne touche que text, group_id et image.
	Update(ctx context.Context, post *domain.Post) error

	// Utilisé pour la pagination (COUNT puis LIMIT/OFFSET)
	Count(ctx context.Context, filter PostFilter) (int, error)
	List(ctx context.Context, filter PostFilter, limit, offset int) ([]*domain.Post, error)
}

type CommentRepository interface {
	Save(ctx context.Context, comment *domain.Comment) error
	ListByPost(ctx context.Context, postID int64) ([]*domain.Comment, error)
}

// FollowRepository stocke le graphe d'abonnements.
// Create renvoie domain.ErrAlreadyFollowing si la paire existe déjà.
// Delete est idempotent.
type FollowRepository interface {
	Create(ctx context.Context, follow *domain.Follow) error
	Delete(ctx context.Context, userID, authorID int64) error
	Exists(ctx context.Context, userID, authorID int64) (bool, error)
	ListAuthorIDs(ctx context.Context, userID int64) ([]int64, error)
}

// --- MÉDIAS ---

type MediaStorage interface {
	// Save écrit l'image sous dir/ et renvoie son chemin relatif.
	Save(ctx context.Context, dir string, upload *domain.Upload) (string, error)
	Delete(ctx context.Context, path string) error
}

// --- CACHE ---

// ResponseCache est un cache clé/valeur avec expiration, indépendant de la techno.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- MESSAGERIE (BROKER) ---

type EventPublisher interface {
	PublishPostCreated(ctx context.Context, post *domain.Post) error
	PublishPostUpdated(ctx context.Context, post *domain.Post) error
	PublishCommentCreated(ctx context.Context, comment *domain.Comment) error
	PublishFollowCreated(ctx context.Context, follow *domain.Follow) error
	PublishFollowDeleted(ctx context.Context, userID, authorID int64) error
}

// --- SÉCURITÉ ---

// Identity est ce qu'un token valide atteste : le subject et le claim "username".
type Identity struct {
	UserID   int64
	Username string
}

// TokenVerifier valide un token émis par le service d'identité.
type TokenVerifier interface {
	Validate(token string) (Identity, error)
}
