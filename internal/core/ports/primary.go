package ports

import (
	"context"

	"github.com/arhipvp/hw05-final/internal/core/domain"
)

// --- OUTPUTS ---

type PostPage = domain.Page[*domain.Post]

type GroupPostsView struct {
	Group *domain.Group
	Page  *PostPage
}

type ProfileView struct {
	Author    *domain.User
	Page      *PostPage
	Following bool
}

type PostDetailView struct {
	Post     *domain.Post
	Comments []*domain.Comment
	Form     domain.CommentForm
}

// --- PORTS PRIMAIRES (Driving) ---
// Le viewer courant est toujours passé explicitement (nil = anonyme).

type PostService interface {
	Index(ctx context.Context, page string) (*PostPage, error)
	GroupPosts(ctx context.Context, slug, page string) (*GroupPostsView, error)
	Profile(ctx context.Context, viewer *domain.User, username, page string) (*ProfileView, error)
	Detail(ctx context.Context, postID int64) (*PostDetailView, error)

	// Groups alimente la liste de choix du formulaire
	Groups(ctx context.Context) ([]*domain.Group, error)

	Create(ctx context.Context, viewer *domain.User, form domain.PostForm) (*domain.Post, error)
	GetForEdit(ctx context.Context, viewer *domain.User, postID int64) (*domain.Post, error)
	Edit(ctx context.Context, viewer *domain.User, postID int64, form domain.PostForm) (*domain.Post, error)
}

type CommentService interface {
	AddComment(ctx context.Context, viewer *domain.User, postID int64, form domain.CommentForm) (*domain.Comment, error)
}

type FollowService interface {
	Feed(ctx context.Context, viewer *domain.User, page string) (*PostPage, error)
	Follow(ctx context.Context, viewer *domain.User, username string) error
	Unfollow(ctx context.Context, viewer *domain.User, username string) error
}

type AuthService interface {
	// Authenticate résout le viewer à partir d'un token porteur.
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}
