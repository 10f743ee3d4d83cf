package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/ports"
)

type FollowService struct {
	follows   ports.FollowRepository
	users     ports.UserRepository
	posts     ports.PostRepository
	publisher ports.EventPublisher
	pageSize  int
}

func NewFollowService(
	follows ports.FollowRepository,
	users ports.UserRepository,
	posts ports.PostRepository,
	pub ports.EventPublisher,
	pageSize int,
) *FollowService {
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}
	return &FollowService{
		follows:   follows,
		users:     users,
		posts:     posts,
		publisher: pub,
		pageSize:  pageSize,
	}
}

var _ ports.FollowService = (*FollowService)(nil)

// Feed renvoie les posts des auteurs suivis, du plus récent au plus ancien.
func (s *FollowService) Feed(ctx context.Context, viewer *domain.User, page string) (*ports.PostPage, error) {
	if viewer == nil {
		return nil, domain.ErrUnauthenticated
	}

	authorIDs, err := s.follows.ListAuthorIDs(ctx, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("list followed authors: %w", err)
	}

	// Aucun abonnement : on ne dérange pas la DB
	if len(authorIDs) == 0 {
		return domain.NewPage[*domain.Post](nil, domain.NewPageRequest(0, page, s.pageSize)), nil
	}

	return paginatePosts(ctx, s.posts, ports.PostFilter{AuthorIDs: authorIDs}, page, s.pageSize)
}

// Follow : absent -> present. Auto-abonnement et doublon sont des no-op
// signalés par domain.ErrSelfFollow / domain.ErrAlreadyFollowing.
func (s *FollowService) Follow(ctx context.Context, viewer *domain.User, username string) error {
	if viewer == nil {
		return domain.ErrUnauthenticated
	}

	author, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	follow, err := domain.NewFollow(viewer, author)
	if err != nil {
		return err
	}

	// Vérification "soft". La contrainte UNIQUE reste la vraie garantie (race condition).
	exists, err := s.follows.Exists(ctx, viewer.ID, author.ID)
	if err != nil {
		return fmt.Errorf("check follow: %w", err)
	}
	if exists {
		return domain.ErrAlreadyFollowing
	}

	if err := s.follows.Create(ctx, follow); err != nil {
		return err
	}

	if err := s.publisher.PublishFollowCreated(ctx, follow); err != nil {
		slog.Warn("Failed to publish follow.created", "user_id", viewer.ID, "author_id", author.ID, "error", err)
	}
	return nil
}

// Unfollow : present -> absent, idempotent.
func (s *FollowService) Unfollow(ctx context.Context, viewer *domain.User, username string) error {
	if viewer == nil {
		return domain.ErrUnauthenticated
	}

	author, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	if err := s.follows.Delete(ctx, viewer.ID, author.ID); err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}

	if err := s.publisher.PublishFollowDeleted(ctx, viewer.ID, author.ID); err != nil {
		slog.Warn("Failed to publish follow.deleted", "user_id", viewer.ID, "author_id", author.ID, "error", err)
	}
	return nil
}
