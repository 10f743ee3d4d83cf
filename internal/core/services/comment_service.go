package services

import (
	"context"
	"log/slog"

	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/ports"
)

type CommentService struct {
	posts     ports.PostRepository
	comments  ports.CommentRepository
	publisher ports.EventPublisher
}

func NewCommentService(posts ports.PostRepository, comments ports.CommentRepository, pub ports.EventPublisher) *CommentService {
	return &CommentService{posts: posts, comments: comments, publisher: pub}
}

var _ ports.CommentService = (*CommentService)(nil)

// AddComment renvoie domain.FormErrors si le texte est vide ; l'adapter HTTP
// choisit de l'ignorer silencieusement.
func (s *CommentService) AddComment(ctx context.Context, viewer *domain.User, postID int64, form domain.CommentForm) (*domain.Comment, error) {
	if viewer == nil {
		return nil, domain.ErrUnauthenticated
	}

	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	if errs := form.Validate(); !errs.Empty() {
		return nil, errs
	}

	comment := domain.NewComment(post, viewer, form.Text)
	if err := s.comments.Save(ctx, comment); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishCommentCreated(ctx, comment); err != nil {
		slog.Warn("Failed to publish comment.created", "comment_id", comment.ID, "error", err)
	}
	return comment, nil
}
