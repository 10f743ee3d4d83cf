package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/ports"
)

// Dossier des images de posts, relatif à MEDIA_ROOT
const postImageDir = "posts"

type PostService struct {
	posts     ports.PostRepository
	groups    ports.GroupRepository
	users     ports.UserRepository
	follows   ports.FollowRepository
	comments  ports.CommentRepository
	media     ports.MediaStorage
	publisher ports.EventPublisher
	pageSize  int
}

func NewPostService(
	posts ports.PostRepository,
	groups ports.GroupRepository,
	users ports.UserRepository,
	follows ports.FollowRepository,
	comments ports.CommentRepository,
	media ports.MediaStorage,
	pub ports.EventPublisher,
	pageSize int,
) *PostService {
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}
	return &PostService{
		posts:     posts,
		groups:    groups,
		users:     users,
		follows:   follows,
		comments:  comments,
		media:     media,
		publisher: pub,
		pageSize:  pageSize,
	}
}

var _ ports.PostService = (*PostService)(nil)

// --- QUERIES (Read) ---

func (s *PostService) Index(ctx context.Context, page string) (*ports.PostPage, error) {
	return paginatePosts(ctx, s.posts, ports.PostFilter{}, page, s.pageSize)
}

func (s *PostService) GroupPosts(ctx context.Context, slug, page string) (*ports.GroupPostsView, error) {
	group, err := s.groups.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	p, err := paginatePosts(ctx, s.posts, ports.PostFilter{GroupID: &group.ID}, page, s.pageSize)
	if err != nil {
		return nil, err
	}
	return &ports.GroupPostsView{Group: group, Page: p}, nil
}

func (s *PostService) Profile(ctx context.Context, viewer *domain.User, username, page string) (*ports.ProfileView, error) {
	author, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	p, err := paginatePosts(ctx, s.posts, ports.PostFilter{AuthorIDs: []int64{author.ID}}, page, s.pageSize)
	if err != nil {
		return nil, err
	}

	// Anonyme ou propre profil : jamais "following"
	following := false
	if viewer != nil && !viewer.Is(author) {
		following, err = s.follows.Exists(ctx, viewer.ID, author.ID)
		if err != nil {
			return nil, fmt.Errorf("check follow: %w", err)
		}
	}

	return &ports.ProfileView{Author: author, Page: p, Following: following}, nil
}

func (s *PostService) Detail(ctx context.Context, postID int64) (*ports.PostDetailView, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	return &ports.PostDetailView{
		Post:     post,
		Comments: comments,
		Form:     domain.CommentForm{},
	}, nil
}

func (s *PostService) Groups(ctx context.Context) ([]*domain.Group, error) {
	return s.groups.List(ctx)
}

// --- COMMANDS (Write) ---

func (s *PostService) Create(ctx context.Context, viewer *domain.User, form domain.PostForm) (*domain.Post, error) {
	if viewer == nil {
		return nil, domain.ErrUnauthenticated
	}

	// 1. Validation complète avant toute écriture (pas de persistance partielle)
	if err := s.validate(ctx, &form); err != nil {
		return nil, err
	}

	// 2. Stockage de l'image
	image := ""
	if form.Image != nil {
		path, err := s.media.Save(ctx, postImageDir, form.Image)
		if err != nil {
			return nil, fmt.Errorf("store image: %w", err)
		}
		image = path
	}

	// 3. Sauvegarde DB (Source of Truth)
	post := domain.NewPost(viewer, form.Text, form.GroupID, image)
	if err := s.posts.Save(ctx, post); err != nil {
		s.discardImage(ctx, image)
		return nil, err
	}

	// 4. Publication (best effort)
	if err := s.publisher.PublishPostCreated(ctx, post); err != nil {
		slog.Warn("Failed to publish post.created", "post_id", post.ID, "error", err)
	}

	return post, nil
}

func (s *PostService) GetForEdit(ctx context.Context, viewer *domain.User, postID int64) (*domain.Post, error) {
	if viewer == nil {
		return nil, domain.ErrUnauthenticated
	}

	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsAuthoredBy(viewer) {
		return nil, domain.ErrForbidden
	}
	return post, nil
}

func (s *PostService) Edit(ctx context.Context, viewer *domain.User, postID int64, form domain.PostForm) (*domain.Post, error) {
	// 1. Récupérer l'existant + vérification de propriété
	post, err := s.GetForEdit(ctx, viewer, postID)
	if err != nil {
		return nil, err
	}

	// 2. Validation
	if err := s.validate(ctx, &form); err != nil {
		return nil, err
	}

	// 3. Image : remplacement, suppression ou conservation
	oldImage := post.Image
	image := oldImage
	switch {
	case form.Image != nil:
		image, err = s.media.Save(ctx, postImageDir, form.Image)
		if err != nil {
			return nil, fmt.Errorf("store image: %w", err)
		}
	case form.ClearImage:
		image = ""
	}

	// 4. Mise à jour des champs éditables uniquement (l'auteur ne bouge pas)
	post.Apply(form.Text, form.GroupID, image)
	if err := s.posts.Update(ctx, post); err != nil {
		if image != oldImage {
			s.discardImage(ctx, image)
		}
		return nil, err
	}
	if image != oldImage {
		s.discardImage(ctx, oldImage)
	}

	if err := s.publisher.PublishPostUpdated(ctx, post); err != nil {
		slog.Warn("Failed to publish post.updated", "post_id", post.ID, "error", err)
	}
	return post, nil
}

// validate renvoie domain.FormErrors si le formulaire est invalide.
func (s *PostService) validate(ctx context.Context, form *domain.PostForm) error {
	errs := form.Validate()
	if form.GroupID != nil {
		if _, err := s.groups.GetByID(ctx, *form.GroupID); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			errs.Add("group", domain.MsgInvalidChoice)
		}
	}
	if !errs.Empty() {
		return errs
	}
	return nil
}

func (s *PostService) discardImage(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.media.Delete(ctx, path); err != nil {
		slog.Warn("Failed to delete image", "path", path, "error", err)
	}
}

// paginatePosts : COUNT puis LIMIT/OFFSET sur la page résolue.
func paginatePosts(ctx context.Context, repo ports.PostRepository, filter ports.PostFilter, page string, size int) (*ports.PostPage, error) {
	total, err := repo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}

	req := domain.NewPageRequest(total, page, size)
	if total == 0 {
		return domain.NewPage[*domain.Post](nil, req), nil
	}

	posts, err := repo.List(ctx, filter, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return domain.NewPage(posts, req), nil
}
