package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/ports"
)

// Code 23505 = Unique Violation
const pgUniqueViolation = "23505"

// PostgresStore regroupe les repositories SQL adossés au même pool.
type PostgresStore struct {
	Users    *PgUserRepo
	Groups   *PgGroupRepo
	Posts    *PgPostRepo
	Comments *PgCommentRepo
	Follows  *PgFollowRepo
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		Users:    &PgUserRepo{db: pool},
		Groups:   &PgGroupRepo{db: pool},
		Posts:    &PgPostRepo{db: pool},
		Comments: &PgCommentRepo{db: pool},
		Follows:  &PgFollowRepo{db: pool},
	}
}

// --- USERS ---

type PgUserRepo struct {
	db *pgxpool.Pool
}

var _ ports.UserRepository = (*PgUserRepo)(nil)

// Save insère la projection locale d'un compte. Un ID non nul (venant du
// service d'identité) est conservé tel quel.
func (r *PgUserRepo) Save(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	args := pgx.NamedArgs{
		"username":   user.Username,
		"created_at": user.CreatedAt,
	}
	q := `INSERT INTO users (username, created_at) VALUES (@username, @created_at) RETURNING id`
	if user.ID != 0 {
		q = `INSERT INTO users (id, username, created_at) VALUES (@id, @username, @created_at) RETURNING id`
		args["id"] = user.ID
	}

	if err := r.db.QueryRow(ctx, q, args).Scan(&user.ID); err != nil {
		return fmt.Errorf("db: save user: %w", err)
	}
	return nil
}

func (r *PgUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT id, username, created_at FROM users WHERE id = $1`, id)
}

func (r *PgUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT id, username, created_at FROM users WHERE username = $1`, username)
}

func (r *PgUserRepo) getOne(ctx context.Context, q string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound // Traduction technique -> Domaine
		}
		return nil, fmt.Errorf("db: get user: %w", err)
	}
	return &u, nil
}

// --- GROUPS ---

type PgGroupRepo struct {
	db *pgxpool.Pool
}

var _ ports.GroupRepository = (*PgGroupRepo)(nil)

func (r *PgGroupRepo) Save(ctx context.Context, group *domain.Group) error {
	q := `
		INSERT INTO post_groups (title, slug, description)
		VALUES (@title, @slug, @description)
		RETURNING id
	`
	args := pgx.NamedArgs{
		"title":       group.Title,
		"slug":        group.Slug,
		"description": group.Description,
	}
	if err := r.db.QueryRow(ctx, q, args).Scan(&group.ID); err != nil {
		return fmt.Errorf("db: save group: %w", err)
	}
	return nil
}

func (r *PgGroupRepo) GetByID(ctx context.Context, id int64) (*domain.Group, error) {
	return r.getOne(ctx, `SELECT id, title, slug, description FROM post_groups WHERE id = $1`, id)
}

func (r *PgGroupRepo) GetBySlug(ctx context.Context, slug string) (*domain.Group, error) {
	return r.getOne(ctx, `SELECT id, title, slug, description FROM post_groups WHERE slug = $1`, slug)
}

func (r *PgGroupRepo) getOne(ctx context.Context, q string, arg any) (*domain.Group, error) {
	var g domain.Group
	err := r.db.QueryRow(ctx, q, arg).Scan(&g.ID, &g.Title, &g.Slug, &g.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, fmt.Errorf("db: get group: %w", err)
	}
	return &g, nil
}

func (r *PgGroupRepo) List(ctx context.Context) ([]*domain.Group, error) {
	rows, err := r.db.Query(ctx, `SELECT id, title, slug, description FROM post_groups ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("db: list groups: %w", err)
	}
	defer rows.Close()

	var groups []*domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Title, &g.Slug, &g.Description); err != nil {
			return nil, err
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

// --- POSTS ---

type PgPostRepo struct {
	db *pgxpool.Pool
}

var _ ports.PostRepository = (*PgPostRepo)(nil)

// Hydratation en une requête : auteur (JOIN) et groupe optionnel (LEFT JOIN)
const pgPostSelect = `
	SELECT p.id, p.text, p.pub_date, p.image,
	       u.id, u.username, u.created_at,
	       g.id, g.title, g.slug, g.description
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN post_groups g ON g.id = p.group_id
`

func (r *PgPostRepo) Save(ctx context.Context, post *domain.Post) error {
	q := `
		INSERT INTO posts (text, pub_date, author_id, group_id, image)
		VALUES (@text, @pub_date, @author_id, @group_id, @image)
		RETURNING id
	`
	args := pgx.NamedArgs{
		"text":      post.Text,
		"pub_date":  post.PubDate,
		"author_id": post.AuthorID,
		"group_id":  post.GroupID,
		"image":     post.Image,
	}
	if err := r.db.QueryRow(ctx, q, args).Scan(&post.ID); err != nil {
		return fmt.Errorf("db: save post: %w", err)
	}
	return nil
}

func (r *PgPostRepo) FindByID(ctx context.Context, id int64) (*domain.Post, error) {
	post, err := scanPgPost(r.db.QueryRow(ctx, pgPostSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("db: find post: %w", err)
	}
	return post, nil
}

func (r *PgPostRepo) Update(ctx context.Context, post *domain.Post) error {
	q := `
		UPDATE posts
		SET text = @text, group_id = @group_id, image = @image
		WHERE id = @id
	`
	args := pgx.NamedArgs{
		"id":       post.ID,
		"text":     post.Text,
		"group_id": post.GroupID,
		"image":    post.Image,
	}

	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("db: update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

func (r *PgPostRepo) Count(ctx context.Context, filter ports.PostFilter) (int, error) {
	where, args := pgPostWhere(filter)

	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts p`+where, args).Scan(&n); err != nil {
		return 0, fmt.Errorf("db: count posts: %w", err)
	}
	return n, nil
}

// List : pagination OFFSET, l'ordre (pub_date, id) rend les pages stables.
func (r *PgPostRepo) List(ctx context.Context, filter ports.PostFilter, limit, offset int) ([]*domain.Post, error) {
	where, args := pgPostWhere(filter)
	args["limit"] = limit
	args["offset"] = offset

	q := pgPostSelect + where + ` ORDER BY p.pub_date DESC, p.id DESC LIMIT @limit OFFSET @offset`
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("db: list posts: %w", err)
	}
	defer rows.Close()

	var posts []*domain.Post
	for rows.Next() {
		post, err := scanPgPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func pgPostWhere(filter ports.PostFilter) (string, pgx.NamedArgs) {
	args := pgx.NamedArgs{}
	var conds []string
	if filter.GroupID != nil {
		conds = append(conds, "p.group_id = @group_id")
		args["group_id"] = *filter.GroupID
	}
	if filter.AuthorIDs != nil {
		// ANY($1) : un seul paramètre quel que soit le nombre d'auteurs
		conds = append(conds, "p.author_id = ANY(@author_ids)")
		args["author_ids"] = filter.AuthorIDs
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanPgPost(row pgx.Row) (*domain.Post, error) {
	var (
		p                   domain.Post
		u                   domain.User
		groupID             *int64
		title, slug, gdescr *string
	)
	err := row.Scan(
		&p.ID, &p.Text, &p.PubDate, &p.Image,
		&u.ID, &u.Username, &u.CreatedAt,
		&groupID, &title, &slug, &gdescr,
	)
	if err != nil {
		return nil, err
	}

	p.AuthorID = u.ID
	p.Author = &u
	if groupID != nil {
		p.GroupID = groupID
		p.Group = &domain.Group{ID: *groupID, Title: *title, Slug: *slug, Description: *gdescr}
	}
	return &p, nil
}

// --- COMMENTS ---

type PgCommentRepo struct {
	db *pgxpool.Pool
}

var _ ports.CommentRepository = (*PgCommentRepo)(nil)

func (r *PgCommentRepo) Save(ctx context.Context, c *domain.Comment) error {
	q := `
		INSERT INTO comments (post_id, author_id, text, created)
		VALUES (@post_id, @author_id, @text, @created)
		RETURNING id
	`
	args := pgx.NamedArgs{
		"post_id":   c.PostID,
		"author_id": c.AuthorID,
		"text":      c.Text,
		"created":   c.Created,
	}
	if err := r.db.QueryRow(ctx, q, args).Scan(&c.ID); err != nil {
		return fmt.Errorf("db: save comment: %w", err)
	}
	return nil
}

// ListByPost renvoie les commentaires du plus récent au plus ancien.
func (r *PgCommentRepo) ListByPost(ctx context.Context, postID int64) ([]*domain.Comment, error) {
	q := `
		SELECT c.id, c.post_id, c.text, c.created, u.id, u.username, u.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = $1
		ORDER BY c.created DESC, c.id DESC
	`
	rows, err := r.db.Query(ctx, q, postID)
	if err != nil {
		return nil, fmt.Errorf("db: list comments: %w", err)
	}
	defer rows.Close()

	var comments []*domain.Comment
	for rows.Next() {
		var (
			c domain.Comment
			u domain.User
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.Text, &c.Created, &u.ID, &u.Username, &u.CreatedAt); err != nil {
			return nil, err
		}
		c.AuthorID = u.ID
		c.Author = &u
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// --- FOLLOWS ---

type PgFollowRepo struct {
	db *pgxpool.Pool
}

var _ ports.FollowRepository = (*PgFollowRepo)(nil)

func (r *PgFollowRepo) Create(ctx context.Context, f *domain.Follow) error {
	q := `
		INSERT INTO follows (user_id, author_id, created_at)
		VALUES (@user_id, @author_id, @created_at)
	`
	args := pgx.NamedArgs{
		"user_id":    f.UserID,
		"author_id":  f.AuthorID,
		"created_at": f.CreatedAt,
	}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return r.handleError(err)
	}
	return nil
}

func (r *PgFollowRepo) Delete(ctx context.Context, userID, authorID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM follows WHERE user_id = $1 AND author_id = $2`, userID, authorID)
	if err != nil {
		return fmt.Errorf("db: delete follow: %w", err)
	}
	return nil
}

func (r *PgFollowRepo) Exists(ctx context.Context, userID, authorID int64) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM follows WHERE user_id = $1 AND author_id = $2)`
	if err := r.db.QueryRow(ctx, q, userID, authorID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db: follow exists: %w", err)
	}
	return exists, nil
}

func (r *PgFollowRepo) ListAuthorIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT author_id FROM follows WHERE user_id = $1 ORDER BY author_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("db: list followed: %w", err)
	}
	// CollectRows ferme rows
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// handleError traduit les codes d'erreur PostgreSQL en erreurs du Domaine
func (r *PgFollowRepo) handleError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.ErrAlreadyFollowing
	}
	return fmt.Errorf("db: create follow: %w", err)
}
