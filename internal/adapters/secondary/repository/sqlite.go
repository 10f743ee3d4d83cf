package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/ports"
	"github.com/arhipvp/hw05-final/internal/platform/migrations"
)

// OpenSQLite ouvre (ou crée) la base et applique le schéma.
// path peut valoir ":memory:" pour les tests.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Une seule connexion : SQLite sérialise les écritures, et ":memory:" est propre à chaque connexion
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}

	if err := migrations.Apply(ctx, db, migrations.SQLite); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// SQLiteStore est le pendant embarqué de PostgresStore (mode local / tests).
type SQLiteStore struct {
	Users    *SqliteUserRepo
	Groups   *SqliteGroupRepo
	Posts    *SqlitePostRepo
	Comments *SqliteCommentRepo
	Follows  *SqliteFollowRepo
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		Users:    &SqliteUserRepo{db: db},
		Groups:   &SqliteGroupRepo{db: db},
		Posts:    &SqlitePostRepo{db: db},
		Comments: &SqliteCommentRepo{db: db},
		Follows:  &SqliteFollowRepo{db: db},
	}
}

// Les dates sont stockées en nanosecondes Unix (INTEGER) : tri exact et sans parsing.
func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// --- USERS ---

type SqliteUserRepo struct {
	db *sql.DB
}

var _ ports.UserRepository = (*SqliteUserRepo)(nil)

func (r *SqliteUserRepo) Save(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	var (
		res sql.Result
		err error
	)
	if user.ID != 0 {
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)`,
			user.ID, user.Username, toNanos(user.CreatedAt))
	} else {
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO users (username, created_at) VALUES (?, ?)`,
			user.Username, toNanos(user.CreatedAt))
	}
	if err != nil {
		return fmt.Errorf("db: save user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

func (r *SqliteUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT id, username, created_at FROM users WHERE id = ?`, id)
}

func (r *SqliteUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT id, username, created_at FROM users WHERE username = ?`, username)
}

func (r *SqliteUserRepo) getOne(ctx context.Context, q string, arg any) (*domain.User, error) {
	var (
		u       domain.User
		created int64
	)
	if err := r.db.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Username, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("db: get user: %w", err)
	}
	u.CreatedAt = fromNanos(created)
	return &u, nil
}

// --- GROUPS ---

type SqliteGroupRepo struct {
	db *sql.DB
}

var _ ports.GroupRepository = (*SqliteGroupRepo)(nil)

func (r *SqliteGroupRepo) Save(ctx context.Context, group *domain.Group) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO post_groups (title, slug, description) VALUES (?, ?, ?)`,
		group.Title, group.Slug, group.Description)
	if err != nil {
		return fmt.Errorf("db: save group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	group.ID = id
	return nil
}

func (r *SqliteGroupRepo) GetByID(ctx context.Context, id int64) (*domain.Group, error) {
	return r.getOne(ctx, `SELECT id, title, slug, description FROM post_groups WHERE id = ?`, id)
}

func (r *SqliteGroupRepo) GetBySlug(ctx context.Context, slug string) (*domain.Group, error) {
	return r.getOne(ctx, `SELECT id, title, slug, description FROM post_groups WHERE slug = ?`, slug)
}

func (r *SqliteGroupRepo) getOne(ctx context.Context, q string, arg any) (*domain.Group, error) {
	var g domain.Group
	if err := r.db.QueryRowContext(ctx, q, arg).Scan(&g.ID, &g.Title, &g.Slug, &g.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, fmt.Errorf("db: get group: %w", err)
	}
	return &g, nil
}

func (r *SqliteGroupRepo) List(ctx context.Context) ([]*domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, slug, description FROM post_groups ORDER BY title, id`)
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

type SqlitePostRepo struct {
	db *sql.DB
}

var _ ports.PostRepository = (*SqlitePostRepo)(nil)

const sqlitePostSelect = `
	SELECT p.id, p.text, p.pub_date, p.image,
	       u.id, u.username, u.created_at,
	       g.id, g.title, g.slug, g.description
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN post_groups g ON g.id = p.group_id
`

func (r *SqlitePostRepo) Save(ctx context.Context, post *domain.Post) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (text, pub_date, author_id, group_id, image) VALUES (?, ?, ?, ?, ?)`,
		post.Text, toNanos(post.PubDate), post.AuthorID, post.GroupID, post.Image)
	if err != nil {
		return fmt.Errorf("db: save post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	post.ID = id
	return nil
}

func (r *SqlitePostRepo) FindByID(ctx context.Context, id int64) (*domain.Post, error) {
	post, err := scanSqlitePost(r.db.QueryRowContext(ctx, sqlitePostSelect+` WHERE p.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("db: find post: %w", err)
	}
	return post, nil
}

func (r *SqlitePostRepo) Update(ctx context.Context, post *domain.Post) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET text = ?, group_id = ?, image = ? WHERE id = ?`,
		post.Text, post.GroupID, post.Image, post.ID)
	if err != nil {
		return fmt.Errorf("db: update post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

func (r *SqlitePostRepo) Count(ctx context.Context, filter ports.PostFilter) (int, error) {
	where, args := sqlitePostWhere(filter)

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db: count posts: %w", err)
	}
	return n, nil
}

func (r *SqlitePostRepo) List(ctx context.Context, filter ports.PostFilter, limit, offset int) ([]*domain.Post, error) {
	where, args := sqlitePostWhere(filter)
	args = append(args, limit, offset)

	q := sqlitePostSelect + where + ` ORDER BY p.pub_date DESC, p.id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db: list posts: %w", err)
	}
	defer rows.Close()

	var posts []*domain.Post
	for rows.Next() {
		post, err := scanSqlitePost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// sqlitePostWhere : pas de tableau natif, on déplie AuthorIDs en IN (?, ?, ...).
func sqlitePostWhere(filter ports.PostFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.GroupID != nil {
		conds = append(conds, "p.group_id = ?")
		args = append(args, *filter.GroupID)
	}
	if filter.AuthorIDs != nil {
		if len(filter.AuthorIDs) == 0 {
			conds = append(conds, "0")
		} else {
			marks := strings.TrimSuffix(strings.Repeat("?,", len(filter.AuthorIDs)), ",")
			conds = append(conds, "p.author_id IN ("+marks+")")
			for _, id := range filter.AuthorIDs {
				args = append(args, id)
			}
		}
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSqlitePost(row rowScanner) (*domain.Post, error) {
	var (
		p                   domain.Post
		u                   domain.User
		pubDate, userDate   int64
		groupID             sql.NullInt64
		title, slug, gdescr sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.Text, &pubDate, &p.Image,
		&u.ID, &u.Username, &userDate,
		&groupID, &title, &slug, &gdescr,
	)
	if err != nil {
		return nil, err
	}

	p.PubDate = fromNanos(pubDate)
	u.CreatedAt = fromNanos(userDate)
	p.AuthorID = u.ID
	p.Author = &u
	if groupID.Valid {
		id := groupID.Int64
		p.GroupID = &id
		p.Group = &domain.Group{ID: id, Title: title.String, Slug: slug.String, Description: gdescr.String}
	}
	return &p, nil
}

// --- COMMENTS ---

type SqliteCommentRepo struct {
	db *sql.DB
}

var _ ports.CommentRepository = (*SqliteCommentRepo)(nil)

func (r *SqliteCommentRepo) Save(ctx context.Context, c *domain.Comment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (post_id, author_id, text, created) VALUES (?, ?, ?, ?)`,
		c.PostID, c.AuthorID, c.Text, toNanos(c.Created))
	if err != nil {
		return fmt.Errorf("db: save comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *SqliteCommentRepo) ListByPost(ctx context.Context, postID int64) ([]*domain.Comment, error) {
	q := `
		SELECT c.id, c.post_id, c.text, c.created, u.id, u.username, u.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = ?
		ORDER BY c.created DESC, c.id DESC
	`
	rows, err := r.db.QueryContext(ctx, q, postID)
	if err != nil {
		return nil, fmt.Errorf("db: list comments: %w", err)
	}
	defer rows.Close()

	var comments []*domain.Comment
	for rows.Next() {
		var (
			c                 domain.Comment
			u                 domain.User
			created, userDate int64
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.Text, &created, &u.ID, &u.Username, &userDate); err != nil {
			return nil, err
		}
		c.Created = fromNanos(created)
		u.CreatedAt = fromNanos(userDate)
		c.AuthorID = u.ID
		c.Author = &u
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// --- FOLLOWS ---

type SqliteFollowRepo struct {
	db *sql.DB
}

var _ ports.FollowRepository = (*SqliteFollowRepo)(nil)

func (r *SqliteFollowRepo) Create(ctx context.Context, f *domain.Follow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO follows (user_id, author_id, created_at) VALUES (?, ?, ?)`,
		f.UserID, f.AuthorID, toNanos(f.CreatedAt))
	if err != nil {
		// modernc ne type pas ses erreurs de contrainte : on lit le message
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrAlreadyFollowing
		}
		return fmt.Errorf("db: create follow: %w", err)
	}
	return nil
}

func (r *SqliteFollowRepo) Delete(ctx context.Context, userID, authorID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM follows WHERE user_id = ? AND author_id = ?`, userID, authorID)
	if err != nil {
		return fmt.Errorf("db: delete follow: %w", err)
	}
	return nil
}

func (r *SqliteFollowRepo) Exists(ctx context.Context, userID, authorID int64) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM follows WHERE user_id = ? AND author_id = ?)`
	if err := r.db.QueryRowContext(ctx, q, userID, authorID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db: follow exists: %w", err)
	}
	return exists, nil
}

func (r *SqliteFollowRepo) ListAuthorIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT author_id FROM follows WHERE user_id = ? ORDER BY author_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("db: list followed: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
