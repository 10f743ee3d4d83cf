package services_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arhipvp/hw05-final/internal/adapters/secondary/repository"
	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/services"
)

// fakeMedia garde les fichiers en mémoire.
type fakeMedia struct {
	mu      sync.Mutex
	files   map[string][]byte
	seq     int
	saveErr error
}

func (m *fakeMedia) Save(_ context.Context, dir string, u *domain.Upload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.seq++
	p := fmt.Sprintf("%s/%d.%s", dir, m.seq, u.Format)
	m.files[p] = u.Data
	return p, nil
}

func (m *fakeMedia) Delete(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, p)
	return nil
}

// recorder note les sujets publiés ; err simule un broker indisponible.
type recorder struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (r *recorder) add(subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, subject)
	return r.err
}

func (r *recorder) PublishPostCreated(context.Context, *domain.Post) error { return r.add("post.created") }
func (r *recorder) PublishPostUpdated(context.Context, *domain.Post) error { return r.add("post.updated") }
func (r *recorder) PublishCommentCreated(context.Context, *domain.Comment) error {
	return r.add("comment.created")
}
func (r *recorder) PublishFollowCreated(context.Context, *domain.Follow) error {
	return r.add("follow.created")
}
func (r *recorder) PublishFollowDeleted(context.Context, int64, int64) error {
	return r.add("follow.deleted")
}

type fixture struct {
	store    *repository.SQLiteStore
	media    *fakeMedia
	events   *recorder
	posts    *services.PostService
	comments *services.CommentService
	follows  *services.FollowService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := repository.NewSQLiteStore(db)
	m := &fakeMedia{files: map[string][]byte{}}
	ev := &recorder{}
	return &fixture{
		store:    s,
		media:    m,
		events:   ev,
		posts:    services.NewPostService(s.Posts, s.Groups, s.Users, s.Follows, s.Comments, m, ev, 10),
		comments: services.NewCommentService(s.Posts, s.Comments, ev),
		follows:  services.NewFollowService(s.Follows, s.Users, s.Posts, ev, 10),
	}
}

func (f *fixture) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name}
	require.NoError(t, f.store.Users.Save(context.Background(), u))
	return u
}

func (f *fixture) group(t *testing.T, slug string) *domain.Group {
	t.Helper()
	g := &domain.Group{Title: slug, Slug: slug}
	require.NoError(t, f.store.Groups.Save(context.Background(), g))
	return g
}

func pngUpload(t *testing.T) *domain.Upload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	return &domain.Upload{Filename: "x.png", Data: buf.Bytes()}
}
