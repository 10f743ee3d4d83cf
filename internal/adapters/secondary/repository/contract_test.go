package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/ports"
)

// repos est le jeu de repositories commun à tous les backends SQL.
type repos struct {
	users    ports.UserRepository
	groups   ports.GroupRepository
	posts    ports.PostRepository
	comments ports.CommentRepository
	follows  ports.FollowRepository
}

// runRepositoryContract vérifie le comportement attendu quel que soit le backend.
// suffix évite les collisions de username/slug sur une base partagée.
func runRepositoryContract(t *testing.T, r repos, suffix string) {
	ctx := context.Background()

	author := &domain.User{Username: "author" + suffix}
	reader := &domain.User{Username: "reader" + suffix}
	require.NoError(t, r.users.Save(ctx, author))
	require.NoError(t, r.users.Save(ctx, reader))
	require.NotZero(t, author.ID)

	group := &domain.Group{Title: "Cats", Slug: "cats" + suffix, Description: "All about cats"}
	other := &domain.Group{Title: "Dogs", Slug: "dogs" + suffix}
	require.NoError(t, r.groups.Save(ctx, group))
	require.NoError(t, r.groups.Save(ctx, other))

	t.Run("Users lookup", func(t *testing.T) {
		got, err := r.users.GetByUsername(ctx, author.Username)
		require.NoError(t, err)
		assert.Equal(t, author.ID, got.ID)

		_, err = r.users.GetByID(ctx, -1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = r.users.GetByUsername(ctx, "ghost"+suffix)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("Groups lookup", func(t *testing.T) {
		got, err := r.groups.GetBySlug(ctx, group.Slug)
		require.NoError(t, err)
		assert.Equal(t, *group, *got)

		_, err = r.groups.GetBySlug(ctx, "nope"+suffix)
		assert.ErrorIs(t, err, domain.ErrGroupNotFound)

		all, err := r.groups.List(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(all), 2)
	})

	// 13 posts de l'auteur (dont 3 dans "cats"), dates strictement croissantes
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	var created []*domain.Post
	for i := 0; i < 13; i++ {
		var gid *int64
		if i%5 == 0 {
			gid = &group.ID
		}
		p := domain.NewPost(author, fmt.Sprintf("post number %d", i), gid, "")
		p.PubDate = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, r.posts.Save(ctx, p))
		created = append(created, p)
	}
	newest := created[len(created)-1]

	t.Run("Posts are hydrated", func(t *testing.T) {
		got, err := r.posts.FindByID(ctx, created[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "post number 0", got.Text)
		require.NotNil(t, got.Author)
		assert.Equal(t, author.Username, got.Author.Username)
		require.NotNil(t, got.Group)
		assert.Equal(t, group.Slug, got.Group.Slug)
		assert.True(t, got.PubDate.Equal(created[0].PubDate))

		got, err = r.posts.FindByID(ctx, created[1].ID)
		require.NoError(t, err)
		assert.Nil(t, got.GroupID)
		assert.Nil(t, got.Group)

		_, err = r.posts.FindByID(ctx, -42)
		assert.ErrorIs(t, err, domain.ErrPostNotFound)
	})

	t.Run("Posts are listed newest first", func(t *testing.T) {
		filter := ports.PostFilter{AuthorIDs: []int64{author.ID}}
		n, err := r.posts.Count(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, 13, n)

		page1, err := r.posts.List(ctx, filter, 10, 0)
		require.NoError(t, err)
		require.Len(t, page1, 10)
		assert.Equal(t, newest.ID, page1[0].ID)

		page2, err := r.posts.List(ctx, filter, 10, 10)
		require.NoError(t, err)
		require.Len(t, page2, 3)
		assert.Equal(t, created[0].ID, page2[2].ID)
	})

	t.Run("Group filter", func(t *testing.T) {
		n, err := r.posts.Count(ctx, ports.PostFilter{GroupID: &group.ID})
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = r.posts.Count(ctx, ports.PostFilter{GroupID: &other.ID})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Update touches only editable fields", func(t *testing.T) {
		p, err := r.posts.FindByID(ctx, created[2].ID)
		require.NoError(t, err)
		p.Apply("edited", &other.ID, "posts/x.png")
		require.NoError(t, r.posts.Update(ctx, p))

		got, err := r.posts.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "edited", got.Text)
		assert.Equal(t, other.ID, *got.GroupID)
		assert.Equal(t, "posts/x.png", got.Image)
		assert.Equal(t, author.ID, got.AuthorID)
		assert.True(t, got.PubDate.Equal(created[2].PubDate))

		ghost := &domain.Post{ID: -7, Text: "x"}
		assert.ErrorIs(t, r.posts.Update(ctx, ghost), domain.ErrPostNotFound)
	})

	t.Run("Comments", func(t *testing.T) {
		c1 := domain.NewComment(newest, reader, "first")
		c1.Created = base
		c2 := domain.NewComment(newest, author, "second")
		c2.Created = base.Add(time.Second)
		require.NoError(t, r.comments.Save(ctx, c1))
		require.NoError(t, r.comments.Save(ctx, c2))

		list, err := r.comments.ListByPost(ctx, newest.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "second", list[0].Text)
		assert.Equal(t, reader.Username, list[1].Author.Username)

		empty, err := r.comments.ListByPost(ctx, created[0].ID)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Follows", func(t *testing.T) {
		runFollowContract(t, r.follows, reader.ID, author.ID)
	})
}

func runFollowContract(t *testing.T, follows ports.FollowRepository, userID, authorID int64) {
	ctx := context.Background()

	ok, err := follows.Exists(ctx, userID, authorID)
	require.NoError(t, err)
	assert.False(t, ok)

	f := &domain.Follow{UserID: userID, AuthorID: authorID, CreatedAt: time.Now().UTC()}
	require.NoError(t, follows.Create(ctx, f))
	assert.ErrorIs(t, follows.Create(ctx, f), domain.ErrAlreadyFollowing)

	ok, err = follows.Exists(ctx, userID, authorID)
	require.NoError(t, err)
	assert.True(t, ok)

	// L'arête est dirigée
	ok, err = follows.Exists(ctx, authorID, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := follows.ListAuthorIDs(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []int64{authorID}, ids)

	require.NoError(t, follows.Delete(ctx, userID, authorID))
	require.NoError(t, follows.Delete(ctx, userID, authorID))

	ids, err = follows.ListAuthorIDs(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
