package domain

import (
	"strings"
	"time"
)

type Comment struct {
	ID       int64
	PostID   int64
	AuthorID int64
	Author   *User
	Text     string
	Created  time.Time
}

func NewComment(post *Post, author *User, text string) *Comment {
	return &Comment{
		PostID:   post.ID,
		AuthorID: author.ID,
		Author:   author,
		Text:     strings.TrimSpace(text),
		Created:  time.Now().UTC(),
	}
}
