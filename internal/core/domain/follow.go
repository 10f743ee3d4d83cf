package domain

import "time"

// Follow est une arête dirigée : UserID suit AuthorID.
// La paire (UserID, AuthorID) est unique côté stockage.
type Follow struct {
	UserID    int64
	AuthorID  int64
	CreatedAt time.Time
}

func NewFollow(user, author *User) (*Follow, error) {
	if user.Is(author) {
		return nil, ErrSelfFollow
	}
	return &Follow{
		UserID:    user.ID,
		AuthorID:  author.ID,
		CreatedAt: time.Now().UTC(),
	}, nil
}
