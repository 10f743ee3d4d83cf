package domain

import (
	"strings"
	"time"
)

const excerptLen = 15

type Post struct {
	ID      int64
	Text    string
	PubDate time.Time

	// L'auteur est fixé à la création et ne change plus jamais.
	AuthorID int64
	Author   *User

	// GroupID est nil si le post n'appartient à aucun groupe
	// (ou si le groupe a été supprimé : ON DELETE SET NULL).
	GroupID *int64
	Group   *Group

	// Image est un chemin relatif à MEDIA_ROOT ("posts/<uuid>.png"), vide si absente.
	Image string
}

// NewPost prépare un post pour l'insertion. L'ID est attribué par la base.
func NewPost(author *User, text string, groupID *int64, image string) *Post {
	return &Post{
		Text:     strings.TrimSpace(text),
		PubDate:  time.Now().UTC(),
		AuthorID: author.ID,
		Author:   author,
		GroupID:  groupID,
		Image:    image,
	}
}

// IsAuthoredBy indique si u peut modifier le post.
func (p *Post) IsAuthoredBy(u *User) bool {
	return u != nil && p.AuthorID == u.ID
}

// Apply modifie uniquement les champs éditables (texte, groupe, image).
func (p *Post) Apply(text string, groupID *int64, image string) {
	p.Text = strings.TrimSpace(text)
	p.GroupID = groupID
	p.Image = image
}

// Excerpt renvoie les 15 premiers caractères du texte.
func (p *Post) Excerpt() string {
	r := []rune(p.Text)
	if len(r) <= excerptLen {
		return p.Text
	}
	return string(r[:excerptLen])
}

func (p *Post) String() string {
	return p.Excerpt()
}
