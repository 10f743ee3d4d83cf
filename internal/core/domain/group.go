package domain

const GroupTitleMaxLen = 200

type Group struct {
	ID          int64
	Title       string
	Slug        string
	Description string
}

func (g *Group) String() string {
	return g.Title
}
