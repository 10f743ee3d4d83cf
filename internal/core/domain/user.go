package domain

import "time"

// User est la projection locale d'un compte géré par le service d'identité.
type User struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}

// Is compare deux utilisateurs par ID. Un viewer nil (anonyme) ne correspond à personne.
func (u *User) Is(other *User) bool {
	if u == nil || other == nil {
		return false
	}
	return u.ID == other.ID
}
