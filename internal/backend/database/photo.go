package database

import "fmt"

// Visibility is the stored value of photos.is_public.
type Visibility string

const (
	VisibilityPublic  Visibility = "yes"
	VisibilityPrivate Visibility = "no"
)

// Toggle flips public to private and vice versa.
func (v Visibility) Toggle() Visibility {
	if v == VisibilityPublic {
		return VisibilityPrivate
	}
	return VisibilityPublic
}

func (v Visibility) IsPublic() bool {
	return v == VisibilityPublic
}

func (v Visibility) validate() error {
	switch v {
	case VisibilityPublic, VisibilityPrivate:
		return nil
	}
	return fmt.Errorf("invalid visibility %q", string(v))
}

type User struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
	Password string `db:"password"` // bcrypt hash
}

type Photo struct {
	PhotoID  int64      `db:"photo_id"`
	OwnerID  int64      `db:"id"`
	Image    []byte     `db:"image"` // raw upload bytes
	IsPublic Visibility `db:"is_public"`
	Date     string     `db:"date"`
	Time     string     `db:"time"`
}

// PublicPhoto is a public photo joined with the username of its uploader.
type PublicPhoto struct {
	PhotoID  int64  `db:"photo_id"`
	Username string `db:"username"`
	Image    []byte `db:"image"`
	Date     string `db:"date"`
	Time     string `db:"time"`
}
