package database

import (
	"context"
	"database/sql"
	"errors"
)

// ErrDuplicateUsername is returned by InsertUser when the username is already registered.
var ErrDuplicateUsername = errors.New("username already taken")

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// FindUserByUsername returns nil without error when no user matches.
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	InsertUser(ctx context.Context, username string, passwordHash string) (int64, error)

	InsertPhoto(ctx context.Context, userID int64, image []byte) (int64, error)
	// FindPhotosByOwner returns the owner's photos, newest (highest photo_id) first.
	FindPhotosByOwner(ctx context.Context, userID int64) ([]*Photo, error)
	// FindPublicPhotos returns all public photos joined with their uploader, newest first.
	FindPublicPhotos(ctx context.Context) ([]*PublicPhoto, error)
	FindPhotoOwner(ctx context.Context, photoID int64) (userID int64, found bool, err error)
	FindPhotoVisibility(ctx context.Context, photoID int64) (visibility Visibility, found bool, err error)
	SetPhotoVisibility(ctx context.Context, photoID int64, visibility Visibility) error
	DeletePhoto(ctx context.Context, photoID int64) error
}
