package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// dialect captures what differs between the supported SQL engines.
type dialect struct {
	name              string
	schema            []string
	rebind            func(query string) string
	isUniqueViolation func(err error) bool
}

// SQLDatabase implements DatabaseService on top of database/sql.
type SQLDatabase struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func (s *SQLDatabase) CreateDatabase() (*sql.DB, error) {
	for _, statement := range s.dialect.schema {
		if _, err := s.db.Exec(statement); err != nil {
			return nil, fmt.Errorf("failed to create %s schema: %w", s.dialect.name, err)
		}
	}

	return s.db, nil
}

func (s *SQLDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLDatabase) DoesDatabaseExist() bool {
	err := s.db.Ping()
	return err == nil
}

func (s *SQLDatabase) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		"SELECT id, username, password FROM users WHERE username = ?"), username)

	var user User
	if err := row.Scan(&user.ID, &user.Username, &user.Password); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *SQLDatabase) InsertUser(ctx context.Context, username string, passwordHash string) (int64, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		"INSERT INTO users (username, password) VALUES (?, ?) RETURNING id"), username, passwordHash)

	var id int64
	if err := row.Scan(&id); err != nil {
		if s.dialect.isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateUsername, username)
		}
		return 0, err
	}
	return id, nil
}

func (s *SQLDatabase) InsertPhoto(ctx context.Context, userID int64, image []byte) (int64, error) {
	if image == nil {
		image = []byte{}
	}
	now := s.now().UTC()

	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`INSERT INTO photos (id, image, is_public, "date", "time") VALUES (?, ?, ?, ?, ?) RETURNING photo_id`),
		userID, image, string(VisibilityPrivate), now.Format(dateLayout), now.Format(timeLayout))

	var photoID int64
	if err := row.Scan(&photoID); err != nil {
		return 0, err
	}
	return photoID, nil
}

func (s *SQLDatabase) FindPhotosByOwner(ctx context.Context, userID int64) ([]*Photo, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT photo_id, id, image, is_public, "date", "time" FROM photos WHERE id = ? ORDER BY photo_id DESC`), userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	photos := []*Photo{}
	for rows.Next() {
		var photo Photo
		if err := rows.Scan(&photo.PhotoID, &photo.OwnerID, &photo.Image, &photo.IsPublic, &photo.Date, &photo.Time); err != nil {
			return nil, err
		}
		photos = append(photos, &photo)
	}
	return photos, rows.Err()
}

func (s *SQLDatabase) FindPublicPhotos(ctx context.Context) ([]*PublicPhoto, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT photos.photo_id, users.username, photos.image, photos."date", photos."time"
		FROM photos JOIN users ON photos.id = users.id
		WHERE photos.is_public = ?
		ORDER BY photos.photo_id DESC`), string(VisibilityPublic))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	photos := []*PublicPhoto{}
	for rows.Next() {
		var photo PublicPhoto
		if err := rows.Scan(&photo.PhotoID, &photo.Username, &photo.Image, &photo.Date, &photo.Time); err != nil {
			return nil, err
		}
		photos = append(photos, &photo)
	}
	return photos, rows.Err()
}

func (s *SQLDatabase) FindPhotoOwner(ctx context.Context, photoID int64) (int64, bool, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind("SELECT id FROM photos WHERE photo_id = ?"), photoID)

	var userID int64
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return userID, true, nil
}

func (s *SQLDatabase) FindPhotoVisibility(ctx context.Context, photoID int64) (Visibility, bool, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind("SELECT is_public FROM photos WHERE photo_id = ?"), photoID)

	var visibility Visibility
	if err := row.Scan(&visibility); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return visibility, true, nil
}

func (s *SQLDatabase) SetPhotoVisibility(ctx context.Context, photoID int64, visibility Visibility) error {
	if err := visibility.validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.dialect.rebind("UPDATE photos SET is_public = ? WHERE photo_id = ?"), string(visibility), photoID)
	return err
}

func (s *SQLDatabase) DeletePhoto(ctx context.Context, photoID int64) error {
	_, err := s.db.ExecContext(ctx, s.dialect.rebind("DELETE FROM photos WHERE photo_id = ?"), photoID)
	return err
}
