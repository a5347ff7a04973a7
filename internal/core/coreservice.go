package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jo-hoe/photobox/internal/backend/credentials"
	"github.com/jo-hoe/photobox/internal/backend/database"
)

var (
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotAllowed is returned when a user acts on a photo they do not own.
	ErrNotAllowed = errors.New("not allowed")
)

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	hasher          credentials.Hasher
}

func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}

	hasher, err := credentials.NewBcryptHasher(config.PasswordHashCost)
	if err != nil {
		_ = databaseService.Close()
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	return &CoreService{
		config:          config,
		databaseService: databaseService,
		hasher:          hasher,
	}, nil
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

// Register creates a user. It fails with database.ErrDuplicateUsername when the
// name is taken and with credentials.ErrPasswordTooLong for oversized passwords.
func (service *CoreService) Register(ctx context.Context, username string, password string) error {
	hash, err := service.hasher.Hash(password)
	if err != nil {
		return err
	}

	userID, err := service.databaseService.InsertUser(ctx, username, hash)
	if err != nil {
		return fmt.Errorf("failed to register %q: %w", username, err)
	}
	slog.Info("user registered", "user_id", userID, "username", username)
	return nil
}

// Authenticate returns the id of the user whose password matches.
func (service *CoreService) Authenticate(ctx context.Context, username string, password string) (int64, error) {
	user, err := service.databaseService.FindUserByUsername(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("failed to look up user %q: %w", username, err)
	}
	if user == nil || !service.hasher.Verify(user.Password, password) {
		return 0, ErrInvalidCredentials
	}
	return user.ID, nil
}

func (service *CoreService) AddPhoto(ctx context.Context, userID int64, image []byte) (int64, error) {
	photoID, err := service.databaseService.InsertPhoto(ctx, userID, image)
	if err != nil {
		return 0, fmt.Errorf("failed to store photo for user %d: %w", userID, err)
	}
	slog.Info("photo uploaded", "user_id", userID, "photo_id", photoID, "size_bytes", len(image))
	return photoID, nil
}

// Gallery lists the user's own photos, newest first.
func (service *CoreService) Gallery(ctx context.Context, userID int64) ([]*database.Photo, error) {
	return service.databaseService.FindPhotosByOwner(ctx, userID)
}

// Feed lists every public photo with its uploader, newest first.
func (service *CoreService) Feed(ctx context.Context) ([]*database.PublicPhoto, error) {
	return service.databaseService.FindPublicPhotos(ctx)
}

// TogglePhotoVisibility flips a photo between public and private and returns the new value.
func (service *CoreService) TogglePhotoVisibility(ctx context.Context, userID int64, photoID int64) (database.Visibility, error) {
	if err := service.requireOwner(ctx, userID, photoID); err != nil {
		return "", err
	}

	current, found, err := service.databaseService.FindPhotoVisibility(ctx, photoID)
	if err != nil {
		return "", fmt.Errorf("failed to read visibility of photo %d: %w", photoID, err)
	}
	if !found {
		return "", ErrNotAllowed
	}

	next := current.Toggle()
	if err := service.databaseService.SetPhotoVisibility(ctx, photoID, next); err != nil {
		return "", fmt.Errorf("failed to update visibility of photo %d: %w", photoID, err)
	}
	slog.Info("photo visibility changed", "user_id", userID, "photo_id", photoID, "is_public", string(next))
	return next, nil
}

func (service *CoreService) DeletePhoto(ctx context.Context, userID int64, photoID int64) error {
	if err := service.requireOwner(ctx, userID, photoID); err != nil {
		return err
	}

	if err := service.databaseService.DeletePhoto(ctx, photoID); err != nil {
		return fmt.Errorf("failed to delete photo %d: %w", photoID, err)
	}
	slog.Info("photo deleted", "user_id", userID, "photo_id", photoID)
	return nil
}

// IsHealthy reports whether the database answers.
func (service *CoreService) IsHealthy() bool {
	return service.databaseService.DoesDatabaseExist()
}

func (service *CoreService) Close() error {
	return service.databaseService.Close()
}
