package core

import (
	"context"
	"fmt"
	"log/slog"
)

// Authorize allows an action on a photo only for its owner. A photo that does
// not exist has no owner, so the action is denied.
func (service *CoreService) Authorize(ctx context.Context, userID int64, photoID int64) (bool, error) {
	ownerID, found, err := service.databaseService.FindPhotoOwner(ctx, photoID)
	if err != nil {
		return false, fmt.Errorf("failed to look up owner of photo %d: %w", photoID, err)
	}
	return found && ownerID == userID, nil
}

func (service *CoreService) requireOwner(ctx context.Context, userID int64, photoID int64) error {
	allowed, err := service.Authorize(ctx, userID, photoID)
	if err != nil {
		return err
	}
	if !allowed {
		slog.Warn("denied action on foreign or missing photo", "user_id", userID, "photo_id", photoID)
		return ErrNotAllowed
	}
	return nil
}
