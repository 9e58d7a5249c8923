package services

import (
	"context"

	"activity-logs/internal/models"
)

// ArtifactStore persists generated log payloads keyed by date.
// Write must be all-or-nothing: a concurrent Read returns either the
// previous complete payload or the new one, never a partial write.
// Read returns ErrArtifactNotFound when nothing was written for the date.
type ArtifactStore interface {
	Write(ctx context.Context, date string, payload []byte) error
	Read(ctx context.Context, date string) (*models.Artifact, error)
	// Delete removes the artifact for date; deleting a missing artifact is not an error
	Delete(ctx context.Context, date string) error
	// List returns metadata (no payload) for every stored artifact
	List(ctx context.Context) ([]models.Artifact, error)
}
