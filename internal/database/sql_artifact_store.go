package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"activity-logs/internal/models"
	"activity-logs/internal/services"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLArtifactStore keeps generated logs in the log_artifacts table.
// Each write is a single-row upsert, so readers see the old or the new payload.
type SQLArtifactStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLArtifactStore creates an artifact store on db
func NewSQLArtifactStore(db *gorm.DB) *SQLArtifactStore {
	return &SQLArtifactStore{db: db, now: time.Now}
}

func (s *SQLArtifactStore) Write(ctx context.Context, date string, payload []byte) error {
	if payload == nil {
		// An empty log is valid; the column rejects NULL
		payload = []byte{}
	}
	record := ArtifactRecord{Date: date, Payload: payload, WrittenAt: s.now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "written_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to store log: %w", err)
	}
	return nil
}

func (s *SQLArtifactStore) Read(ctx context.Context, date string) (*models.Artifact, error) {
	var record ArtifactRecord
	err := s.db.WithContext(ctx).Where("date = ?", date).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return &models.Artifact{Date: record.Date, Payload: record.Payload, WrittenAt: record.WrittenAt}, nil
}

func (s *SQLArtifactStore) Delete(ctx context.Context, date string) error {
	if err := s.db.WithContext(ctx).Delete(&ArtifactRecord{}, "date = ?", date).Error; err != nil {
		return fmt.Errorf("failed to delete log: %w", err)
	}
	return nil
}

func (s *SQLArtifactStore) List(ctx context.Context) ([]models.Artifact, error) {
	var records []ArtifactRecord
	err := s.db.WithContext(ctx).
		Select("date", "written_at").
		Order("date ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}

	list := make([]models.Artifact, len(records))
	for i, record := range records {
		list[i] = models.Artifact{Date: record.Date, WrittenAt: record.WrittenAt}
	}
	return list, nil
}
