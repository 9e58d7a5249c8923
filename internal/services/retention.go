package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionService periodically purges old terminal tasks and, optionally,
// old artifacts
type RetentionService struct {
	tasks             *TaskService
	store             ArtifactStore
	taskRetention     time.Duration
	artifactRetention time.Duration
	schedule          string
	cron              *cron.Cron
	now               func() time.Time

	mu      sync.Mutex
	running bool
}

// SweepResult reports what one sweep removed
type SweepResult struct {
	Tasks     int
	Artifacts int
}

// NewRetentionService creates a retention sweeper. A zero window disables
// purging for that kind of record.
func NewRetentionService(tasks *TaskService, store ArtifactStore, taskRetention, artifactRetention time.Duration, schedule string) (*RetentionService, error) {
	normalized, err := normalizeCron(schedule)
	if err != nil {
		return nil, err
	}

	return &RetentionService{
		tasks:             tasks,
		store:             store,
		taskRetention:     taskRetention,
		artifactRetention: artifactRetention,
		schedule:          normalized,
		cron:              cron.New(cron.WithSeconds()),
		now:               time.Now,
	}, nil
}

// Enabled reports whether any retention window is configured
func (s *RetentionService) Enabled() bool {
	return s.taskRetention > 0 || s.artifactRetention > 0
}

// Start schedules Sweep on the configured cron expression
func (s *RetentionService) Start() error {
	if !s.Enabled() {
		log.Println("Retention disabled, tasks and logs are kept for the process lifetime")
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		result, err := s.Sweep(context.Background())
		if err != nil {
			log.Printf("ERROR: Retention sweep failed: %v", err)
			return
		}
		if result.Tasks > 0 || result.Artifacts > 0 {
			log.Printf("Retention sweep removed %d tasks and %d logs", result.Tasks, result.Artifacts)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	s.cron.Start()
	log.Printf("Retention scheduler started with cron: %s", s.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *RetentionService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Retention scheduler stopped")
}

// Sweep runs one retention pass. Overlapping calls are skipped.
func (s *RetentionService) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return result, nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	now := s.now()

	if s.taskRetention > 0 {
		purged, err := s.tasks.Purge(ctx, now.Add(-s.taskRetention))
		result.Tasks = purged
		if err != nil {
			return result, fmt.Errorf("failed to purge tasks: %w", err)
		}
	}

	if s.artifactRetention > 0 {
		deleted, err := s.purgeArtifacts(ctx, now.Add(-s.artifactRetention))
		result.Artifacts = deleted
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// purgeArtifacts deletes artifacts written before cutoff unless a task still
// in the registry may hand them out. The decision is re-made per date while the
// registry is held, so a task submitted after List keeps its artifact.
func (s *RetentionService) purgeArtifacts(ctx context.Context, cutoff time.Time) (int, error) {
	artifacts, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list logs: %w", err)
	}

	deleted := 0
	for _, listed := range artifacts {
		if !listed.WrittenAt.Before(cutoff) {
			continue
		}

		date := listed.Date
		removed := false
		_, err := s.tasks.WhileDateIdle(date, func() error {
			current, err := s.store.Read(ctx, date)
			if errors.Is(err, ErrArtifactNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if !current.WrittenAt.Before(cutoff) {
				return nil // rewritten since List
			}
			if err := s.store.Delete(ctx, date); err != nil {
				return err
			}
			removed = true
			return nil
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete log for %s: %w", date, err)
		}
		if removed {
			deleted++
		}
	}
	return deleted, nil
}

// normalizeCron converts a 5-field expression to the 6-field form used with
// cron.WithSeconds by prepending a zero seconds field
func normalizeCron(cronExpr string) (string, error) {
	cronExpr = strings.TrimSpace(cronExpr)
	fields := strings.Fields(cronExpr)

	switch len(fields) {
	case 6:
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(cronExpr); err != nil {
			return "", fmt.Errorf("invalid cron expression: %w", err)
		}
		return cronExpr, nil
	case 5:
		if _, err := cron.ParseStandard(cronExpr); err != nil {
			return "", fmt.Errorf("invalid cron expression: %w", err)
		}
		return "0 " + cronExpr, nil
	default:
		return "", fmt.Errorf("invalid cron expression: expected 5 or 6 fields, got %d", len(fields))
	}
}
