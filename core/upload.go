package core

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/etl"
	"github.com/huangsam/skysched/internal/ingest"
	"github.com/huangsam/skysched/internal/logging"
	"github.com/huangsam/skysched/schema"
	"github.com/rs/zerolog"
)

// UploadResult describes one completed upload.
type UploadResult struct {
	ScheduleID int64                           `json:"schedule_id"`
	Name       string                          `json:"name"`
	Checksum   string                          `json:"checksum"`
	Duplicate  bool                            `json:"duplicate"`
	Summary    ingest.Summary                  `json:"summary"`
	Validation map[schema.ValidationStatus]int `json:"validation,omitempty"`
	Refresh    *schema.RefreshEvent            `json:"refresh,omitempty"`
	Elapsed    time.Duration                   `json:"elapsed"`
}

// Uploader runs the ingestion pipeline: normalize, store, validate, refresh analytics.
type Uploader struct {
	store     contract.Store
	populator *etl.Populator
	log       zerolog.Logger

	// SkipRefresh leaves analytics unpopulated; queries then take the slow path.
	SkipRefresh bool
}

// NewUploader returns an uploader writing through store and refreshing with populator.
func NewUploader(store contract.Store, populator *etl.Populator) *Uploader {
	return &Uploader{store: store, populator: populator, log: logging.With("upload")}
}

// Upload ingests one payload. A payload whose checksum is already stored is not
// processed again; the existing schedule id is returned with Duplicate set, and its
// analytics are rebuilt only when they are missing.
func (u *Uploader) Upload(ctx context.Context, in ingest.Input) (*UploadResult, error) {
	start := time.Now()

	// 1. Parse and validate without side effects
	sched, err := ingest.Normalize(in)
	if err != nil {
		return nil, err
	}
	result := &UploadResult{Name: sched.Name, Checksum: sched.Checksum, Summary: ingest.Summarize(sched)}
	log := u.log.With().Str("name", sched.Name).Str("checksum", sched.Checksum).Logger()

	// 2. Store the normalized graph; the store decides whether it is new
	id, created, err := u.store.StoreSchedule(ctx, sched)
	if err != nil {
		return nil, fmt.Errorf("failed to store schedule: %w", err)
	}
	result.ScheduleID = id
	if !created {
		result.Duplicate = true
		if err := u.repairDuplicate(ctx, result); err != nil {
			return nil, err
		}
		result.Elapsed = time.Since(start)
		log.Info().Int64("schedule_id", id).Bool("refreshed", result.Refresh != nil).Msg("schedule already uploaded")
		return result, nil
	}

	// 3. Soft validation report over the stored ids
	stored, err := u.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	report := ingest.ValidateSchedule(stored)
	if err := u.store.InsertValidationResults(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to store validation results: %w", err)
	}
	result.Validation = ingest.CountByStatus(report)

	// 4. Rebuild analytics, which also publishes the refresh event
	if !u.SkipRefresh && u.populator != nil {
		event, err := u.populator.Refresh(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh analytics: %w", err)
		}
		result.Refresh = &event
	}

	result.Elapsed = time.Since(start)
	log.Info().Int64("schedule_id", id).Int("blocks", result.Summary.Blocks).Dur("elapsed", result.Elapsed).Msg("schedule uploaded")
	return result, nil
}

// repairDuplicate refreshes a previously stored schedule whose analytics were never
// populated, for example because the refresh of the first upload failed.
func (u *Uploader) repairDuplicate(ctx context.Context, result *UploadResult) error {
	if u.SkipRefresh || u.populator == nil {
		return nil
	}
	summary, err := u.store.FetchScheduleSummary(ctx, result.ScheduleID)
	if err != nil {
		return fmt.Errorf("failed to read analytics summary: %w", err)
	}
	if summary != nil {
		return nil
	}
	event, err := u.populator.Refresh(ctx, result.ScheduleID)
	if err != nil {
		return fmt.Errorf("failed to refresh analytics: %w", err)
	}
	result.Refresh = &event
	return nil
}
