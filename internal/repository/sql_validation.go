package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/huangsam/skysched/schema"
)

var validationColumns = []string{
	"schedule_id", "block_id", "status", "issue_type", "category", "criticality",
	"field_name", "current_value", "expected_value", "description",
}

// InsertValidationResults writes all results in one transaction.
func (s *SQLStore) InsertValidationResults(ctx context.Context, results []schema.ValidationResult) error {
	if len(results) == 0 {
		return nil
	}
	return s.inTx(ctx, "insert_validation_results", func(ctx context.Context, tx *sql.Tx) error {
		seen := map[int64]bool{}
		for _, r := range results {
			if seen[r.ScheduleID] {
				continue
			}
			if err := s.requireSchedule(ctx, tx, r.ScheduleID); err != nil {
				return err
			}
			seen[r.ScheduleID] = true
		}
		return s.bulkInsert(ctx, tx, validationTable, validationColumns, len(results), func(i int) []any {
			r := results[i]
			return []any{
				r.ScheduleID, r.BlockID, string(r.Status), r.IssueType, string(r.Category), string(r.Criticality),
				r.FieldName, r.CurrentValue, r.ExpectedValue, r.Description,
			}
		})
	})
}

// FetchValidationResults returns the stored results of a schedule in insertion order.
func (s *SQLStore) FetchValidationResults(ctx context.Context, scheduleID int64) ([]schema.ValidationResult, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE schedule_id = ? ORDER BY id",
		strings.Join(validationColumns, ", "), validationTable)
	var out []schema.ValidationResult
	err := s.withRetry(ctx, "fetch_validation_results", func(ctx context.Context) error {
		out = []schema.ValidationResult{}
		rows, err := s.query(ctx, s.db, query, scheduleID)
		if err != nil {
			return fmt.Errorf("failed to query validation results: %w", err)
		}
		return scanAll(rows, func(r *sql.Rows) error {
			var v schema.ValidationResult
			var status, category, criticality string
			if err := r.Scan(&v.ScheduleID, &v.BlockID, &status, &v.IssueType, &category, &criticality,
				&v.FieldName, &v.CurrentValue, &v.ExpectedValue, &v.Description); err != nil {
				return err
			}
			v.Status = schema.ValidationStatus(status)
			v.Category = schema.ValidationCategory(category)
			v.Criticality = schema.Criticality(criticality)
			out = append(out, v)
			return nil
		})
	})
	return out, err
}
