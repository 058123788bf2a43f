package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opendatahq/issues-backend/internal/models"
)

// Issue numbers are sequential per dataset, assigned inside the same
// transaction as the insert. Two concurrent creations can read the same
// max; the unique (dataset_id, number) index rejects the loser, which
// re-reads and retries with a short constant backoff.
const (
	numberRetries    = 4
	numberRetryDelay = 25 * time.Millisecond
)

func nextIssueNumber(tx *gorm.DB, datasetID uuid.UUID) (int, error) {
	var max int64
	err := tx.Model(&models.Issue{}).
		Where("dataset_id = ?", datasetID).
		Select("COALESCE(MAX(number), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return int(max) + 1, nil
}

// insertNumbered allocates the next number for issue.DatasetID and
// inserts the row. On sustained contention it fails with
// ErrNumberContention rather than a validation error.
func (s *IssueService) insertNumbered(ctx context.Context, issue *models.Issue) error {
	op := func() error {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := nextIssueNumber(tx, issue.DatasetID)
			if err != nil {
				return err
			}
			issue.Number = number
			return tx.Create(issue).Error
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, backoff.WithMaxRetries(
		backoff.NewConstantBackOff(numberRetryDelay), numberRetries))
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrNumberContention
	}
	return err
}
