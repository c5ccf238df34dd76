package app

import (
	"context"
	"time"

	"tutor-points-service/internal/domain"
)

// ProgressService records lesson access. Completion is owned by grading.
type ProgressService struct {
	store Store
	now   func() time.Time
}

func NewProgressService(d Deps) *ProgressService {
	d = d.withDefaults()
	return &ProgressService{store: d.Store, now: d.Now}
}

// Touch records an access: the first one starts the lesson, every one counts
// as a view and refreshes the last-access time.
func (s *ProgressService) Touch(ctx context.Context, accountID, lessonID int64) (domain.Progress, error) {
	const op = "progress.Touch"
	var p domain.Progress
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			return err
		}
		if _, err := tx.GetLesson(ctx, lessonID); err != nil {
			return err
		}
		if _, err := tx.InsertProgressIfAbsent(ctx, domain.Progress{
			AccountID: accountID,
			LessonID:  lessonID,
			Status:    domain.ProgressNotStarted,
		}); err != nil {
			return domain.Internal(op, err)
		}
		var err error
		p, err = tx.LockProgress(ctx, accountID, lessonID)
		if err != nil {
			return err
		}
		now := s.now()
		p.Status = p.Status.Advance(domain.ProgressInProgress)
		if p.StartedAt == nil {
			p.StartedAt = &now
		}
		p.LastAccessedAt = &now
		if err := tx.UpdateProgress(ctx, p); err != nil {
			return domain.Internal(op, err)
		}
		if err := tx.IncrementLessonViews(ctx, lessonID); err != nil {
			return domain.Internal(op, err)
		}
		return nil
	})
	return p, err
}

func (s *ProgressService) Get(ctx context.Context, accountID, lessonID int64) (domain.Progress, error) {
	var p domain.Progress
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		p, err = tx.LockProgress(ctx, accountID, lessonID)
		return err
	})
	return p, err
}

func (s *ProgressService) List(ctx context.Context, accountID int64) ([]domain.Progress, error) {
	var out []domain.Progress
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListProgress(ctx, accountID)
		return err
	})
	return out, err
}
