package app

import (
	"context"
	"time"

	"tutor-points-service/internal/domain"
)

// Attempt is one answer set submitted for grading.
type Attempt struct {
	QuizID           int64
	Answers          domain.Answers
	TimeTakenSeconds int
}

// GradeOutcome reports a graded attempt back to the learner.
type GradeOutcome struct {
	Submission     domain.Submission `json:"submission"`
	EarnedPoints   int               `json:"correct_points"`
	PossiblePoints int               `json:"total_points"`
	Balance        int64             `json:"total_points_balance"`
	LessonComplete bool              `json:"lesson_completed"`
	// Achievements is nil when evaluation failed; grading still stands.
	Achievements *Evaluation `json:"achievements,omitempty"`
}

// GradingService scores quiz attempts and pays the reward.
type GradingService struct {
	store   Store
	quizzes QuizRepository
	ledger  Ledger
	fx      *effects
	now     func() time.Time
}

func NewGradingService(d Deps, fx *effects) *GradingService {
	d = d.withDefaults()
	return &GradingService{
		store:   d.Store,
		quizzes: d.Quizzes,
		ledger:  NewLedger(d.Now),
		fx:      fx,
		now:     d.Now,
	}
}

// Submit grades an attempt. The submission, the reward and the progress update
// commit together; nothing is written when the attempt limit is already reached.
func (s *GradingService) Submit(ctx context.Context, accountID int64, at Attempt) (GradeOutcome, error) {
	const op = "grading.Submit"
	if at.TimeTakenSeconds < 0 {
		return GradeOutcome{}, domain.Invalid(op, "time taken must not be negative")
	}
	quiz, err := s.quizzes.GetQuiz(ctx, at.QuizID)
	if err != nil {
		return GradeOutcome{}, err
	}
	known := make(map[int64]struct{}, len(quiz.Questions))
	for _, q := range quiz.Questions {
		known[q.ID] = struct{}{}
	}
	for qid := range at.Answers {
		if _, ok := known[qid]; !ok {
			return GradeOutcome{}, domain.Invalid(op, "question %d does not belong to quiz %d", qid, quiz.ID)
		}
	}

	graded := domain.Grade(quiz, at.Answers)
	now := s.now()
	var out GradeOutcome
	err = s.store.InTx(ctx, func(tx Tx) error {
		// The account lock serializes attempts by the same learner.
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		prior, err := tx.CountSubmissions(ctx, accountID, quiz.ID)
		if err != nil {
			return domain.Internal(op, err)
		}
		if prior >= quiz.MaxAttempts {
			return domain.Fail(domain.KindLimitExceeded, op, domain.ErrMaxAttemptsExceeded)
		}

		sub := domain.Submission{
			AccountID:        accountID,
			QuizID:           quiz.ID,
			Answers:          at.Answers,
			Score:            graded.Score,
			Passed:           graded.Passed,
			PointsEarned:     graded.PointsEarned,
			AttemptNumber:    prior + 1,
			TimeTakenSeconds: at.TimeTakenSeconds,
			CreatedAt:        now,
		}
		if err := tx.InsertSubmission(ctx, &sub); err != nil {
			return domain.Internal(op, err)
		}

		balance := acc.Balance
		if graded.PointsEarned > 0 {
			balance, err = s.ledger.Credit(ctx, tx, accountID, graded.PointsEarned, Posting{
				Reason:  domain.ReasonQuizReward,
				RefType: "submission",
				RefID:   sub.ID,
			})
			if err != nil {
				return err
			}
		}

		completed, err := s.recordProgress(ctx, tx, accountID, quiz.LessonID, graded, now)
		if err != nil {
			return err
		}
		out = GradeOutcome{
			Submission:     sub,
			EarnedPoints:   graded.EarnedPoints,
			PossiblePoints: graded.PossiblePoints,
			Balance:        balance,
			LessonComplete: completed,
		}
		return nil
	})
	if err != nil {
		return GradeOutcome{}, err
	}

	if out.Submission.PointsEarned > 0 {
		s.fx.publish(accountID, out.Balance, string(domain.ReasonQuizReward))
	}
	out.Achievements = s.fx.evaluate(ctx, op, accountID)
	return out, nil
}

// recordProgress bumps the attempt counter and best score, and completes the
// lesson on the first passing attempt. It reports whether this attempt completed it.
func (s *GradingService) recordProgress(ctx context.Context, tx Tx, accountID, lessonID int64, graded domain.GradeResult, now time.Time) (bool, error) {
	const op = "grading.recordProgress"
	if _, err := tx.InsertProgressIfAbsent(ctx, domain.Progress{
		AccountID: accountID,
		LessonID:  lessonID,
		Status:    domain.ProgressNotStarted,
	}); err != nil {
		return false, domain.Internal(op, err)
	}
	p, err := tx.LockProgress(ctx, accountID, lessonID)
	if err != nil {
		return false, err
	}

	p.QuizAttempts++
	if graded.Score > p.BestScore {
		p.BestScore = graded.Score
	}
	if p.StartedAt == nil {
		p.StartedAt = &now
	}
	p.LastAccessedAt = &now

	completedNow := false
	if graded.Passed && p.Status != domain.ProgressCompleted {
		p.Status = domain.ProgressCompleted
		p.CompletedAt = &now
		completedNow = true
	} else {
		p.Status = p.Status.Advance(domain.ProgressInProgress)
	}
	if err := tx.UpdateProgress(ctx, p); err != nil {
		return false, domain.Internal(op, err)
	}
	if completedNow {
		if err := tx.IncrementLessonCompletions(ctx, lessonID); err != nil {
			return false, domain.Internal(op, err)
		}
	}
	return completedNow, nil
}
