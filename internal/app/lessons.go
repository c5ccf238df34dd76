package app

import (
	"context"
	"strings"
	"time"

	"tutor-points-service/internal/domain"
)

// NewLesson is a provider's lesson draft.
type NewLesson struct {
	Title     string
	Level     domain.Level
	Category  string
	Published bool
}

// NewQuestion is one question of a quiz draft.
type NewQuestion struct {
	Prompt        string
	Points        int
	CorrectAnswer string
}

// NewQuiz is a quiz draft attached to a lesson.
type NewQuiz struct {
	Title        string
	PassingScore int
	MaxAttempts  int
	PointsReward int64
	Questions    []NewQuestion
}

const DefaultMaxAttempts = 3

// LessonService manages provider content and learner ratings.
type LessonService struct {
	store Store
	now   func() time.Time
}

func NewLessonService(d Deps) *LessonService {
	d = d.withDefaults()
	return &LessonService{store: d.Store, now: d.Now}
}

func (s *LessonService) CreateLesson(ctx context.Context, actorID int64, in NewLesson) (domain.Lesson, error) {
	const op = "lessons.CreateLesson"
	if strings.TrimSpace(in.Title) == "" {
		return domain.Lesson{}, domain.Invalid(op, "title is required")
	}
	level, ok := domain.ParseLevel(string(in.Level))
	if !ok {
		return domain.Lesson{}, domain.Invalid(op, "unknown level %q", in.Level)
	}
	var l domain.Lesson
	err := s.store.InTx(ctx, func(tx Tx) error {
		actor, err := tx.GetAccount(ctx, actorID)
		if err != nil {
			return err
		}
		if actor.Role != domain.RoleProvider {
			return domain.Fail(domain.KindForbidden, op, domain.ErrForbidden)
		}
		l = domain.Lesson{
			ProviderID: actorID,
			Title:      strings.TrimSpace(in.Title),
			Level:      level,
			Category:   strings.TrimSpace(in.Category),
			Published:  in.Published,
			CreatedAt:  s.now(),
		}
		if err := tx.InsertLesson(ctx, &l); err != nil {
			return domain.Internal(op, err)
		}
		return nil
	})
	return l, err
}

// CreateQuiz attaches a quiz to a lesson owned by the actor.
func (s *LessonService) CreateQuiz(ctx context.Context, actorID, lessonID int64, in NewQuiz) (domain.Quiz, error) {
	const op = "lessons.CreateQuiz"
	if in.MaxAttempts == 0 {
		in.MaxAttempts = DefaultMaxAttempts
	}
	switch {
	case strings.TrimSpace(in.Title) == "":
		return domain.Quiz{}, domain.Invalid(op, "title is required")
	case in.PassingScore < 0 || in.PassingScore > 100:
		return domain.Quiz{}, domain.Invalid(op, "passing score must be between 0 and 100")
	case in.MaxAttempts < 0:
		return domain.Quiz{}, domain.Invalid(op, "max attempts must be positive")
	case in.PointsReward < 0:
		return domain.Quiz{}, domain.Invalid(op, "points reward must not be negative")
	case len(in.Questions) == 0:
		return domain.Quiz{}, domain.Invalid(op, "a quiz needs at least one question")
	}

	q := domain.Quiz{
		LessonID:     lessonID,
		Title:        strings.TrimSpace(in.Title),
		PassingScore: in.PassingScore,
		MaxAttempts:  in.MaxAttempts,
		PointsReward: in.PointsReward,
	}
	for i, nq := range in.Questions {
		key := domain.NormalizeAnswerKey(nq.CorrectAnswer)
		if len(key) != 1 || key[0] < 'A' || key[0] > 'Z' {
			return domain.Quiz{}, domain.Invalid(op, "question %d: answer key must be a single letter", i+1)
		}
		if nq.Points < 0 {
			return domain.Quiz{}, domain.Invalid(op, "question %d: points must not be negative", i+1)
		}
		q.Questions = append(q.Questions, domain.Question{
			Prompt:        strings.TrimSpace(nq.Prompt),
			Points:        nq.Points,
			CorrectAnswer: key,
			Position:      i + 1,
		})
	}

	err := s.store.InTx(ctx, func(tx Tx) error {
		lesson, err := tx.GetLesson(ctx, lessonID)
		if err != nil {
			return err
		}
		if lesson.ProviderID != actorID {
			return domain.Fail(domain.KindForbidden, op, domain.ErrForbidden)
		}
		if err := tx.InsertQuiz(ctx, &q); err != nil {
			return domain.Internal(op, err)
		}
		return nil
	})
	return q, err
}

// Rate stores the account's 1..5 star rating and returns the refreshed lesson.
func (s *LessonService) Rate(ctx context.Context, accountID, lessonID int64, stars int) (domain.Lesson, error) {
	const op = "lessons.Rate"
	if stars < 1 || stars > 5 {
		return domain.Lesson{}, domain.Invalid(op, "rating must be between 1 and 5")
	}
	var l domain.Lesson
	err := s.store.InTx(ctx, func(tx Tx) error {
		lesson, err := tx.GetLesson(ctx, lessonID)
		if err != nil {
			return err
		}
		if lesson.ProviderID == accountID {
			return domain.Fail(domain.KindForbidden, op, domain.ErrForbidden)
		}
		l, err = tx.UpsertLessonRating(ctx, domain.LessonRating{AccountID: accountID, LessonID: lessonID, Stars: stars})
		if err != nil {
			return domain.Internal(op, err)
		}
		return nil
	})
	return l, err
}

func (s *LessonService) Get(ctx context.Context, lessonID int64) (domain.LessonView, error) {
	var v domain.LessonView
	err := s.store.InTx(ctx, func(tx Tx) error {
		l, err := tx.GetLesson(ctx, lessonID)
		if err != nil {
			return err
		}
		v = l.View()
		return nil
	})
	return v, err
}

// List returns published lessons, optionally of one level.
func (s *LessonService) List(ctx context.Context, level domain.Level) ([]domain.LessonView, error) {
	out := []domain.LessonView{}
	err := s.store.InTx(ctx, func(tx Tx) error {
		lessons, err := tx.ListLessons(ctx)
		if err != nil {
			return err
		}
		for _, l := range lessons {
			if !l.Published || (level != "" && l.Level != level) {
				continue
			}
			out = append(out, l.View())
		}
		return nil
	})
	return out, err
}
