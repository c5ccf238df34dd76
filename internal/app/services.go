package app

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tutor-points-service/internal/domain"
	"tutor-points-service/internal/logger"
)

// Deps wires the core services to their collaborators.
type Deps struct {
	Store   Store
	Quizzes QuizRepository
	Log     *logger.Logger
	Hub     *Hub
	Economy Economy
	Now     func() time.Time
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = systemClock
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Hub == nil {
		d.Hub = NewHub()
	}
	if d.Economy == (Economy{}) {
		d.Economy = DefaultEconomy()
	}
	if d.Quizzes == nil {
		d.Quizzes = quizzesFromStore{loader: NewStoreQuizLoader(d.Store)}
	}
	if d.BcryptCost == 0 {
		d.BcryptCost = bcrypt.DefaultCost
	}
	return d
}

// Services bundles every use case exposed to transports.
type Services struct {
	Accounts     *AccountService
	Bookings     *BookingService
	Grading      *GradingService
	Progress     *ProgressService
	Achievements *AchievementService
	Leaderboard  *LeaderboardService
	Lessons      *LessonService
	Classrooms   *ClassroomService
	Hub          *Hub
}

func New(d Deps) *Services {
	d = d.withDefaults()
	achievements := NewAchievementService(d)
	fx := &effects{hub: d.Hub, achievements: achievements, log: d.Log, now: d.Now}
	achievements.fx = fx
	return &Services{
		Accounts:     NewAccountService(d, fx),
		Bookings:     NewBookingService(d, fx),
		Grading:      NewGradingService(d, fx),
		Progress:     NewProgressService(d),
		Achievements: achievements,
		Leaderboard:  NewLeaderboardService(d),
		Lessons:      NewLessonService(d),
		Classrooms:   NewClassroomService(d),
		Hub:          d.Hub,
	}
}

type quizzesFromStore struct {
	loader QuizLoader
}

func (q quizzesFromStore) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	return q.loader.LoadQuiz(ctx, quizID)
}

// effects runs the post-commit side effects shared by point-moving services.
type effects struct {
	hub          *Hub
	achievements *AchievementService
	log          *logger.Logger
	now          func() time.Time
}

func (e *effects) publish(accountID, balance int64, reason string) {
	if e == nil {
		return
	}
	e.hub.Publish(BalanceChange{AccountID: accountID, Balance: balance, Reason: reason, At: e.now()})
}

// evaluate is best-effort: failures are logged and never undo the committed work.
func (e *effects) evaluate(ctx context.Context, op string, accountID int64) *Evaluation {
	if e == nil || e.achievements == nil {
		return nil
	}
	ev, err := e.achievements.Evaluate(ctx, accountID)
	if err != nil {
		e.log.Warn("achievement evaluation failed", "op", op, "account_id", accountID, "err", err)
		return nil
	}
	if len(ev.Badges) > 0 || len(ev.Rewards) > 0 {
		e.log.Info("achievements granted", "account_id", accountID, "badges", len(ev.Badges), "rewards", len(ev.Rewards))
	}
	return &ev
}
