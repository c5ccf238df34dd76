package app

import (
	"context"
	"time"

	"tutor-points-service/internal/domain"
)

// Store runs units of work against the shared data store. fn's writes are
// committed together or, when fn returns an error, not at all.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the repository surface available inside one unit of work.
// Lock* methods serialize concurrent writers on the same row until commit.
type Tx interface {
	AccountRepository
	LedgerRepository
	BookingRepository
	LessonRepository
	QuizStore
	ProgressRepository
	AchievementRepository
	ClassroomRepository
}

type AccountRepository interface {
	InsertAccount(ctx context.Context, a *domain.Account) error
	GetAccount(ctx context.Context, id int64) (domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)
	LockAccount(ctx context.Context, id int64) (domain.Account, error)
	// ListAccounts returns accounts with the given role in creation order; empty role lists all.
	ListAccounts(ctx context.Context, role domain.Role) ([]domain.Account, error)
	UpdateProfile(ctx context.Context, a domain.Account) error
}

type LedgerRepository interface {
	SetBalance(ctx context.Context, accountID, balance int64) error
	InsertLedgerEntry(ctx context.Context, e *domain.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, accountID int64) ([]domain.LedgerEntry, error)
}

// BookingFilter selects bookings by party; zero fields are ignored.
type BookingFilter struct {
	RequesterID int64
	ProviderID  int64
}

type BookingRepository interface {
	InsertBooking(ctx context.Context, b *domain.Booking) error
	LockBooking(ctx context.Context, id int64) (domain.Booking, error)
	UpdateBooking(ctx context.Context, b domain.Booking) error
	// ListBookings returns matches ordered by scheduled time, newest first.
	ListBookings(ctx context.Context, f BookingFilter) ([]domain.Booking, error)
}

type LessonRepository interface {
	InsertLesson(ctx context.Context, l *domain.Lesson) error
	GetLesson(ctx context.Context, id int64) (domain.Lesson, error)
	ListLessons(ctx context.Context) ([]domain.Lesson, error)
	IncrementLessonViews(ctx context.Context, id int64) error
	IncrementLessonCompletions(ctx context.Context, id int64) error
	// UpsertLessonRating stores the rating and refreshes the lesson's average.
	UpsertLessonRating(ctx context.Context, r domain.LessonRating) (domain.Lesson, error)
}

type QuizStore interface {
	InsertQuiz(ctx context.Context, q *domain.Quiz) error
	LoadQuiz(ctx context.Context, id int64) (domain.Quiz, error)
	CountSubmissions(ctx context.Context, accountID, quizID int64) (int, error)
	InsertSubmission(ctx context.Context, s *domain.Submission) error
	CountPerfectSubmissions(ctx context.Context, accountID int64) (int64, error)
}

type ProgressRepository interface {
	// InsertProgressIfAbsent is keyed by (account, lesson).
	InsertProgressIfAbsent(ctx context.Context, p domain.Progress) (created bool, err error)
	LockProgress(ctx context.Context, accountID, lessonID int64) (domain.Progress, error)
	UpdateProgress(ctx context.Context, p domain.Progress) error
	ListProgress(ctx context.Context, accountID int64) ([]domain.Progress, error)
	// CountCompletedLessons returns completed-progress counts keyed by account.
	CountCompletedLessons(ctx context.Context, accountIDs ...int64) (map[int64]int64, error)
}

type AchievementRepository interface {
	// InsertBadgeIfAbsent is keyed by badge name; created is false when it already existed.
	InsertBadgeIfAbsent(ctx context.Context, b *domain.Badge) (created bool, err error)
	ListBadges(ctx context.Context) ([]domain.Badge, error)
	ListAwardedBadges(ctx context.Context, accountID int64) ([]domain.AwardedBadge, error)
	// AwardBadgeIfAbsent is keyed by (account, badge).
	AwardBadgeIfAbsent(ctx context.Context, a domain.AwardedBadge) (created bool, err error)

	// InsertRewardIfAbsent is keyed by (account, type, value).
	InsertRewardIfAbsent(ctx context.Context, r *domain.Reward) (created bool, err error)
	RewardWithDescriptionExists(ctx context.Context, accountID int64, description string) (bool, error)
	LockReward(ctx context.Context, id int64) (domain.Reward, error)
	UpdateReward(ctx context.Context, r domain.Reward) error
	ListRewards(ctx context.Context, accountID int64) ([]domain.Reward, error)
}

type ClassroomRepository interface {
	InsertClassroom(ctx context.Context, c *domain.Classroom) error
	GetClassroom(ctx context.Context, id int64) (domain.Classroom, error)
	GetClassroomByCode(ctx context.Context, code string) (domain.Classroom, error)
	// InsertMembershipIfAbsent is keyed by (classroom, account).
	InsertMembershipIfAbsent(ctx context.Context, m domain.Membership) (created bool, err error)
	DeleteMembership(ctx context.Context, classroomID, accountID int64) (bool, error)
	ListMembers(ctx context.Context, classroomID int64) ([]domain.Membership, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
}

// QuizLoader fetches quiz content from a backing store on cache miss.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
}

// StoreQuizLoader reads quizzes through the transactional store.
type StoreQuizLoader struct {
	store Store
}

func NewStoreQuizLoader(store Store) *StoreQuizLoader {
	return &StoreQuizLoader{store: store}
}

func (l *StoreQuizLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := l.store.InTx(ctx, func(tx Tx) error {
		var err error
		quiz, err = tx.LoadQuiz(ctx, quizID)
		return err
	})
	return quiz, err
}

// Economy holds the tunable point prices.
type Economy struct {
	InitialGrant     int64
	BookingCost      int64
	BookingThreshold int64
	MeetingMinutes   int
}

// DefaultEconomy mirrors the production defaults.
func DefaultEconomy() Economy {
	return Economy{
		InitialGrant:     150,
		BookingCost:      100,
		BookingThreshold: 100,
		MeetingMinutes:   60,
	}
}

func systemClock() time.Time { return time.Now().UTC() }
