package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"tutor-points-service/internal/domain"
)

type accountRow struct {
	bun.BaseModel `bun:"table:accounts"`

	ID             int64     `bun:"id,pk,autoincrement"`
	FirstName      string    `bun:"first_name"`
	LastName       string    `bun:"last_name"`
	Email          string    `bun:"email"`
	PasswordHash   string    `bun:"password_hash"`
	Role           string    `bun:"role"`
	Balance        int64     `bun:"balance"`
	Premium        bool      `bun:"premium"`
	Bio            string    `bun:"bio"`
	Specialization string    `bun:"specialization"`
	Rating         float64   `bun:"rating"`
	TotalReviews   int       `bun:"total_reviews"`
	Available      bool      `bun:"available"`
	CreatedAt      time.Time `bun:"created_at"`
}

func accountFromDomain(a domain.Account) accountRow {
	return accountRow{
		ID:             a.ID,
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		Email:          a.Email,
		PasswordHash:   a.PasswordHash,
		Role:           string(a.Role),
		Balance:        a.Balance,
		Premium:        a.Premium,
		Bio:            a.Bio,
		Specialization: a.Specialization,
		Rating:         a.Rating,
		TotalReviews:   a.TotalReviews,
		Available:      a.Available,
		CreatedAt:      a.CreatedAt,
	}
}

func (r accountRow) toDomain() domain.Account {
	return domain.Account{
		ID:             r.ID,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		PasswordHash:   r.PasswordHash,
		Role:           domain.Role(r.Role),
		Balance:        r.Balance,
		Premium:        r.Premium,
		CreatedAt:      r.CreatedAt,
		Bio:            r.Bio,
		Specialization: r.Specialization,
		Rating:         r.Rating,
		TotalReviews:   r.TotalReviews,
		Available:      r.Available,
	}
}

type ledgerRow struct {
	bun.BaseModel `bun:"table:ledger_entries"`

	ID            int64     `bun:"id,pk,autoincrement"`
	AccountID     int64     `bun:"account_id"`
	Direction     string    `bun:"direction"`
	Reason        string    `bun:"reason"`
	Amount        int64     `bun:"amount"`
	BalanceBefore int64     `bun:"balance_before"`
	BalanceAfter  int64     `bun:"balance_after"`
	RefType       string    `bun:"ref_type"`
	RefID         int64     `bun:"ref_id"`
	Note          string    `bun:"note"`
	CreatedAt     time.Time `bun:"created_at"`
}

func (r ledgerRow) toDomain() domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:            r.ID,
		AccountID:     r.AccountID,
		Direction:     domain.LedgerDirection(r.Direction),
		Reason:        domain.LedgerReason(r.Reason),
		Amount:        r.Amount,
		BalanceBefore: r.BalanceBefore,
		BalanceAfter:  r.BalanceAfter,
		RefType:       r.RefType,
		RefID:         r.RefID,
		Note:          r.Note,
		CreatedAt:     r.CreatedAt,
	}
}

type bookingRow struct {
	bun.BaseModel `bun:"table:bookings"`

	ID              int64     `bun:"id,pk,autoincrement"`
	RequesterID     int64     `bun:"requester_id"`
	ProviderID      int64     `bun:"provider_id"`
	ScheduledAt     time.Time `bun:"scheduled_at"`
	DurationMinutes int       `bun:"duration_minutes"`
	Status          string    `bun:"status"`
	Message         string    `bun:"message"`
	Response        string    `bun:"response"`
	MeetingLink     string    `bun:"meeting_link"`
	Cost            int64     `bun:"cost"`
	CreatedAt       time.Time `bun:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at"`
}

func bookingFromDomain(b domain.Booking) bookingRow {
	return bookingRow{
		ID:              b.ID,
		RequesterID:     b.RequesterID,
		ProviderID:      b.ProviderID,
		ScheduledAt:     b.ScheduledAt,
		DurationMinutes: b.DurationMinutes,
		Status:          string(b.Status),
		Message:         b.Message,
		Response:        b.Response,
		MeetingLink:     b.MeetingLink,
		Cost:            b.Cost,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func (r bookingRow) toDomain() domain.Booking {
	return domain.Booking{
		ID:              r.ID,
		RequesterID:     r.RequesterID,
		ProviderID:      r.ProviderID,
		ScheduledAt:     r.ScheduledAt.UTC(),
		DurationMinutes: r.DurationMinutes,
		Status:          domain.BookingStatus(r.Status),
		Message:         r.Message,
		Response:        r.Response,
		MeetingLink:     r.MeetingLink,
		Cost:            r.Cost,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type lessonRow struct {
	bun.BaseModel `bun:"table:lessons"`

	ID          int64     `bun:"id,pk,autoincrement"`
	ProviderID  int64     `bun:"provider_id"`
	Title       string    `bun:"title"`
	Level       string    `bun:"level"`
	Category    string    `bun:"category"`
	Published   bool      `bun:"published"`
	Views       int64     `bun:"views"`
	Completions int64     `bun:"completions"`
	Rating      float64   `bun:"rating"`
	RatingCount int64     `bun:"rating_count"`
	CreatedAt   time.Time `bun:"created_at"`
}

func (r lessonRow) toDomain() domain.Lesson {
	return domain.Lesson{
		ID:          r.ID,
		ProviderID:  r.ProviderID,
		Title:       r.Title,
		Level:       domain.Level(r.Level),
		Category:    r.Category,
		Published:   r.Published,
		Views:       r.Views,
		Completions: r.Completions,
		Rating:      r.Rating,
		RatingCount: r.RatingCount,
		CreatedAt:   r.CreatedAt,
	}
}

type ratingRow struct {
	bun.BaseModel `bun:"table:lesson_ratings"`

	AccountID int64 `bun:"account_id,pk"`
	LessonID  int64 `bun:"lesson_id,pk"`
	Stars     int   `bun:"stars"`
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID           int64  `bun:"id,pk,autoincrement"`
	LessonID     int64  `bun:"lesson_id"`
	Title        string `bun:"title"`
	PassingScore int    `bun:"passing_score"`
	MaxAttempts  int    `bun:"max_attempts"`
	PointsReward int64  `bun:"points_reward"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID            int64  `bun:"id,pk,autoincrement"`
	QuizID        int64  `bun:"quiz_id"`
	Prompt        string `bun:"prompt"`
	Points        int    `bun:"points"`
	CorrectAnswer string `bun:"correct_answer"`
	Position      int    `bun:"position"`
}

type submissionRow struct {
	bun.BaseModel `bun:"table:submissions"`

	ID               int64            `bun:"id,pk,autoincrement"`
	AccountID        int64            `bun:"account_id"`
	QuizID           int64            `bun:"quiz_id"`
	Answers          map[int64]string `bun:"answers,type:jsonb"`
	Score            float64          `bun:"score"`
	Passed           bool             `bun:"passed"`
	PointsEarned     int64            `bun:"points_earned"`
	AttemptNumber    int              `bun:"attempt_number"`
	TimeTakenSeconds int              `bun:"time_taken_seconds"`
	CreatedAt        time.Time        `bun:"created_at"`
}

type progressRow struct {
	bun.BaseModel `bun:"table:progress"`

	ID             int64      `bun:"id,pk,autoincrement"`
	AccountID      int64      `bun:"account_id"`
	LessonID       int64      `bun:"lesson_id"`
	Status         string     `bun:"status"`
	BestScore      float64    `bun:"best_score"`
	QuizAttempts   int        `bun:"quiz_attempts"`
	StartedAt      *time.Time `bun:"started_at"`
	LastAccessedAt *time.Time `bun:"last_accessed_at"`
	CompletedAt    *time.Time `bun:"completed_at"`
}

func progressFromDomain(p domain.Progress) progressRow {
	return progressRow{
		ID:             p.ID,
		AccountID:      p.AccountID,
		LessonID:       p.LessonID,
		Status:         string(p.Status),
		BestScore:      p.BestScore,
		QuizAttempts:   p.QuizAttempts,
		StartedAt:      p.StartedAt,
		LastAccessedAt: p.LastAccessedAt,
		CompletedAt:    p.CompletedAt,
	}
}

func (r progressRow) toDomain() domain.Progress {
	return domain.Progress{
		ID:             r.ID,
		AccountID:      r.AccountID,
		LessonID:       r.LessonID,
		Status:         domain.ProgressStatus(r.Status),
		BestScore:      r.BestScore,
		QuizAttempts:   r.QuizAttempts,
		StartedAt:      r.StartedAt,
		LastAccessedAt: r.LastAccessedAt,
		CompletedAt:    r.CompletedAt,
	}
}

type badgeRow struct {
	bun.BaseModel `bun:"table:badges"`

	ID            int64  `bun:"id,pk,autoincrement"`
	Name          string `bun:"name"`
	Description   string `bun:"description"`
	CriteriaType  string `bun:"criteria_type"`
	CriteriaValue int64  `bun:"criteria_value"`
}

func (r badgeRow) toDomain() domain.Badge {
	return domain.Badge{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Criteria:    domain.CriteriaType(r.CriteriaType),
		Threshold:   r.CriteriaValue,
	}
}

type awardedBadgeRow struct {
	bun.BaseModel `bun:"table:awarded_badges"`

	AccountID int64     `bun:"account_id,pk"`
	BadgeID   int64     `bun:"badge_id,pk"`
	AwardedAt time.Time `bun:"awarded_at"`
}

type rewardRow struct {
	bun.BaseModel `bun:"table:rewards"`

	ID          int64      `bun:"id,pk,autoincrement"`
	AccountID   int64      `bun:"account_id"`
	RewardType  string     `bun:"reward_type"`
	Value       int64      `bun:"value"`
	Description string     `bun:"description"`
	Status      string     `bun:"status"`
	ExpiresAt   *time.Time `bun:"expires_at"`
	ClaimedAt   *time.Time `bun:"claimed_at"`
	CreatedAt   time.Time  `bun:"created_at"`
}

func rewardFromDomain(r domain.Reward) rewardRow {
	return rewardRow{
		ID:          r.ID,
		AccountID:   r.AccountID,
		RewardType:  string(r.Type),
		Value:       r.Value,
		Description: r.Description,
		Status:      string(r.Status),
		ExpiresAt:   r.ExpiresAt,
		ClaimedAt:   r.ClaimedAt,
		CreatedAt:   r.CreatedAt,
	}
}

func (r rewardRow) toDomain() domain.Reward {
	return domain.Reward{
		ID:          r.ID,
		AccountID:   r.AccountID,
		Type:        domain.RewardType(r.RewardType),
		Value:       r.Value,
		Description: r.Description,
		Status:      domain.RewardStatus(r.Status),
		ExpiresAt:   r.ExpiresAt,
		ClaimedAt:   r.ClaimedAt,
		CreatedAt:   r.CreatedAt,
	}
}

type classroomRow struct {
	bun.BaseModel `bun:"table:classrooms"`

	ID        int64     `bun:"id,pk,autoincrement"`
	OwnerID   int64     `bun:"owner_id"`
	Name      string    `bun:"name"`
	JoinCode  string    `bun:"join_code"`
	CreatedAt time.Time `bun:"created_at"`
}

func (r classroomRow) toDomain() domain.Classroom {
	return domain.Classroom{ID: r.ID, OwnerID: r.OwnerID, Name: r.Name, JoinCode: r.JoinCode, CreatedAt: r.CreatedAt}
}

type memberRow struct {
	bun.BaseModel `bun:"table:classroom_members"`

	ClassroomID int64     `bun:"classroom_id,pk"`
	AccountID   int64     `bun:"account_id,pk"`
	JoinedAt    time.Time `bun:"joined_at"`
}
