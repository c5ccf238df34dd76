package domain

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleLearner       Role = "learner"
	RoleProvider      Role = "provider"
	RoleAdministrator Role = "administrator"
)

// ParseRole accepts the canonical names plus the legacy user/professor/admin spellings.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "learner", "user", "student", "":
		return RoleLearner, true
	case "provider", "professor", "teacher":
		return RoleProvider, true
	case "administrator", "admin":
		return RoleAdministrator, true
	default:
		return "", false
	}
}

// Account is a registered identity holding a point balance.
type Account struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Balance      int64     `json:"points"`
	Premium      bool      `json:"premium"`
	CreatedAt    time.Time `json:"created_at"`

	// provider-only
	Bio            string  `json:"bio,omitempty"`
	Specialization string  `json:"specialization,omitempty"`
	Rating         float64 `json:"rating,omitempty"`
	TotalReviews   int     `json:"total_reviews,omitempty"`
	Available      bool    `json:"is_available"`
}

func (a Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// LedgerDirection tells whether an entry added or removed points.
type LedgerDirection string

const (
	DirectionCredit LedgerDirection = "credit"
	DirectionDebit  LedgerDirection = "debit"
)

// LedgerReason is the business reason behind a balance change.
type LedgerReason string

const (
	ReasonInitialGrant  LedgerReason = "initial_grant"
	ReasonBookingCharge LedgerReason = "booking_charge"
	ReasonBookingRefund LedgerReason = "booking_refund"
	ReasonQuizReward    LedgerReason = "quiz_reward"
	ReasonRewardClaim   LedgerReason = "reward_claim"
	ReasonAdminOverride LedgerReason = "admin_override"
)

// LedgerEntry is the append-only audit row written for every balance change.
type LedgerEntry struct {
	ID            int64           `json:"id"`
	AccountID     int64           `json:"account_id"`
	Direction     LedgerDirection `json:"direction"`
	Reason        LedgerReason    `json:"reason"`
	Amount        int64           `json:"amount"`
	BalanceBefore int64           `json:"balance_before"`
	BalanceAfter  int64           `json:"balance_after"`
	RefType       string          `json:"ref_type,omitempty"`
	RefID         int64           `json:"ref_id,omitempty"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Lesson is a content item owned by one provider.
type Lesson struct {
	ID          int64     `json:"id"`
	ProviderID  int64     `json:"provider_id"`
	Title       string    `json:"title"`
	Level       Level     `json:"level"`
	Category    string    `json:"category"`
	Published   bool      `json:"published"`
	Views       int64     `json:"views"`
	Completions int64     `json:"completions"`
	Rating      float64   `json:"rating"`
	RatingCount int64     `json:"rating_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Quiz belongs to exactly one lesson.
type Quiz struct {
	ID           int64      `json:"id"`
	LessonID     int64      `json:"lesson_id"`
	Title        string     `json:"title"`
	PassingScore int        `json:"passing_score"`
	MaxAttempts  int        `json:"max_attempts"`
	PointsReward int64      `json:"points_reward"`
	Questions    []Question `json:"questions"`
}

// Question carries a point weight and a single letter answer key.
type Question struct {
	ID            int64  `json:"id"`
	QuizID        int64  `json:"quiz_id"`
	Prompt        string `json:"prompt"`
	Points        int    `json:"points"`
	CorrectAnswer string `json:"correct_answer"`
	Position      int    `json:"position"`
}

// Answers maps question ids to the submitted letter code.
type Answers map[int64]string

// Submission is the immutable record of one grading attempt.
type Submission struct {
	ID               int64     `json:"id"`
	AccountID        int64     `json:"account_id"`
	QuizID           int64     `json:"quiz_id"`
	Answers          Answers   `json:"answers"`
	Score            float64   `json:"score"`
	Passed           bool      `json:"passed"`
	PointsEarned     int64     `json:"points_earned"`
	AttemptNumber    int       `json:"attempt_number"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}

// ProgressStatus only moves forward: not_started -> in_progress -> completed.
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

func (s ProgressStatus) rank() int {
	switch s {
	case ProgressInProgress:
		return 1
	case ProgressCompleted:
		return 2
	default:
		return 0
	}
}

// Advance returns the later of the two statuses.
func (s ProgressStatus) Advance(next ProgressStatus) ProgressStatus {
	if next.rank() > s.rank() {
		return next
	}
	return s
}

// Progress is unique per (account, lesson).
type Progress struct {
	ID             int64          `json:"id"`
	AccountID      int64          `json:"account_id"`
	LessonID       int64          `json:"lesson_id"`
	Status         ProgressStatus `json:"status"`
	BestScore      float64        `json:"best_score"`
	QuizAttempts   int            `json:"quiz_attempts"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	LastAccessedAt *time.Time     `json:"last_accessed_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// Badge is an achievement template.
type Badge struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Criteria    CriteriaType `json:"criteria_type"`
	Threshold   int64        `json:"criteria_value"`
}

// AwardedBadge is the permanent fact that an account earned a badge.
type AwardedBadge struct {
	AccountID int64     `json:"account_id"`
	BadgeID   int64     `json:"badge_id"`
	AwardedAt time.Time `json:"awarded_at"`
	Badge     *Badge    `json:"badge,omitempty"`
}

// RewardType enumerates claimable bonus grants.
type RewardType string

const (
	RewardBonusPoints  RewardType = "bonus_points"
	RewardFreeFeedback RewardType = "free_feedback"
	RewardPremiumTrial RewardType = "premium_trial"
)

type RewardStatus string

const (
	RewardPending RewardStatus = "pending"
	RewardClaimed RewardStatus = "claimed"
	RewardExpired RewardStatus = "expired"
)

// Reward is a claimable, possibly time-limited bonus.
type Reward struct {
	ID          int64        `json:"id"`
	AccountID   int64        `json:"account_id"`
	Type        RewardType   `json:"reward_type"`
	Value       int64        `json:"value"`
	Description string       `json:"description"`
	Status      RewardStatus `json:"status"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	ClaimedAt   *time.Time   `json:"claimed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Lapsed reports whether a pending reward is past its expiry at now.
func (r Reward) Lapsed(now time.Time) bool {
	return r.Status == RewardPending && r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Classroom is owned by one provider and joined by code.
type Classroom struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Name      string    `json:"name"`
	JoinCode  string    `json:"join_code"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership is unique per (classroom, account).
type Membership struct {
	ClassroomID int64     `json:"classroom_id"`
	AccountID   int64     `json:"account_id"`
	JoinedAt    time.Time `json:"joined_at"`
}

// LessonRating is unique per (account, lesson); re-rating replaces the stars.
type LessonRating struct {
	AccountID int64 `json:"account_id"`
	LessonID  int64 `json:"lesson_id"`
	Stars     int   `json:"stars"`
}
