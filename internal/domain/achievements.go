package domain

import (
	"fmt"
	"time"
)

// CriteriaType names the metric a badge is measured against.
type CriteriaType string

const (
	CriteriaPoints           CriteriaType = "points"
	CriteriaLessonsCompleted CriteriaType = "lessons_completed"
	CriteriaPerfectScore     CriteriaType = "perfect_score"
	// Streak and speed are declared but have no evaluator; they never match.
	CriteriaStreak CriteriaType = "streak"
	CriteriaSpeed  CriteriaType = "speed"
)

// Metrics is the snapshot an evaluator compares badge and tier thresholds against.
type Metrics struct {
	Balance          int64
	LessonsCompleted int64
	PerfectScores    int64
}

// Met reports whether the badge criterion holds for m.
func (b Badge) Met(m Metrics) bool {
	switch b.Criteria {
	case CriteriaPoints:
		return m.Balance >= b.Threshold
	case CriteriaLessonsCompleted:
		return m.LessonsCompleted >= b.Threshold
	case CriteriaPerfectScore:
		return m.PerfectScores >= b.Threshold
	default:
		return false
	}
}

// RewardTier is one rung of the bonus-points ladder.
type RewardTier struct {
	Threshold int64
	Bonus     int64
}

// RewardTiers is the fixed point-threshold ladder.
var RewardTiers = []RewardTier{
	{Threshold: 200, Bonus: 50},
	{Threshold: 500, Bonus: 100},
	{Threshold: 1000, Bonus: 200},
	{Threshold: 2000, Bonus: 500},
}

const (
	TierRewardLifetime        = 30 * 24 * time.Hour
	FreeFeedbackLifetime      = 60 * 24 * time.Hour
	FreeFeedbackLessonsNeeded = 5
	FreeFeedbackRewardValue   = 1
	FreeFeedbackDescription   = "Free feedback session for completing 5 lessons"
)

// TierReward builds the pending bonus reward for a reached tier.
func TierReward(accountID int64, tier RewardTier, now time.Time) Reward {
	expires := now.Add(TierRewardLifetime)
	return Reward{
		AccountID:   accountID,
		Type:        RewardBonusPoints,
		Value:       tier.Bonus,
		Description: fmt.Sprintf("Bonus %d points for reaching %d points", tier.Bonus, tier.Threshold),
		Status:      RewardPending,
		ExpiresAt:   &expires,
		CreatedAt:   now,
	}
}

// FreeFeedbackReward builds the one-time lessons milestone reward.
func FreeFeedbackReward(accountID int64, now time.Time) Reward {
	expires := now.Add(FreeFeedbackLifetime)
	return Reward{
		AccountID:   accountID,
		Type:        RewardFreeFeedback,
		Value:       FreeFeedbackRewardValue,
		Description: FreeFeedbackDescription,
		Status:      RewardPending,
		ExpiresAt:   &expires,
		CreatedAt:   now,
	}
}

// DefaultBadges is the catalogue seeded on start-up.
func DefaultBadges() []Badge {
	return []Badge{
		{Name: "First Steps", Description: "Complete your first lesson", Criteria: CriteriaLessonsCompleted, Threshold: 1},
		{Name: "Dedicated Learner", Description: "Complete 10 lessons", Criteria: CriteriaLessonsCompleted, Threshold: 10},
		{Name: "Point Collector", Description: "Hold 500 points", Criteria: CriteriaPoints, Threshold: 500},
		{Name: "High Roller", Description: "Hold 2000 points", Criteria: CriteriaPoints, Threshold: 2000},
		{Name: "Perfectionist", Description: "Score 100% on a quiz", Criteria: CriteriaPerfectScore, Threshold: 1},
		{Name: "Flawless Five", Description: "Score 100% on five quizzes", Criteria: CriteriaPerfectScore, Threshold: 5},
		{Name: "Streak Keeper", Description: "Study seven days in a row", Criteria: CriteriaStreak, Threshold: 7},
		{Name: "Speed Runner", Description: "Finish a quiz in under a minute", Criteria: CriteriaSpeed, Threshold: 60},
	}
}
