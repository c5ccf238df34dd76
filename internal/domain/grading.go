package domain

import (
	"math"
	"strings"
)

// ConsolationRate is the share of a quiz reward paid out on a failed attempt.
const ConsolationRate = 0.3

// GradeResult is the pure outcome of scoring one answer set.
type GradeResult struct {
	EarnedPoints   int
	PossiblePoints int
	Score          float64
	Passed         bool
	PointsEarned   int64
}

// Grade scores answers against the quiz key. Letters compare case-insensitively;
// a quiz with no possible points scores 0.
func Grade(quiz Quiz, answers Answers) GradeResult {
	var res GradeResult
	for _, q := range quiz.Questions {
		res.PossiblePoints += q.Points
		given, ok := answers[q.ID]
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(q.CorrectAnswer)) {
			res.EarnedPoints += q.Points
		}
	}
	if res.PossiblePoints > 0 {
		res.Score = roundScore(float64(res.EarnedPoints) / float64(res.PossiblePoints) * 100)
	}
	res.Passed = res.Score >= float64(quiz.PassingScore)
	res.PointsEarned = RewardFor(quiz.PointsReward, res.Passed)
	return res
}

// RewardFor pays the full reward on a pass and the floored consolation otherwise.
func RewardFor(reward int64, passed bool) int64 {
	if reward <= 0 {
		return 0
	}
	if passed {
		return reward
	}
	return int64(math.Floor(float64(reward) * ConsolationRate))
}

// PerfectScore is the score counted by the perfect_score badge criterion.
const PerfectScore = 100.0

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}

// NormalizeAnswerKey upper-cases and trims a letter code.
func NormalizeAnswerKey(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
