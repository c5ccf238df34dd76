package domain

import (
	"testing"
	"time"
)

func TestGradeScenarios(t *testing.T) {
	quiz := Quiz{
		ID:           1,
		PassingScore: 70,
		PointsReward: 50,
		Questions: []Question{
			{ID: 1, Points: 5, CorrectAnswer: "A"},
			{ID: 2, Points: 5, CorrectAnswer: "C"},
		},
	}

	res := Grade(quiz, Answers{1: "a", 2: "C"})
	if res.Score != 100 || !res.Passed || res.PointsEarned != 50 {
		t.Fatalf("expected full marks, got %+v", res)
	}

	res = Grade(quiz, Answers{1: "A", 2: "B"})
	if res.Score != 50 || res.Passed || res.PointsEarned != 15 {
		t.Fatalf("expected half marks with consolation 15, got %+v", res)
	}
}

func TestGradeZeroPossiblePoints(t *testing.T) {
	res := Grade(Quiz{PassingScore: 50, PointsReward: 10}, Answers{1: "A"})
	if res.Score != 0 || res.Passed {
		t.Fatalf("expected score 0 for empty quiz, got %+v", res)
	}
	if res.PointsEarned != 3 {
		t.Fatalf("expected consolation 3, got %d", res.PointsEarned)
	}
}

func TestRefundUsesPreTransitionStatus(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		refund   bool
	}{
		{BookingPending, BookingRejected, true},
		{BookingPending, BookingCancelled, true},
		{BookingConfirmed, BookingCancelled, true},
		{BookingConfirmed, BookingCompleted, false},
		{BookingRejected, BookingCancelled, false},
		{BookingCompleted, BookingCancelled, false},
	}
	for _, c := range cases {
		if got := RefundOnTransition(c.from, c.to); got != c.refund {
			t.Fatalf("%s -> %s: expected refund=%v, got %v", c.from, c.to, c.refund, got)
		}
	}
	if CanTransition(BookingRejected, BookingCancelled) {
		t.Fatalf("rejected bookings must be terminal")
	}
	if CanTransition(BookingPending, BookingCompleted) {
		t.Fatalf("pending bookings cannot complete directly")
	}
}

func TestProgressNeverRegresses(t *testing.T) {
	if got := ProgressCompleted.Advance(ProgressInProgress); got != ProgressCompleted {
		t.Fatalf("expected completed to stick, got %s", got)
	}
	if got := ProgressNotStarted.Advance(ProgressInProgress); got != ProgressInProgress {
		t.Fatalf("expected in_progress, got %s", got)
	}
}

func TestBadgeCriteria(t *testing.T) {
	m := Metrics{Balance: 500, LessonsCompleted: 2, PerfectScores: 1}
	if !(Badge{Criteria: CriteriaPoints, Threshold: 500}).Met(m) {
		t.Fatalf("points badge should be met at threshold")
	}
	if (Badge{Criteria: CriteriaLessonsCompleted, Threshold: 3}).Met(m) {
		t.Fatalf("lessons badge should not be met")
	}
	if (Badge{Criteria: CriteriaStreak, Threshold: 0}).Met(m) {
		t.Fatalf("streak badges have no evaluator and must never match")
	}
	if (Badge{Criteria: CriteriaSpeed, Threshold: 0}).Met(m) {
		t.Fatalf("speed badges have no evaluator and must never match")
	}
}

func TestRankLearnersSharesTies(t *testing.T) {
	accounts := []Account{
		{ID: 1, Role: RoleLearner, Balance: 100},
		{ID: 2, Role: RoleLearner, Balance: 300},
		{ID: 3, Role: RoleProvider, Balance: 900},
		{ID: 4, Role: RoleLearner, Balance: 100},
	}
	board := RankLearners(accounts, map[int64]int64{1: 2})
	if len(board) != 3 {
		t.Fatalf("expected 3 learners, got %d", len(board))
	}
	if board[0].AccountID != 2 || board[0].Rank != 1 {
		t.Fatalf("expected account 2 first, got %+v", board[0])
	}
	if board[1].AccountID != 1 || board[2].AccountID != 4 {
		t.Fatalf("expected creation order between ties, got %+v", board)
	}
	if board[1].Rank != 2 || board[2].Rank != 2 {
		t.Fatalf("expected tied rank 2, got %d and %d", board[1].Rank, board[2].Rank)
	}
	if board[1].LessonsCompleted != 2 {
		t.Fatalf("expected lessons completed carried, got %d", board[1].LessonsCompleted)
	}
}

func TestRankProviders(t *testing.T) {
	providers := []Account{
		{ID: 10, Role: RoleProvider, FirstName: "Ana"},
		{ID: 11, Role: RoleProvider, FirstName: "Bo"},
	}
	lessons := []Lesson{
		{ProviderID: 10, Published: true, Rating: 4, Views: 100, Level: LevelA1},
		{ProviderID: 11, Published: true, Rating: 5, Views: 0, Level: LevelB1},
		{ProviderID: 11, Published: true, Rating: 3, Views: 50, Level: LevelB1},
		{ProviderID: 11, Published: false, Rating: 5, Views: 1000, Level: LevelB1},
	}
	board := RankProviders(providers, lessons, "")
	// Ana: 400 + 10 + 10 = 420; Bo: 400 + 20 + 5 = 425
	if board[0].AccountID != 11 || board[0].Score != 425 || board[0].Rank != 1 {
		t.Fatalf("expected Bo first with 425, got %+v", board[0])
	}
	if board[1].Score != 420 || board[1].Rank != 2 {
		t.Fatalf("expected Ana with 420, got %+v", board[1])
	}

	filtered := RankProviders(providers, lessons, LevelA1)
	if len(filtered) != 1 || filtered[0].AccountID != 10 {
		t.Fatalf("expected only Ana for A1, got %+v", filtered)
	}
}

func TestRewardLapsed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := TierReward(1, RewardTiers[0], now)
	if r.Lapsed(now.Add(29 * 24 * time.Hour)) {
		t.Fatalf("reward should still be valid")
	}
	if !r.Lapsed(now.Add(31 * 24 * time.Hour)) {
		t.Fatalf("reward should have lapsed")
	}
}

func TestLevelProjections(t *testing.T) {
	l := Lesson{Level: LevelB1, Views: 8, Completions: 2}
	v := l.View()
	if v.LevelText != "Intermediate (B1)" {
		t.Fatalf("unexpected level text %q", v.LevelText)
	}
	if v.Difficulty != "★★★☆☆☆" {
		t.Fatalf("unexpected stars %q", v.Difficulty)
	}
	if v.CompletionRate != 25 {
		t.Fatalf("unexpected completion rate %v", v.CompletionRate)
	}
}
