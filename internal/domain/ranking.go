package domain

import (
	"math"
	"sort"
)

// LearnerStanding is one row of the learner leaderboard.
type LearnerStanding struct {
	Rank             int    `json:"rank"`
	AccountID        int64  `json:"id"`
	Name             string `json:"name"`
	Points           int64  `json:"points"`
	LessonsCompleted int64  `json:"lessons_completed"`
	IsCurrentUser    bool   `json:"is_current_user"`
}

// RankLearners orders learners by balance descending, keeping the input
// (creation) order between equal balances. Rank is 1 + the number of learners
// with a strictly greater balance, so ties share a rank.
func RankLearners(accounts []Account, completed map[int64]int64) []LearnerStanding {
	learners := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		if a.Role == RoleLearner {
			learners = append(learners, a)
		}
	}
	sort.SliceStable(learners, func(i, j int) bool {
		return learners[i].Balance > learners[j].Balance
	})

	out := make([]LearnerStanding, len(learners))
	for i, a := range learners {
		rank := i + 1
		if i > 0 && a.Balance == learners[i-1].Balance {
			rank = out[i-1].Rank
		}
		out[i] = LearnerStanding{
			Rank:             rank,
			AccountID:        a.ID,
			Name:             a.FullName(),
			Points:           a.Balance,
			LessonsCompleted: completed[a.ID],
		}
	}
	return out
}

// ProviderStanding is one row of the provider leaderboard.
type ProviderStanding struct {
	Rank           int     `json:"rank"`
	AccountID      int64   `json:"id"`
	Name           string  `json:"name"`
	Specialization string  `json:"specialization,omitempty"`
	Rating         float64 `json:"rating"`
	LessonsCreated int64   `json:"lessons_created"`
	LessonsViews   int64   `json:"lessons_views"`
	Score          float64 `json:"score"`
}

// ProviderScore = avg_rating*100 + published_lessons*10 + views*0.1.
func ProviderScore(avgRating float64, published, views int64) float64 {
	score := avgRating*100 + float64(published)*10 + float64(views)*0.1
	return math.Round(score*100) / 100
}

// RankProviders aggregates published lessons per provider and sorts by composite
// score. When level is set only lessons of that level count and providers without
// one are left out.
func RankProviders(providers []Account, lessons []Lesson, level Level) []ProviderStanding {
	type agg struct {
		ratingSum float64
		published int64
		views     int64
	}
	byProvider := make(map[int64]*agg, len(providers))
	for _, l := range lessons {
		if !l.Published || (level != "" && l.Level != level) {
			continue
		}
		a := byProvider[l.ProviderID]
		if a == nil {
			a = &agg{}
			byProvider[l.ProviderID] = a
		}
		a.ratingSum += l.Rating
		a.published++
		a.views += l.Views
	}

	out := make([]ProviderStanding, 0, len(providers))
	for _, p := range providers {
		if p.Role != RoleProvider {
			continue
		}
		a := byProvider[p.ID]
		if a == nil {
			if level != "" {
				continue
			}
			a = &agg{}
		}
		var avg float64
		if a.published > 0 {
			avg = math.Round(a.ratingSum/float64(a.published)*100) / 100
		}
		out = append(out, ProviderStanding{
			AccountID:      p.ID,
			Name:           p.FullName(),
			Specialization: p.Specialization,
			Rating:         avg,
			LessonsCreated: a.published,
			LessonsViews:   a.views,
			Score:          ProviderScore(avg, a.published, a.views),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
