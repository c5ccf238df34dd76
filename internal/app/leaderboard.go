package app

import (
	"context"

	"tutor-points-service/internal/domain"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// LearnerBoard is one page of the learner ranking.
type LearnerBoard struct {
	Entries         []domain.LearnerStanding `json:"leaderboard"`
	Page            int                      `json:"page"`
	PerPage         int                      `json:"per_page"`
	TotalUsers      int                      `json:"total_users"`
	CurrentUserRank int                      `json:"current_user_rank,omitempty"`
}

// LeaderboardService computes rankings on demand from current balances and lessons.
type LeaderboardService struct {
	store Store
}

func NewLeaderboardService(d Deps) *LeaderboardService {
	return &LeaderboardService{store: d.Store}
}

// Learners ranks learners by balance. viewerID, when non-zero, is flagged in
// the page and its rank reported even when it falls outside the page.
func (s *LeaderboardService) Learners(ctx context.Context, viewerID int64, page, perPage int) (LearnerBoard, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPageSize
	}
	if perPage > MaxPageSize {
		perPage = MaxPageSize
	}

	var ranked []domain.LearnerStanding
	err := s.store.InTx(ctx, func(tx Tx) error {
		learners, err := tx.ListAccounts(ctx, domain.RoleLearner)
		if err != nil {
			return err
		}
		ids := make([]int64, len(learners))
		for i, a := range learners {
			ids[i] = a.ID
		}
		completed, err := tx.CountCompletedLessons(ctx, ids...)
		if err != nil {
			return err
		}
		ranked = domain.RankLearners(learners, completed)
		return nil
	})
	if err != nil {
		return LearnerBoard{}, err
	}

	board := LearnerBoard{Page: page, PerPage: perPage, TotalUsers: len(ranked), Entries: []domain.LearnerStanding{}}
	for i := range ranked {
		if viewerID != 0 && ranked[i].AccountID == viewerID {
			ranked[i].IsCurrentUser = true
			board.CurrentUserRank = ranked[i].Rank
		}
	}
	start := (page - 1) * perPage
	if start < len(ranked) {
		end := start + perPage
		if end > len(ranked) {
			end = len(ranked)
		}
		board.Entries = ranked[start:end]
	}
	return board, nil
}

// Top returns the first n learners; used by the live feed.
func (s *LeaderboardService) Top(ctx context.Context, n int) ([]domain.LearnerStanding, error) {
	board, err := s.Learners(ctx, 0, 1, n)
	if err != nil {
		return nil, err
	}
	return board.Entries, nil
}

// Providers ranks providers by composite score, optionally restricted to one level.
func (s *LeaderboardService) Providers(ctx context.Context, level domain.Level) ([]domain.ProviderStanding, error) {
	var out []domain.ProviderStanding
	err := s.store.InTx(ctx, func(tx Tx) error {
		providers, err := tx.ListAccounts(ctx, domain.RoleProvider)
		if err != nil {
			return err
		}
		lessons, err := tx.ListLessons(ctx)
		if err != nil {
			return err
		}
		out = domain.RankProviders(providers, lessons, level)
		return nil
	})
	return out, err
}
