package http

import (
	"github.com/gin-gonic/gin"

	"tutor-points-service/internal/domain"
)

// GET /api/badges
func (s *Server) listBadges(c *gin.Context) {
	badges, err := s.svc.Achievements.Badges(c.Request.Context(), accountID(c))
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	if badges == nil {
		badges = []domain.AwardedBadge{}
	}
	respondOK(c, gin.H{"badges": badges})
}

// GET /api/rewards
func (s *Server) listRewards(c *gin.Context) {
	rewards, err := s.svc.Achievements.Rewards(c.Request.Context(), accountID(c))
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	if rewards == nil {
		rewards = []domain.Reward{}
	}
	respondOK(c, gin.H{"rewards": rewards})
}

// POST /api/rewards/:id/claim
func (s *Server) claimReward(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := s.svc.Achievements.Claim(c.Request.Context(), accountID(c), id)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, res)
}

// GET /api/leaderboard/global?page=&per_page=
func (s *Server) learnerBoard(c *gin.Context) {
	board, err := s.svc.Leaderboard.Learners(c.Request.Context(), accountID(c),
		queryInt(c, "page", 1), queryInt(c, "per_page", 0))
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, board)
}

// GET /api/leaderboard/professors?level=
func (s *Server) providerBoard(c *gin.Context) {
	var level domain.Level
	if raw := c.Query("level"); raw != "" && raw != "all" {
		parsed, ok := domain.ParseLevel(raw)
		if !ok {
			s.respondDomainError(c, domain.Invalid("http.providerBoard", "unknown level %q", raw))
			return
		}
		level = parsed
	}
	rows, err := s.svc.Leaderboard.Providers(c.Request.Context(), level)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	if rows == nil {
		rows = []domain.ProviderStanding{}
	}
	respondOK(c, gin.H{"leaderboard": rows, "level": string(level)})
}
