package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/domain"
)

type registerRequest struct {
	FirstName      string `json:"first_name" validate:"required,max=80"`
	LastName       string `json:"last_name" validate:"required,max=80"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6"`
	Role           string `json:"role" validate:"omitempty,oneof=learner user student provider professor teacher"`
	Bio            string `json:"bio"`
	Specialization string `json:"specialization"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   app.AccountView `json:"account"`
}

// POST /api/register
func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if !s.validate.bind(c, &req) {
		return
	}
	role, _ := domain.ParseRole(req.Role)
	acc, err := s.svc.Accounts.Register(c.Request.Context(), app.Registration{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Password:       req.Password,
		Role:           role,
		Bio:            req.Bio,
		Specialization: req.Specialization,
	})
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	s.issueSession(c, acc, true)
}

// POST /api/login
func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !s.validate.bind(c, &req) {
		return
	}
	acc, err := s.svc.Accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	s.issueSession(c, acc, false)
}

func (s *Server) issueSession(c *gin.Context, acc domain.Account, created bool) {
	token, exp, err := s.tokens.Issue(acc)
	if err != nil {
		s.respondDomainError(c, domain.Internal("http.issueSession", err))
		return
	}
	resp := sessionResponse{Token: token, ExpiresAt: exp, Account: s.svc.Accounts.View(acc)}
	if created {
		respondCreated(c, resp)
		return
	}
	respondOK(c, resp)
}

// GET /api/me
func (s *Server) me(c *gin.Context) {
	acc, err := s.svc.Accounts.Get(c.Request.Context(), accountID(c))
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, s.svc.Accounts.View(acc))
}

// GET /api/ledger?account_id=
func (s *Server) ledger(c *gin.Context) {
	target := int64(queryInt(c, "account_id", 0))
	if target == 0 {
		target = accountID(c)
	}
	entries, err := s.svc.Accounts.History(c.Request.Context(), accountID(c), target)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, gin.H{"entries": entries})
}

// GET /api/providers?available=true
func (s *Server) listProviders(c *gin.Context) {
	providers, err := s.svc.Accounts.ListProviders(c.Request.Context(), c.Query("available") == "true")
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	if providers == nil {
		providers = []domain.Account{}
	}
	respondOK(c, gin.H{"providers": providers})
}

type availabilityRequest struct {
	Available *bool `json:"is_available" validate:"required"`
}

// PUT /api/providers/availability
func (s *Server) setAvailability(c *gin.Context) {
	var req availabilityRequest
	if !s.validate.bind(c, &req) {
		return
	}
	acc, err := s.svc.Accounts.SetAvailability(c.Request.Context(), accountID(c), *req.Available)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, s.svc.Accounts.View(acc))
}

type balanceRequest struct {
	Balance *int64 `json:"points" validate:"required,min=0"`
	Note    string `json:"reason" validate:"max=200"`
}

// POST /api/admin/accounts/:id/balance
func (s *Server) adminSetBalance(c *gin.Context) {
	target, ok := pathID(c)
	if !ok {
		return
	}
	var req balanceRequest
	if !s.validate.bind(c, &req) {
		return
	}
	acc, err := s.svc.Accounts.AdminSetBalance(c.Request.Context(), accountID(c), target, *req.Balance, req.Note)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, s.svc.Accounts.View(acc))
}
