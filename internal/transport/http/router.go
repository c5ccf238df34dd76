package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/logger"
)

// Server exposes the core services over JSON and the live leaderboard over websocket.
type Server struct {
	svc      *app.Services
	tokens   *TokenIssuer
	validate *Validator
	feed     *WSHandler
	log      *logger.Logger
}

func NewServer(svc *app.Services, tokens *TokenIssuer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		svc:      svc,
		tokens:   tokens,
		validate: NewValidator(),
		feed:     NewWSHandler(svc.Leaderboard, svc.Hub, log),
		log:      log,
	}
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), requestLogger(s.log))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/ws/leaderboard", s.feed.Serve)

	api := r.Group("/api")
	api.POST("/register", s.register)
	api.POST("/login", s.login)

	auth := api.Group("/")
	auth.Use(s.tokens.RequireAuth())
	{
		auth.GET("/me", s.me)
		auth.GET("/ledger", s.ledger)
		auth.GET("/providers", s.listProviders)
		auth.PUT("/providers/availability", s.setAvailability)
		auth.POST("/admin/accounts/:id/balance", s.adminSetBalance)

		auth.POST("/bookings", s.createBooking)
		auth.GET("/bookings", s.listBookings)
		auth.POST("/bookings/:id/respond", s.respondBooking)
		auth.POST("/bookings/:id/cancel", s.cancelBooking)
		auth.POST("/bookings/:id/complete", s.completeBooking)

		auth.GET("/lessons", s.listLessons)
		auth.POST("/lessons", s.createLesson)
		auth.GET("/lessons/:id", s.getLesson)
		auth.POST("/lessons/:id/touch", s.touchLesson)
		auth.POST("/lessons/:id/rate", s.rateLesson)
		auth.POST("/lessons/:id/quizzes", s.createQuiz)
		auth.POST("/quizzes/:id/submit", s.submitQuiz)
		auth.GET("/progress", s.listProgress)

		auth.GET("/badges", s.listBadges)
		auth.GET("/rewards", s.listRewards)
		auth.POST("/rewards/:id/claim", s.claimReward)

		auth.GET("/leaderboard/global", s.learnerBoard)
		auth.GET("/leaderboard/professors", s.providerBoard)

		auth.POST("/classrooms", s.createClassroom)
		auth.POST("/classrooms/join", s.joinClassroom)
		auth.DELETE("/classrooms/:id/membership", s.leaveClassroom)
		auth.GET("/classrooms/:id/roster", s.roster)
	}
	return r
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID(c),
		}
		if id := accountID(c); id != 0 {
			fields = append(fields, "account_id", id)
		}
		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Debug("http request", fields...)
		}
	}
}

// pathID parses the :id segment; on failure the response is already written.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "validation", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
