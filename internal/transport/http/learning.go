package http

import (
	"github.com/gin-gonic/gin"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/domain"
)

type lessonRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	Level     string `json:"level" validate:"required"`
	Category  string `json:"category" validate:"max=80"`
	Published bool   `json:"is_published"`
}

type questionRequest struct {
	Prompt        string `json:"question_text" validate:"required"`
	Points        int    `json:"points" validate:"min=0"`
	CorrectAnswer string `json:"correct_answer" validate:"required,letter"`
}

type quizRequest struct {
	Title        string            `json:"title" validate:"required,max=200"`
	PassingScore int               `json:"passing_score" validate:"min=0,max=100"`
	MaxAttempts  int               `json:"max_attempts" validate:"min=0"`
	PointsReward int64             `json:"points_reward" validate:"min=0"`
	Questions    []questionRequest `json:"questions" validate:"required,min=1,dive"`
}

type rateRequest struct {
	Stars int `json:"rating" validate:"required,min=1,max=5"`
}

type submitRequest struct {
	Answers          domain.Answers `json:"answers" validate:"required"`
	TimeTakenSeconds int            `json:"time_taken" validate:"min=0"`
}

// GET /api/lessons?level=B1
func (s *Server) listLessons(c *gin.Context) {
	var level domain.Level
	if raw := c.Query("level"); raw != "" {
		parsed, ok := domain.ParseLevel(raw)
		if !ok {
			s.respondDomainError(c, domain.Invalid("http.listLessons", "unknown level %q", raw))
			return
		}
		level = parsed
	}
	lessons, err := s.svc.Lessons.List(c.Request.Context(), level)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, gin.H{"lessons": lessons})
}

// POST /api/lessons
func (s *Server) createLesson(c *gin.Context) {
	var req lessonRequest
	if !s.validate.bind(c, &req) {
		return
	}
	lesson, err := s.svc.Lessons.CreateLesson(c.Request.Context(), accountID(c), app.NewLesson{
		Title:     req.Title,
		Level:     domain.Level(req.Level),
		Category:  req.Category,
		Published: req.Published,
	})
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondCreated(c, lesson.View())
}

// GET /api/lessons/:id
func (s *Server) getLesson(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	view, err := s.svc.Lessons.Get(c.Request.Context(), id)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, view)
}

// POST /api/lessons/:id/touch
func (s *Server) touchLesson(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := s.svc.Progress.Touch(c.Request.Context(), accountID(c), id)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, p)
}

// POST /api/lessons/:id/rate
func (s *Server) rateLesson(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req rateRequest
	if !s.validate.bind(c, &req) {
		return
	}
	lesson, err := s.svc.Lessons.Rate(c.Request.Context(), accountID(c), id, req.Stars)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, lesson.View())
}

// POST /api/lessons/:id/quizzes
func (s *Server) createQuiz(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req quizRequest
	if !s.validate.bind(c, &req) {
		return
	}
	in := app.NewQuiz{
		Title:        req.Title,
		PassingScore: req.PassingScore,
		MaxAttempts:  req.MaxAttempts,
		PointsReward: req.PointsReward,
	}
	for _, q := range req.Questions {
		in.Questions = append(in.Questions, app.NewQuestion{Prompt: q.Prompt, Points: q.Points, CorrectAnswer: q.CorrectAnswer})
	}
	quiz, err := s.svc.Lessons.CreateQuiz(c.Request.Context(), accountID(c), id, in)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondCreated(c, quiz)
}

// POST /api/quizzes/:id/submit
func (s *Server) submitQuiz(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req submitRequest
	if !s.validate.bind(c, &req) {
		return
	}
	out, err := s.svc.Grading.Submit(c.Request.Context(), accountID(c), app.Attempt{
		QuizID:           id,
		Answers:          req.Answers,
		TimeTakenSeconds: req.TimeTakenSeconds,
	})
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, out)
}

// GET /api/progress
func (s *Server) listProgress(c *gin.Context) {
	list, err := s.svc.Progress.List(c.Request.Context(), accountID(c))
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	if list == nil {
		list = []domain.Progress{}
	}
	respondOK(c, gin.H{"progress": list})
}
