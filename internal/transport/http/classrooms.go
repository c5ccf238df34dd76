package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type classroomRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

type joinRequest struct {
	Code string `json:"join_code" validate:"required,len=8,alphanum"`
}

// POST /api/classrooms
func (s *Server) createClassroom(c *gin.Context) {
	var req classroomRequest
	if !s.validate.bind(c, &req) {
		return
	}
	room, err := s.svc.Classrooms.Create(c.Request.Context(), accountID(c), req.Name)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondCreated(c, room)
}

// POST /api/classrooms/join
func (s *Server) joinClassroom(c *gin.Context) {
	var req joinRequest
	if !s.validate.bind(c, &req) {
		return
	}
	m, err := s.svc.Classrooms.Join(c.Request.Context(), accountID(c), req.Code)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondCreated(c, m)
}

// DELETE /api/classrooms/:id/membership
func (s *Server) leaveClassroom(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.svc.Classrooms.Leave(c.Request.Context(), accountID(c), id); err != nil {
		s.respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/classrooms/:id/roster
func (s *Server) roster(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entries, err := s.svc.Classrooms.Roster(c.Request.Context(), accountID(c), id)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, gin.H{"roster": entries})
}
