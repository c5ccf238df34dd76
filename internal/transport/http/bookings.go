package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/domain"
)

type bookingRequest struct {
	ProviderID  int64     `json:"professor_id" validate:"required,gt=0"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Message     string    `json:"message" validate:"max=2000"`
}

type respondRequest struct {
	Action      string `json:"action" validate:"required,oneof=confirm reject"`
	Message     string `json:"message" validate:"max=2000"`
	MeetingLink string `json:"meeting_link" validate:"omitempty,url"`
}

// POST /api/bookings
func (s *Server) createBooking(c *gin.Context) {
	var req bookingRequest
	if !s.validate.bind(c, &req) {
		return
	}
	res, err := s.svc.Bookings.Create(c.Request.Context(), accountID(c), app.BookingRequest{
		ProviderID:  req.ProviderID,
		ScheduledAt: req.ScheduledAt,
		Message:     req.Message,
	})
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondCreated(c, res)
}

// GET /api/bookings
func (s *Server) listBookings(c *gin.Context) {
	list, err := s.svc.Bookings.List(c.Request.Context(), accountID(c))
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	if list == nil {
		list = []domain.Booking{}
	}
	respondOK(c, gin.H{"bookings": list})
}

// POST /api/bookings/:id/respond
func (s *Server) respondBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req respondRequest
	if !s.validate.bind(c, &req) {
		return
	}
	res, err := s.svc.Bookings.Respond(c.Request.Context(), accountID(c), id, app.BookingResponse{
		Action:      domain.ResponseAction(req.Action),
		Message:     req.Message,
		MeetingLink: req.MeetingLink,
	})
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, res)
}

// POST /api/bookings/:id/cancel
func (s *Server) cancelBooking(c *gin.Context) {
	s.bookingTransition(c, s.svc.Bookings.Cancel)
}

// POST /api/bookings/:id/complete
func (s *Server) completeBooking(c *gin.Context) {
	s.bookingTransition(c, s.svc.Bookings.Complete)
}

func (s *Server) bookingTransition(c *gin.Context, move func(ctx context.Context, actorID, bookingID int64) (app.BookingResult, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := move(c.Request.Context(), accountID(c), id)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	respondOK(c, res)
}
