package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tutor-points-service/internal/domain"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	// Fields carries per-field validation messages keyed by JSON name.
	Fields map[string]string `json:"fields,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

var kindStatus = map[domain.Kind]int{
	domain.KindValidation:        http.StatusBadRequest,
	domain.KindNotFound:          http.StatusNotFound,
	domain.KindForbidden:         http.StatusForbidden,
	domain.KindInvalidTransition: http.StatusConflict,
	domain.KindInsufficientFunds: http.StatusPaymentRequired,
	domain.KindAlreadySettled:    http.StatusConflict,
	domain.KindExpired:           http.StatusGone,
	domain.KindLimitExceeded:     http.StatusTooManyRequests,
	domain.KindConflict:          http.StatusConflict,
}

func statusFor(kind domain.Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, status int, code string, msg string) {
	c.AbortWithStatusJSON(status, errorEnvelope{Error: apiError{Message: msg, Code: code}})
}

// respondDomainError renders a core failure. Internal faults are logged and
// hidden behind a generic message.
func (s *Server) respondDomainError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "request_id", requestID(c), "path", c.FullPath(), "err", err)
		msg = "internal error"
	}
	respondError(c, status, string(kind), msg)
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func respondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
