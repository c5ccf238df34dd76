package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/domain"
	"tutor-points-service/internal/logger"
)

const (
	defaultFeedSize = 10
	maxFeedSize     = 50
)

// WSHandler streams the top of the learner leaderboard, recomputed after
// every committed balance change.
type WSHandler struct {
	board    *app.LeaderboardService
	hub      *app.Hub
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(board *app.LeaderboardService, hub *app.Hub, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WSHandler{
		board: board,
		hub:   hub,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type string `json:"type"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type boardPayload struct {
	Entries []domain.LearnerStanding `json:"leaderboard"`
	// Trigger is the balance change that caused the refresh, if any.
	Trigger *app.BalanceChange `json:"trigger,omitempty"`
}

// Serve upgrades to a websocket and pushes leaderboard snapshots. The client
// may send {"type":"refresh"} to request one on demand.
func (h *WSHandler) Serve(c *gin.Context) {
	size := defaultFeedSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxFeedSize {
			respondError(c, http.StatusBadRequest, "validation", "limit must be between 1 and 50")
			return
		}
		size = n
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	updates, cancel := h.hub.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	snapshot := func(trigger *app.BalanceChange) outboundMessage[any] {
		entries, err := h.board.Top(ctx, size)
		if err != nil {
			h.log.Warn("leaderboard snapshot failed", "err", err)
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "leaderboard unavailable"}}
		}
		return outboundMessage[any]{Type: "leaderboard", Payload: boardPayload{Entries: entries, Trigger: trigger}}
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", "err", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case change, ok := <-updates:
				if !ok {
					return
				}
				// Coalesce a burst into one recomputation.
				for drained := false; !drained; {
					select {
					case next, ok := <-updates:
						if !ok {
							return
						}
						change = next
					default:
						drained = true
					}
				}
				msg := snapshot(&change)
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- snapshot(nil)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "refresh":
			send <- snapshot(nil)
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
