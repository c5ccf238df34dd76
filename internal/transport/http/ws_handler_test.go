package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/domain"
	"tutor-points-service/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Services, *TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := app.New(app.Deps{Store: memory.NewStore(), BcryptCost: bcrypt.MinCost})
	if _, err := svc.Achievements.EnsureCatalog(context.Background()); err != nil {
		t.Fatalf("seed badges: %v", err)
	}
	tokens := NewTokenIssuer("test-secret", time.Hour)
	server := httptest.NewServer(NewServer(svc, tokens, nil).Router())
	t.Cleanup(server.Close)
	return server, svc, tokens
}

func TestLeaderboardFeedPushesOnBalanceChange(t *testing.T) {
	server, svc, _ := newTestServer(t)

	u := "ws" + server.URL[len("http"):] + "/ws/leaderboard?limit=5"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial snapshot arrives before any change.
	msgType, payload := readNext(conn, t, "leaderboard")
	if msgType != "leaderboard" || payload["trigger"] != nil {
		t.Fatalf("expected untriggered snapshot, got %s %+v", msgType, payload)
	}
	if n := svc.Hub.Subscribers(); n != 1 {
		t.Fatalf("expected one hub subscriber, got %d", n)
	}

	acc, err := svc.Accounts.Provision(context.Background(), app.Registration{
		FirstName: "Ana", LastName: "Pop", Email: "ana@example.com", Password: "secret-pass", Role: domain.RoleLearner,
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	_, payload = readNext(conn, t, "leaderboard")
	entries, _ := payload["leaderboard"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one ranked learner, got %+v", payload)
	}
	row, _ := entries[0].(map[string]any)
	if row["id"] != float64(acc.ID) || row["points"] != float64(150) || row["rank"] != float64(1) {
		t.Fatalf("unexpected row %+v", row)
	}

	if err := conn.WriteJSON(map[string]string{"type": "refresh"}); err != nil {
		t.Fatalf("write refresh: %v", err)
	}
	readNext(conn, t, "leaderboard")

	if err := conn.WriteJSON(map[string]string{"type": "bogus"}); err != nil {
		t.Fatalf("write bogus: %v", err)
	}
	readNext(conn, t, "error")
}

func TestLeaderboardFeedRejectsBadLimit(t *testing.T) {
	server, _, _ := newTestServer(t)
	u := "ws" + server.URL[len("http"):] + "/ws/leaderboard?limit=500"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %+v", resp)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
