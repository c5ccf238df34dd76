package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/domain"
)

type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func (a *apiClient) do(method, path string, body any, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, a.base+path, &buf)
	if err != nil {
		a.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.Header.Get(headerRequestID) == "" {
		a.t.Fatalf("missing request id header on %s %s", method, path)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			a.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type session struct {
	Token   string `json:"token"`
	Account struct {
		ID                 int64 `json:"id"`
		Points             int64 `json:"points"`
		CanRequestFeedback bool  `json:"can_request_feedback"`
	} `json:"account"`
}

type envelope struct {
	Error struct {
		Message string            `json:"message"`
		Code    string            `json:"code"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func TestRegisterLoginAndMe(t *testing.T) {
	server, _, _ := newTestServer(t)
	client := &apiClient{t: t, base: server.URL}

	var created session
	status := client.do(http.MethodPost, "/api/register", map[string]string{
		"first_name": "Ana", "last_name": "Pop", "email": "ana@example.com", "password": "secret-pass",
	}, &created)
	if status != http.StatusCreated || created.Token == "" || created.Account.Points != 150 || !created.Account.CanRequestFeedback {
		t.Fatalf("unexpected register response %d %+v", status, created)
	}

	var bad envelope
	status = client.do(http.MethodPost, "/api/register", map[string]string{
		"first_name": "Bo", "last_name": "X", "email": "not-an-email", "password": "123",
	}, &bad)
	if status != http.StatusBadRequest || bad.Error.Fields["email"] == "" || bad.Error.Fields["password"] == "" {
		t.Fatalf("expected field errors, got %d %+v", status, bad)
	}

	var dup envelope
	status = client.do(http.MethodPost, "/api/register", map[string]string{
		"first_name": "Ana", "last_name": "Pop", "email": "ANA@example.com", "password": "secret-pass",
	}, &dup)
	if status != http.StatusConflict || dup.Error.Code != string(domain.KindConflict) {
		t.Fatalf("expected conflict, got %d %+v", status, dup)
	}

	var unauth envelope
	if status := client.do(http.MethodGet, "/api/me", nil, &unauth); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	var login session
	if status := client.do(http.MethodPost, "/api/login", map[string]string{"email": "ana@example.com", "password": "wrong-pass"}, &envelope{}); status != http.StatusBadRequest {
		t.Fatalf("expected wrong password rejected, got %d", status)
	}
	if status := client.do(http.MethodPost, "/api/login", map[string]string{"email": "ana@example.com", "password": "secret-pass"}, &login); status != http.StatusOK {
		t.Fatalf("login status %d", status)
	}
	client.token = login.Token

	var me struct {
		ID     int64 `json:"id"`
		Points int64 `json:"points"`
	}
	if status := client.do(http.MethodGet, "/api/me", nil, &me); status != http.StatusOK || me.ID != created.Account.ID || me.Points != 150 {
		t.Fatalf("unexpected me %d %+v", status, me)
	}
}

func TestBookingOverHTTP(t *testing.T) {
	server, svc, tokens := newTestServer(t)
	ctx := context.Background()

	learner, err := svc.Accounts.Provision(ctx, app.Registration{FirstName: "Lea", LastName: "L", Email: "lea@example.com", Password: "secret-pass"})
	if err != nil {
		t.Fatalf("provision learner: %v", err)
	}
	provider, err := svc.Accounts.Provision(ctx, app.Registration{FirstName: "Paul", LastName: "P", Email: "paul@example.com", Password: "secret-pass", Role: domain.RoleProvider})
	if err != nil {
		t.Fatalf("provision provider: %v", err)
	}
	learnerToken, _, _ := tokens.Issue(learner)
	providerToken, _, _ := tokens.Issue(provider)
	asLearner := &apiClient{t: t, base: server.URL, token: learnerToken}
	asProvider := &apiClient{t: t, base: server.URL, token: providerToken}

	when := time.Now().Add(48 * time.Hour).UTC()
	var booked struct {
		Booking struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"booking"`
		Remaining int64 `json:"remaining_points"`
	}
	status := asLearner.do(http.MethodPost, "/api/bookings", map[string]any{
		"professor_id": provider.ID, "scheduled_at": when, "message": "Past tense please",
	}, &booked)
	if status != http.StatusCreated || booked.Remaining != 50 || booked.Booking.Status != string(domain.BookingPending) {
		t.Fatalf("unexpected booking response %d %+v", status, booked)
	}

	var broke envelope
	status = asLearner.do(http.MethodPost, "/api/bookings", map[string]any{
		"professor_id": provider.ID, "scheduled_at": when.Add(time.Hour),
	}, &broke)
	if status != http.StatusPaymentRequired || broke.Error.Code != string(domain.KindInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %d %+v", status, broke)
	}

	var forbidden envelope
	path := fmt.Sprintf("/api/bookings/%d/respond", booked.Booking.ID)
	if status := asLearner.do(http.MethodPost, path, map[string]string{"action": "confirm"}, &forbidden); status != http.StatusForbidden {
		t.Fatalf("expected learner unable to respond, got %d", status)
	}

	var rejected struct {
		Booking struct {
			Status   string `json:"status"`
			Response string `json:"response"`
		} `json:"booking"`
	}
	if status := asProvider.do(http.MethodPost, path, map[string]string{"action": "reject"}, &rejected); status != http.StatusOK {
		t.Fatalf("reject status %d", status)
	}
	if rejected.Booking.Status != string(domain.BookingRejected) || rejected.Booking.Response != domain.DefaultRejectResponse {
		t.Fatalf("unexpected rejection %+v", rejected)
	}

	var again envelope
	if status := asProvider.do(http.MethodPost, path, map[string]string{"action": "confirm"}, &again); status != http.StatusConflict || again.Error.Code != string(domain.KindInvalidTransition) {
		t.Fatalf("expected invalid transition, got %d %+v", status, again)
	}

	var ledger struct {
		Entries []domain.LedgerEntry `json:"entries"`
	}
	if status := asLearner.do(http.MethodGet, "/api/ledger", nil, &ledger); status != http.StatusOK || len(ledger.Entries) != 3 {
		t.Fatalf("expected grant, charge and refund entries, got %d %+v", status, ledger.Entries)
	}
	if ledger.Entries[0].Reason != domain.ReasonBookingRefund || ledger.Entries[0].BalanceAfter != 150 {
		t.Fatalf("expected newest entry to be the refund, got %+v", ledger.Entries[0])
	}
	if status := asLearner.do(http.MethodGet, fmt.Sprintf("/api/ledger?account_id=%d", provider.ID), nil, &envelope{}); status != http.StatusForbidden {
		t.Fatalf("expected foreign ledger forbidden, got %d", status)
	}
}

func TestQuizOverHTTP(t *testing.T) {
	server, svc, tokens := newTestServer(t)
	ctx := context.Background()

	provider, _ := svc.Accounts.Provision(ctx, app.Registration{FirstName: "Paul", LastName: "P", Email: "paul@example.com", Password: "secret-pass", Role: domain.RoleProvider})
	learner, _ := svc.Accounts.Provision(ctx, app.Registration{FirstName: "Lea", LastName: "L", Email: "lea@example.com", Password: "secret-pass"})
	providerToken, _, _ := tokens.Issue(provider)
	learnerToken, _, _ := tokens.Issue(learner)
	asProvider := &apiClient{t: t, base: server.URL, token: providerToken}
	asLearner := &apiClient{t: t, base: server.URL, token: learnerToken}

	var lesson struct {
		ID           int64  `json:"id"`
		LevelDisplay string `json:"level_display"`
	}
	if status := asProvider.do(http.MethodPost, "/api/lessons", map[string]any{
		"title": "Articles", "level": "b1", "category": "grammar", "is_published": true,
	}, &lesson); status != http.StatusCreated || lesson.ID == 0 {
		t.Fatalf("create lesson status %d %+v", status, lesson)
	}

	var invalid envelope
	status := asProvider.do(http.MethodPost, fmt.Sprintf("/api/lessons/%d/quizzes", lesson.ID), map[string]any{
		"title": "Check", "passing_score": 50,
		"questions": []map[string]any{{"question_text": "a/an?", "points": 1, "correct_answer": "42"}},
	}, &invalid)
	if status != http.StatusBadRequest || invalid.Error.Fields["correct_answer"] == "" {
		t.Fatalf("expected answer key rejected, got %d %+v", status, invalid)
	}

	var quiz domain.Quiz
	status = asProvider.do(http.MethodPost, fmt.Sprintf("/api/lessons/%d/quizzes", lesson.ID), map[string]any{
		"title": "Check", "passing_score": 50, "points_reward": 20,
		"questions": []map[string]any{
			{"question_text": "a/an?", "points": 1, "correct_answer": "a"},
			{"question_text": "the?", "points": 1, "correct_answer": "b"},
		},
	}, &quiz)
	if status != http.StatusCreated || len(quiz.Questions) != 2 || quiz.MaxAttempts != app.DefaultMaxAttempts {
		t.Fatalf("create quiz status %d %+v", status, quiz)
	}

	answers := map[string]string{
		fmt.Sprint(quiz.Questions[0].ID): "A",
		fmt.Sprint(quiz.Questions[1].ID): "b",
	}
	var graded struct {
		Submission struct {
			Score        float64 `json:"score"`
			Passed       bool    `json:"passed"`
			PointsEarned int64   `json:"points_earned"`
		} `json:"submission"`
		Balance        int64 `json:"total_points_balance"`
		LessonComplete bool  `json:"lesson_completed"`
	}
	status = asLearner.do(http.MethodPost, fmt.Sprintf("/api/quizzes/%d/submit", quiz.ID), map[string]any{
		"answers": answers, "time_taken": 30,
	}, &graded)
	if status != http.StatusOK || graded.Submission.Score != 100 || !graded.Submission.Passed || graded.Balance != 170 || !graded.LessonComplete {
		t.Fatalf("unexpected grading %d %+v", status, graded)
	}

	var progress struct {
		Progress []domain.Progress `json:"progress"`
	}
	if status := asLearner.do(http.MethodGet, "/api/progress", nil, &progress); status != http.StatusOK || len(progress.Progress) != 1 || progress.Progress[0].Status != domain.ProgressCompleted {
		t.Fatalf("unexpected progress %d %+v", status, progress)
	}

	var badges struct {
		Badges []domain.AwardedBadge `json:"badges"`
	}
	if status := asLearner.do(http.MethodGet, "/api/badges", nil, &badges); status != http.StatusOK || len(badges.Badges) != 2 {
		t.Fatalf("expected first-lesson and perfect-score badges, got %d %+v", status, badges.Badges)
	}

	var board struct {
		Entries         []domain.LearnerStanding `json:"leaderboard"`
		CurrentUserRank int                      `json:"current_user_rank"`
	}
	if status := asLearner.do(http.MethodGet, "/api/leaderboard/global?per_page=10", nil, &board); status != http.StatusOK || board.CurrentUserRank != 1 || len(board.Entries) != 1 {
		t.Fatalf("unexpected board %d %+v", status, board)
	}
}
