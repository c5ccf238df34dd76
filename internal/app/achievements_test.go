package app_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/domain"
)

func (f *fixture) admin(t *testing.T) domain.Account {
	t.Helper()
	return f.register(t, "Root", "root@example.com", domain.RoleAdministrator)
}

func (f *fixture) setBalance(t *testing.T, adminID, accountID, balance int64) {
	t.Helper()
	if _, err := f.svc.Accounts.AdminSetBalance(f.ctx, adminID, accountID, balance, "test"); err != nil {
		t.Fatalf("set balance: %v", err)
	}
}

func pendingOf(rewards []domain.Reward, typ domain.RewardType) []domain.Reward {
	var out []domain.Reward
	for _, r := range rewards {
		if r.Type == typ && r.Status == domain.RewardPending {
			out = append(out, r)
		}
	}
	return out
}

func TestTierRewardsAreGrantedOnceAndClaimable(t *testing.T) {
	f := newFixture(t)
	root := f.admin(t)
	learner := f.register(t, "Lea", "lea@example.com", domain.RoleLearner)
	intruder := f.register(t, "Ian", "ian@example.com", domain.RoleLearner)

	f.setBalance(t, root.ID, learner.ID, 520)
	ev, err := f.svc.Achievements.Evaluate(f.ctx, learner.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(ev.Rewards) != 0 {
		t.Fatalf("admin override already evaluated; expected nothing new, got %+v", ev.Rewards)
	}

	rewards, err := f.svc.Achievements.Rewards(f.ctx, learner.ID)
	if err != nil {
		t.Fatalf("rewards: %v", err)
	}
	bonus := pendingOf(rewards, domain.RewardBonusPoints)
	if len(bonus) != 2 {
		t.Fatalf("expected tiers 200 and 500, got %+v", rewards)
	}
	badges, err := f.svc.Achievements.Badges(f.ctx, learner.ID)
	if err != nil || len(badges) != 1 || badges[0].Badge == nil || badges[0].Badge.Name != "Point Collector" {
		t.Fatalf("expected Point Collector badge, got %+v (%v)", badges, err)
	}

	if _, err := f.svc.Achievements.Claim(f.ctx, intruder.ID, bonus[0].ID); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden claim by non-owner, got %v", err)
	}
	res, err := f.svc.Achievements.Claim(f.ctx, learner.ID, bonus[0].ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.Reward.Status != domain.RewardClaimed || res.Balance != 520+bonus[0].Value {
		t.Fatalf("unexpected claim result %+v", res)
	}
	if _, err := f.svc.Achievements.Claim(f.ctx, learner.ID, bonus[0].ID); !domain.IsKind(err, domain.KindAlreadySettled) {
		t.Fatalf("expected already settled, got %v", err)
	}
	f.assertLedgerMatches(t, learner.ID)
}

func TestConcurrentEvaluationGrantsOnce(t *testing.T) {
	f := newFixture(t)
	root := f.admin(t)
	learner := f.register(t, "Lea", "lea@example.com", domain.RoleLearner)
	f.setBalance(t, root.ID, learner.ID, 2500)

	var g errgroup.Group
	for i := 0; i < 6; i++ {
		g.Go(func() error {
			_, err := f.svc.Achievements.Evaluate(f.ctx, learner.ID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	rewards, _ := f.svc.Achievements.Rewards(f.ctx, learner.ID)
	if len(rewards) != len(domain.RewardTiers) {
		t.Fatalf("expected one reward per tier, got %d", len(rewards))
	}
}

func TestRewardExpiry(t *testing.T) {
	f := newFixture(t)
	root := f.admin(t)
	learner := f.register(t, "Lea", "lea@example.com", domain.RoleLearner)
	f.setBalance(t, root.ID, learner.ID, 200)

	rewards, _ := f.svc.Achievements.Rewards(f.ctx, learner.ID)
	bonus := pendingOf(rewards, domain.RewardBonusPoints)
	if len(bonus) != 1 {
		t.Fatalf("expected the 200 tier reward, got %+v", rewards)
	}

	f.clock.Advance(domain.TierRewardLifetime + time.Hour)
	_, err := f.svc.Achievements.Claim(f.ctx, learner.ID, bonus[0].ID)
	if !domain.IsKind(err, domain.KindExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if got := f.balance(t, learner.ID); got != 200 {
		t.Fatalf("expired claim must not credit, balance %d", got)
	}
	rewards, _ = f.svc.Achievements.Rewards(f.ctx, learner.ID)
	if rewards[0].Status != domain.RewardExpired {
		t.Fatalf("expected expiry to be persisted, got %s", rewards[0].Status)
	}
	if _, err := f.svc.Achievements.Claim(f.ctx, learner.ID, bonus[0].ID); !domain.IsKind(err, domain.KindAlreadySettled) {
		t.Fatalf("expected already settled after expiry, got %v", err)
	}
}

func TestFreeFeedbackAfterFiveLessons(t *testing.T) {
	f := newFixture(t)
	learner := f.register(t, "Lea", "lea@example.com", domain.RoleLearner)
	provider := f.register(t, "Paul", "paul@example.com", domain.RoleProvider)

	for i := 0; i < domain.FreeFeedbackLessonsNeeded; i++ {
		_, quiz := f.lessonWithQuiz(t, provider.ID, 0)
		if _, err := f.svc.Grading.Submit(f.ctx, learner.ID, app.Attempt{QuizID: quiz.ID, Answers: answers(quiz, "A", "B", "C")}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	rewards, _ := f.svc.Achievements.Rewards(f.ctx, learner.ID)
	if got := pendingOf(rewards, domain.RewardFreeFeedback); len(got) != 1 {
		t.Fatalf("expected one free feedback reward, got %+v", rewards)
	}

	ev, err := f.svc.Achievements.Evaluate(f.ctx, learner.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(ev.Rewards) != 0 || len(ev.Badges) != 0 {
		t.Fatalf("re-evaluation must be idempotent, got %+v", ev)
	}
}

func TestLearnerLeaderboardTiesAndPaging(t *testing.T) {
	f := newFixture(t)
	root := f.admin(t)
	alice := f.register(t, "Alice", "alice@example.com", domain.RoleLearner)
	bob := f.register(t, "Bob", "bob@example.com", domain.RoleLearner)
	carol := f.register(t, "Carol", "carol@example.com", domain.RoleLearner)
	f.register(t, "Paul", "paul@example.com", domain.RoleProvider)
	f.setBalance(t, root.ID, alice.ID, 300)
	f.setBalance(t, root.ID, bob.ID, 300)
	f.setBalance(t, root.ID, carol.ID, 100)

	board, err := f.svc.Leaderboard.Learners(f.ctx, carol.ID, 1, 2)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if board.TotalUsers != 3 || len(board.Entries) != 2 || board.CurrentUserRank != 3 {
		t.Fatalf("unexpected board %+v", board)
	}
	if board.Entries[0].AccountID != alice.ID || board.Entries[0].Rank != 1 || board.Entries[1].Rank != 1 {
		t.Fatalf("expected tied first place in creation order, got %+v", board.Entries)
	}

	page2, _ := f.svc.Leaderboard.Learners(f.ctx, carol.ID, 2, 2)
	if len(page2.Entries) != 1 || !page2.Entries[0].IsCurrentUser || page2.Entries[0].Rank != 3 {
		t.Fatalf("unexpected second page %+v", page2.Entries)
	}
	empty, _ := f.svc.Leaderboard.Learners(f.ctx, 0, 5, 2)
	if len(empty.Entries) != 0 {
		t.Fatalf("expected empty page past the end, got %+v", empty.Entries)
	}
}

func TestProviderLeaderboardLevelFilter(t *testing.T) {
	f := newFixture(t)
	learner := f.register(t, "Lea", "lea@example.com", domain.RoleLearner)
	p1 := f.register(t, "Paul", "paul@example.com", domain.RoleProvider)
	p2 := f.register(t, "Petra", "petra@example.com", domain.RoleProvider)

	b1, _ := f.lessonWithQuiz(t, p1.ID, 0)
	if _, err := f.svc.Lessons.CreateLesson(f.ctx, p2.ID, app.NewLesson{Title: "Idioms", Level: domain.LevelC1, Published: true}); err != nil {
		t.Fatalf("create lesson: %v", err)
	}
	if _, err := f.svc.Lessons.Rate(f.ctx, learner.ID, b1.ID, 5); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if _, err := f.svc.Lessons.Rate(f.ctx, p1.ID, b1.ID, 5); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected providers not to rate their own lessons, got %v", err)
	}

	all, err := f.svc.Leaderboard.Providers(f.ctx, "")
	if err != nil {
		t.Fatalf("providers: %v", err)
	}
	if len(all) != 2 || all[0].AccountID != p1.ID || all[0].Score != 510 {
		t.Fatalf("unexpected provider ranking %+v", all)
	}
	c1, _ := f.svc.Leaderboard.Providers(f.ctx, domain.LevelC1)
	if len(c1) != 1 || c1[0].AccountID != p2.ID {
		t.Fatalf("expected only the C1 provider, got %+v", c1)
	}
}

func TestClassroomMembership(t *testing.T) {
	f := newFixture(t)
	provider := f.register(t, "Paul", "paul@example.com", domain.RoleProvider)
	learner := f.register(t, "Lea", "lea@example.com", domain.RoleLearner)

	if _, err := f.svc.Classrooms.Create(f.ctx, learner.ID, "Nope"); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected learners unable to open classrooms, got %v", err)
	}
	room, err := f.svc.Classrooms.Create(f.ctx, provider.ID, "Evening B1")
	if err != nil {
		t.Fatalf("create classroom: %v", err)
	}
	if len(room.JoinCode) != 8 {
		t.Fatalf("expected 8 character join code, got %q", room.JoinCode)
	}

	if _, err := f.svc.Classrooms.Join(f.ctx, learner.ID, fmt.Sprintf(" %s ", room.JoinCode)); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.svc.Classrooms.Join(f.ctx, learner.ID, room.JoinCode); !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("expected conflict joining twice, got %v", err)
	}
	if _, err := f.svc.Classrooms.Join(f.ctx, provider.ID, room.JoinCode); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected owner join rejected, got %v", err)
	}
	outsider := f.register(t, "Otto", "otto@example.com", domain.RoleLearner)
	if _, err := f.svc.Classrooms.Roster(f.ctx, outsider.ID, room.ID); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected roster forbidden for outsiders, got %v", err)
	}
	if roster, err := f.svc.Classrooms.Roster(f.ctx, learner.ID, room.ID); err != nil || len(roster) != 1 {
		t.Fatalf("expected members to see the roster, got %+v (%v)", roster, err)
	}
	roster, err := f.svc.Classrooms.Roster(f.ctx, provider.ID, room.ID)
	if err != nil || len(roster) != 1 || roster[0].AccountID != learner.ID {
		t.Fatalf("unexpected roster %+v (%v)", roster, err)
	}
	if err := f.svc.Classrooms.Leave(f.ctx, learner.ID, room.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := f.svc.Classrooms.Leave(f.ctx, learner.ID, room.ID); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not a member, got %v", err)
	}
}

func TestHubReceivesBalanceChanges(t *testing.T) {
	f := newFixture(t)
	ch, cancel := f.svc.Hub.Subscribe()
	defer cancel()

	var (
		wg  sync.WaitGroup
		got app.BalanceChange
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case got = <-ch:
		case <-time.After(time.Second):
		}
	}()
	acc := f.register(t, "Lea", "lea@example.com", domain.RoleLearner)
	wg.Wait()

	if got.AccountID != acc.ID || got.Balance != 150 {
		t.Fatalf("expected registration change, got %+v", got)
	}
}
