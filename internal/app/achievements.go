package app

import (
	"context"
	"time"

	"tutor-points-service/internal/domain"
	"tutor-points-service/internal/logger"
)

// Evaluation lists what one evaluation pass newly granted.
type Evaluation struct {
	Badges  []domain.Badge  `json:"new_badges"`
	Rewards []domain.Reward `json:"new_rewards"`
}

// ClaimResult is the settled reward plus the account balance after it.
type ClaimResult struct {
	Reward  domain.Reward `json:"reward"`
	Balance int64         `json:"total_points"`
	Premium bool          `json:"is_premium"`
}

// AchievementService grants badges and tier rewards and settles reward claims.
// Grants are insert-if-absent so repeated or concurrent evaluation is idempotent.
type AchievementService struct {
	store  Store
	ledger Ledger
	log    *logger.Logger
	now    func() time.Time
	fx     *effects
}

func NewAchievementService(d Deps) *AchievementService {
	d = d.withDefaults()
	return &AchievementService{
		store:  d.Store,
		ledger: NewLedger(d.Now),
		log:    d.Log,
		now:    d.Now,
	}
}

// EnsureCatalog seeds the default badge templates and returns how many were new.
func (s *AchievementService) EnsureCatalog(ctx context.Context) (int, error) {
	created := 0
	err := s.store.InTx(ctx, func(tx Tx) error {
		for _, b := range domain.DefaultBadges() {
			b := b
			ok, err := tx.InsertBadgeIfAbsent(ctx, &b)
			if err != nil {
				return domain.Internal("achievements.EnsureCatalog", err)
			}
			if ok {
				created++
			}
		}
		return nil
	})
	return created, err
}

// Evaluate compares the account's current metrics with every badge and reward
// tier and grants whatever is newly met.
func (s *AchievementService) Evaluate(ctx context.Context, accountID int64) (Evaluation, error) {
	const op = "achievements.Evaluate"
	ev := Evaluation{Badges: []domain.Badge{}, Rewards: []domain.Reward{}}
	now := s.now()
	err := s.store.InTx(ctx, func(tx Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		completed, err := tx.CountCompletedLessons(ctx, accountID)
		if err != nil {
			return domain.Internal(op, err)
		}
		perfect, err := tx.CountPerfectSubmissions(ctx, accountID)
		if err != nil {
			return domain.Internal(op, err)
		}
		m := domain.Metrics{
			Balance:          acc.Balance,
			LessonsCompleted: completed[accountID],
			PerfectScores:    perfect,
		}

		badges, err := tx.ListBadges(ctx)
		if err != nil {
			return domain.Internal(op, err)
		}
		for _, b := range badges {
			if !b.Met(m) {
				continue
			}
			ok, err := tx.AwardBadgeIfAbsent(ctx, domain.AwardedBadge{AccountID: accountID, BadgeID: b.ID, AwardedAt: now})
			if err != nil {
				return domain.Internal(op, err)
			}
			if ok {
				ev.Badges = append(ev.Badges, b)
			}
		}

		for _, tier := range domain.RewardTiers {
			if m.Balance < tier.Threshold {
				continue
			}
			r := domain.TierReward(accountID, tier, now)
			ok, err := tx.InsertRewardIfAbsent(ctx, &r)
			if err != nil {
				return domain.Internal(op, err)
			}
			if ok {
				ev.Rewards = append(ev.Rewards, r)
			}
		}

		if m.LessonsCompleted >= domain.FreeFeedbackLessonsNeeded {
			exists, err := tx.RewardWithDescriptionExists(ctx, accountID, domain.FreeFeedbackDescription)
			if err != nil {
				return domain.Internal(op, err)
			}
			if !exists {
				r := domain.FreeFeedbackReward(accountID, now)
				ok, err := tx.InsertRewardIfAbsent(ctx, &r)
				if err != nil {
					return domain.Internal(op, err)
				}
				if ok {
					ev.Rewards = append(ev.Rewards, r)
				}
			}
		}
		return nil
	})
	if err != nil {
		return Evaluation{}, err
	}
	return ev, nil
}

// Badges lists the account's awarded badges with their templates.
func (s *AchievementService) Badges(ctx context.Context, accountID int64) ([]domain.AwardedBadge, error) {
	var out []domain.AwardedBadge
	err := s.store.InTx(ctx, func(tx Tx) error {
		awarded, err := tx.ListAwardedBadges(ctx, accountID)
		if err != nil {
			return err
		}
		catalog, err := tx.ListBadges(ctx)
		if err != nil {
			return err
		}
		byID := make(map[int64]domain.Badge, len(catalog))
		for _, b := range catalog {
			byID[b.ID] = b
		}
		for _, a := range awarded {
			if b, ok := byID[a.BadgeID]; ok {
				b := b
				a.Badge = &b
			}
			out = append(out, a)
		}
		return nil
	})
	return out, err
}

// Rewards lists the account's rewards, expiring lapsed pending ones on the way.
func (s *AchievementService) Rewards(ctx context.Context, accountID int64) ([]domain.Reward, error) {
	const op = "achievements.Rewards"
	var out []domain.Reward
	now := s.now()
	err := s.store.InTx(ctx, func(tx Tx) error {
		rewards, err := tx.ListRewards(ctx, accountID)
		if err != nil {
			return err
		}
		for i, r := range rewards {
			if !r.Lapsed(now) {
				continue
			}
			r.Status = domain.RewardExpired
			if err := tx.UpdateReward(ctx, r); err != nil {
				return domain.Internal(op, err)
			}
			rewards[i] = r
		}
		out = rewards
		return nil
	})
	return out, err
}

// Claim settles a pending reward for its owner. A lapsed reward is stored as
// expired and the claim fails.
func (s *AchievementService) Claim(ctx context.Context, actorID, rewardID int64) (ClaimResult, error) {
	const op = "achievements.Claim"
	now := s.now()
	var (
		res     ClaimResult
		lapsed  bool
		credits bool
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.LockReward(ctx, rewardID)
		if err != nil {
			return err
		}
		if r.AccountID != actorID {
			return domain.Fail(domain.KindForbidden, op, domain.ErrForbidden)
		}
		if r.Status != domain.RewardPending {
			return domain.Fail(domain.KindAlreadySettled, op, domain.ErrAlreadySettled)
		}
		if r.Lapsed(now) {
			r.Status = domain.RewardExpired
			lapsed = true
			res.Reward = r
			return tx.UpdateReward(ctx, r)
		}

		r.Status = domain.RewardClaimed
		r.ClaimedAt = &now
		if err := tx.UpdateReward(ctx, r); err != nil {
			return domain.Internal(op, err)
		}

		acc, err := tx.LockAccount(ctx, actorID)
		if err != nil {
			return err
		}
		res.Balance = acc.Balance
		switch r.Type {
		case domain.RewardBonusPoints:
			res.Balance, err = s.ledger.Credit(ctx, tx, actorID, r.Value, Posting{
				Reason:  domain.ReasonRewardClaim,
				RefType: "reward",
				RefID:   r.ID,
			})
			if err != nil {
				return err
			}
			credits = r.Value > 0
		case domain.RewardPremiumTrial:
			if !acc.Premium {
				acc.Premium = true
				if err := tx.UpdateProfile(ctx, acc); err != nil {
					return domain.Internal(op, err)
				}
			}
		}
		res.Premium = acc.Premium
		res.Reward = r
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}
	if lapsed {
		s.log.Info("reward lapsed at claim", "reward_id", rewardID, "account_id", actorID)
		return res, domain.Fail(domain.KindExpired, op, domain.ErrRewardExpired)
	}
	if credits {
		s.fx.publish(actorID, res.Balance, string(domain.ReasonRewardClaim))
		s.fx.evaluate(ctx, op, actorID)
	}
	return res, nil
}
