package app

import (
	"context"
	"strings"
	"time"

	"tutor-points-service/internal/domain"
)

// BookingRequest is a learner's ask for a paid session.
type BookingRequest struct {
	ProviderID  int64
	ScheduledAt time.Time
	Message     string
	// Cost overrides the configured booking price when positive.
	Cost int64
}

// BookingResponse is the provider's answer to a pending booking.
type BookingResponse struct {
	Action      domain.ResponseAction
	Message     string
	MeetingLink string
}

// BookingResult carries the booking and the requester's balance after the move.
type BookingResult struct {
	Booking domain.Booking `json:"booking"`
	Balance int64          `json:"remaining_points"`
}

// BookingService runs the paid-session state machine. Every transition that
// moves points does so in the same unit of work as the status change.
type BookingService struct {
	store  Store
	ledger Ledger
	fx     *effects
	econ   Economy
	now    func() time.Time
}

func NewBookingService(d Deps, fx *effects) *BookingService {
	d = d.withDefaults()
	return &BookingService{
		store:  d.Store,
		ledger: NewLedger(d.Now),
		fx:     fx,
		econ:   d.Economy,
		now:    d.Now,
	}
}

// Create debits the requester and records a pending booking.
func (s *BookingService) Create(ctx context.Context, requesterID int64, req BookingRequest) (BookingResult, error) {
	const op = "bookings.Create"
	now := s.now()
	if !req.ScheduledAt.After(now) {
		return BookingResult{}, domain.Fail(domain.KindValidation, op, domain.ErrInvalidSchedule)
	}
	if req.ProviderID == requesterID {
		return BookingResult{}, domain.Fail(domain.KindValidation, op, domain.ErrInvalidProvider)
	}
	cost := req.Cost
	if cost <= 0 {
		cost = s.econ.BookingCost
	}

	var res BookingResult
	err := s.store.InTx(ctx, func(tx Tx) error {
		requester, err := tx.LockAccount(ctx, requesterID)
		if err != nil {
			return err
		}
		if requester.Balance < s.econ.BookingThreshold || requester.Balance < cost {
			return domain.Fail(domain.KindInsufficientFunds, op, domain.ErrInsufficientPoints)
		}
		provider, err := tx.GetAccount(ctx, req.ProviderID)
		if err != nil {
			if domain.IsKind(err, domain.KindNotFound) {
				return domain.Fail(domain.KindValidation, op, domain.ErrInvalidProvider)
			}
			return err
		}
		if provider.Role != domain.RoleProvider {
			return domain.Fail(domain.KindValidation, op, domain.ErrInvalidProvider)
		}
		if !provider.Available {
			return domain.Fail(domain.KindValidation, op, domain.ErrProviderUnavailable)
		}

		b := domain.Booking{
			RequesterID:     requesterID,
			ProviderID:      provider.ID,
			ScheduledAt:     req.ScheduledAt.UTC(),
			DurationMinutes: s.econ.MeetingMinutes,
			Status:          domain.BookingPending,
			Message:         strings.TrimSpace(req.Message),
			Cost:            cost,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.InsertBooking(ctx, &b); err != nil {
			return domain.Internal(op, err)
		}
		balance, err := s.ledger.Debit(ctx, tx, requesterID, cost, Posting{
			Reason:  domain.ReasonBookingCharge,
			RefType: "booking",
			RefID:   b.ID,
		})
		if err != nil {
			return err
		}
		res = BookingResult{Booking: b, Balance: balance}
		return nil
	})
	if err != nil {
		return BookingResult{}, err
	}
	s.fx.publish(requesterID, res.Balance, string(domain.ReasonBookingCharge))
	return res, nil
}

// Respond lets the booked provider confirm or reject a pending booking.
// Rejection refunds the cost.
func (s *BookingService) Respond(ctx context.Context, actorID, bookingID int64, resp BookingResponse) (BookingResult, error) {
	const op = "bookings.Respond"
	var target domain.BookingStatus
	switch resp.Action {
	case domain.ActionConfirm:
		target = domain.BookingConfirmed
	case domain.ActionReject:
		target = domain.BookingRejected
	default:
		return BookingResult{}, domain.Invalid(op, "action must be confirm or reject")
	}

	return s.transition(ctx, op, bookingID, target, func(b *domain.Booking) error {
		if b.ProviderID != actorID {
			return domain.Fail(domain.KindForbidden, op, domain.ErrForbidden)
		}
		if b.Status != domain.BookingPending {
			return domain.Fail(domain.KindInvalidTransition, op, domain.ErrInvalidTransition)
		}
		b.Response = strings.TrimSpace(resp.Message)
		if b.Response == "" {
			b.Response = domain.DefaultRejectResponse
			if target == domain.BookingConfirmed {
				b.Response = domain.DefaultConfirmResponse
			}
		}
		if target == domain.BookingConfirmed {
			b.MeetingLink = strings.TrimSpace(resp.MeetingLink)
		}
		return nil
	})
}

// Cancel lets either party withdraw a pending or confirmed booking; the
// requester is refunded.
func (s *BookingService) Cancel(ctx context.Context, actorID, bookingID int64) (BookingResult, error) {
	const op = "bookings.Cancel"
	return s.transition(ctx, op, bookingID, domain.BookingCancelled, func(b *domain.Booking) error {
		if !b.IsParty(actorID) {
			return domain.Fail(domain.KindForbidden, op, domain.ErrForbidden)
		}
		return nil
	})
}

// Complete marks a confirmed session as held. Only the provider may complete it.
func (s *BookingService) Complete(ctx context.Context, actorID, bookingID int64) (BookingResult, error) {
	const op = "bookings.Complete"
	return s.transition(ctx, op, bookingID, domain.BookingCompleted, func(b *domain.Booking) error {
		if b.ProviderID != actorID {
			return domain.Fail(domain.KindForbidden, op, domain.ErrForbidden)
		}
		return nil
	})
}

// transition locks the booking, runs check against it, applies the move and
// refunds when leaving pending/confirmed for rejected/cancelled. The refund is
// decided on the status read before the move.
func (s *BookingService) transition(ctx context.Context, op string, bookingID int64, to domain.BookingStatus, check func(b *domain.Booking) error) (BookingResult, error) {
	var (
		res      BookingResult
		refunded bool
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := check(&b); err != nil {
			return err
		}
		from := b.Status
		if !domain.CanTransition(from, to) {
			return domain.Fail(domain.KindInvalidTransition, op, domain.ErrInvalidTransition)
		}
		b.Status = to
		b.UpdatedAt = s.now()
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return domain.Internal(op, err)
		}

		if domain.RefundOnTransition(from, to) {
			res.Balance, err = s.ledger.Credit(ctx, tx, b.RequesterID, b.Cost, Posting{
				Reason:  domain.ReasonBookingRefund,
				RefType: "booking",
				RefID:   b.ID,
			})
			if err != nil {
				return err
			}
			refunded = true
		} else {
			requester, err := tx.GetAccount(ctx, b.RequesterID)
			if err != nil {
				return err
			}
			res.Balance = requester.Balance
		}
		res.Booking = b
		return nil
	})
	if err != nil {
		return BookingResult{}, err
	}
	if refunded {
		s.fx.publish(res.Booking.RequesterID, res.Balance, string(domain.ReasonBookingRefund))
		s.fx.evaluate(ctx, op, res.Booking.RequesterID)
	}
	return res, nil
}

// List returns the actor's bookings: as provider for providers, as requester otherwise.
func (s *BookingService) List(ctx context.Context, actorID int64) ([]domain.Booking, error) {
	var out []domain.Booking
	err := s.store.InTx(ctx, func(tx Tx) error {
		actor, err := tx.GetAccount(ctx, actorID)
		if err != nil {
			return err
		}
		f := BookingFilter{RequesterID: actorID}
		if actor.Role == domain.RoleProvider {
			f = BookingFilter{ProviderID: actorID}
		}
		out, err = tx.ListBookings(ctx, f)
		return err
	})
	return out, err
}
