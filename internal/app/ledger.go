package app

import (
	"context"
	"time"

	"tutor-points-service/internal/domain"
)

// Posting describes why a ledger movement happens and what it refers to.
type Posting struct {
	Reason  domain.LedgerReason
	RefType string
	RefID   int64
	Note    string
}

// BalanceChange is published after a unit of work that moved points commits.
type BalanceChange struct {
	AccountID int64     `json:"account_id"`
	Balance   int64     `json:"balance"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
	// Remote marks changes relayed from another instance.
	Remote bool `json:"-"`
}

// Ledger is the only writer of account balances. Every movement locks the
// account row, writes the new balance and appends an audit entry in the
// caller's unit of work.
type Ledger struct {
	now func() time.Time
}

func NewLedger(now func() time.Time) Ledger {
	if now == nil {
		now = systemClock
	}
	return Ledger{now: now}
}

// Credit adds amount and returns the new balance. A zero amount is a no-op.
func (l Ledger) Credit(ctx context.Context, tx Tx, accountID, amount int64, p Posting) (int64, error) {
	const op = "ledger.Credit"
	if amount < 0 {
		return 0, domain.Invalid(op, "credit amount must not be negative")
	}
	return l.move(ctx, tx, op, accountID, amount, domain.DirectionCredit, p)
}

// Debit removes amount and returns the new balance. It fails with
// insufficient_funds when the balance would go negative.
func (l Ledger) Debit(ctx context.Context, tx Tx, accountID, amount int64, p Posting) (int64, error) {
	const op = "ledger.Debit"
	if amount < 0 {
		return 0, domain.Invalid(op, "debit amount must not be negative")
	}
	return l.move(ctx, tx, op, accountID, -amount, domain.DirectionDebit, p)
}

// Set moves the balance to an absolute value, recording the difference.
func (l Ledger) Set(ctx context.Context, tx Tx, accountID, balance int64, p Posting) (int64, error) {
	const op = "ledger.Set"
	if balance < 0 {
		return 0, domain.Invalid(op, "balance must not be negative")
	}
	acc, err := tx.LockAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	delta := balance - acc.Balance
	dir := domain.DirectionCredit
	if delta < 0 {
		dir = domain.DirectionDebit
	}
	return l.apply(ctx, tx, op, acc, delta, dir, p)
}

func (l Ledger) move(ctx context.Context, tx Tx, op string, accountID, delta int64, dir domain.LedgerDirection, p Posting) (int64, error) {
	acc, err := tx.LockAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return l.apply(ctx, tx, op, acc, delta, dir, p)
}

func (l Ledger) apply(ctx context.Context, tx Tx, op string, acc domain.Account, delta int64, dir domain.LedgerDirection, p Posting) (int64, error) {
	if delta == 0 {
		return acc.Balance, nil
	}
	after := acc.Balance + delta
	if after < 0 {
		return acc.Balance, domain.Fail(domain.KindInsufficientFunds, op, domain.ErrInsufficientPoints)
	}
	if err := tx.SetBalance(ctx, acc.ID, after); err != nil {
		return acc.Balance, domain.Internal(op, err)
	}
	amount := delta
	if amount < 0 {
		amount = -amount
	}
	entry := domain.LedgerEntry{
		AccountID:     acc.ID,
		Direction:     dir,
		Reason:        p.Reason,
		Amount:        amount,
		BalanceBefore: acc.Balance,
		BalanceAfter:  after,
		RefType:       p.RefType,
		RefID:         p.RefID,
		Note:          p.Note,
		CreatedAt:     l.now(),
	}
	if err := tx.InsertLedgerEntry(ctx, &entry); err != nil {
		return acc.Balance, domain.Internal(op, err)
	}
	return after, nil
}
