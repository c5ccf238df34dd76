package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tutor-points-service/internal/domain"
)

// Registration is the input for creating an account.
type Registration struct {
	FirstName      string
	LastName       string
	Email          string
	Password       string
	Role           domain.Role
	Bio            string
	Specialization string
}

// AccountService owns identities, the initial grant and administrative balance edits.
type AccountService struct {
	store  Store
	ledger Ledger
	fx     *effects
	econ   Economy
	cost   int
	now    func() time.Time
}

func NewAccountService(d Deps, fx *effects) *AccountService {
	d = d.withDefaults()
	return &AccountService{
		store:  d.Store,
		ledger: NewLedger(d.Now),
		fx:     fx,
		econ:   d.Economy,
		cost:   d.BcryptCost,
		now:    d.Now,
	}
}

// Register creates the account and grants the initial balance in one unit of work.
// Administrators cannot self-register.
func (s *AccountService) Register(ctx context.Context, in Registration) (domain.Account, error) {
	const op = "accounts.Register"
	if in.Role == domain.RoleAdministrator {
		return domain.Account{}, domain.Fail(domain.KindForbidden, op, domain.ErrForbidden)
	}
	return s.create(ctx, op, in)
}

// Provision creates an account of any role; used by operator tooling.
func (s *AccountService) Provision(ctx context.Context, in Registration) (domain.Account, error) {
	return s.create(ctx, "accounts.Provision", in)
}

func (s *AccountService) create(ctx context.Context, op string, in Registration) (domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "":
		return domain.Account{}, domain.Invalid(op, "first and last name are required")
	case !strings.Contains(email, "@"):
		return domain.Account{}, domain.Invalid(op, "email is not valid")
	case len(in.Password) < 6:
		return domain.Account{}, domain.Invalid(op, "password must be at least 6 characters")
	}
	role := in.Role
	if role == "" {
		role = domain.RoleLearner
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return domain.Account{}, domain.Internal(op, err)
	}

	acc := domain.Account{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now(),
	}
	if role == domain.RoleProvider {
		acc.Bio = in.Bio
		acc.Specialization = in.Specialization
		acc.Available = true
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertAccount(ctx, &acc); err != nil {
			if domain.IsKind(err, domain.KindConflict) {
				return domain.Fail(domain.KindConflict, op, domain.ErrEmailTaken)
			}
			return domain.Internal(op, err)
		}
		balance, err := s.ledger.Credit(ctx, tx, acc.ID, s.econ.InitialGrant, Posting{
			Reason:  domain.ReasonInitialGrant,
			RefType: "account",
			RefID:   acc.ID,
		})
		acc.Balance = balance
		return err
	})
	if err != nil {
		return domain.Account{}, err
	}
	s.fx.publish(acc.ID, acc.Balance, string(domain.ReasonInitialGrant))
	return acc, nil
}

// Authenticate checks the password and returns the account.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (domain.Account, error) {
	const op = "accounts.Authenticate"
	var acc domain.Account
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		acc, err = tx.GetAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
		return err
	})
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.Account{}, domain.Fail(domain.KindValidation, op, domain.ErrInvalidCredentials)
		}
		return domain.Account{}, domain.Internal(op, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return domain.Account{}, domain.Fail(domain.KindValidation, op, domain.ErrInvalidCredentials)
		}
		return domain.Account{}, domain.Internal(op, err)
	}
	return acc, nil
}

func (s *AccountService) Get(ctx context.Context, id int64) (domain.Account, error) {
	var acc domain.Account
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		acc, err = tx.GetAccount(ctx, id)
		return err
	})
	return acc, err
}

// ListProviders returns providers in creation order, optionally only available ones.
func (s *AccountService) ListProviders(ctx context.Context, onlyAvailable bool) ([]domain.Account, error) {
	var out []domain.Account
	err := s.store.InTx(ctx, func(tx Tx) error {
		all, err := tx.ListAccounts(ctx, domain.RoleProvider)
		if err != nil {
			return err
		}
		for _, a := range all {
			if !onlyAvailable || a.Available {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// SetAvailability toggles whether a provider accepts new bookings.
func (s *AccountService) SetAvailability(ctx context.Context, actorID int64, available bool) (domain.Account, error) {
	const op = "accounts.SetAvailability"
	var acc domain.Account
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		acc, err = tx.LockAccount(ctx, actorID)
		if err != nil {
			return err
		}
		if acc.Role != domain.RoleProvider {
			return domain.Fail(domain.KindForbidden, op, domain.ErrForbidden)
		}
		acc.Available = available
		return tx.UpdateProfile(ctx, acc)
	})
	return acc, err
}

// AdminSetBalance overrides a balance through the ledger. Administrators only.
func (s *AccountService) AdminSetBalance(ctx context.Context, actorID, accountID, balance int64, note string) (domain.Account, error) {
	const op = "accounts.AdminSetBalance"
	var acc domain.Account
	err := s.store.InTx(ctx, func(tx Tx) error {
		actor, err := tx.GetAccount(ctx, actorID)
		if err != nil {
			return err
		}
		if actor.Role != domain.RoleAdministrator {
			return domain.Fail(domain.KindForbidden, op, domain.ErrForbidden)
		}
		if _, err := s.ledger.Set(ctx, tx, accountID, balance, Posting{
			Reason:  domain.ReasonAdminOverride,
			RefType: "account",
			RefID:   actorID,
			Note:    note,
		}); err != nil {
			return err
		}
		acc, err = tx.GetAccount(ctx, accountID)
		return err
	})
	if err != nil {
		return domain.Account{}, err
	}
	s.fx.publish(acc.ID, acc.Balance, string(domain.ReasonAdminOverride))
	s.fx.evaluate(ctx, op, acc.ID)
	return acc, nil
}

// History lists an account's ledger entries, newest first. Owners and administrators only.
func (s *AccountService) History(ctx context.Context, actorID, accountID int64) ([]domain.LedgerEntry, error) {
	const op = "accounts.History"
	var out []domain.LedgerEntry
	err := s.store.InTx(ctx, func(tx Tx) error {
		if actorID != accountID {
			actor, err := tx.GetAccount(ctx, actorID)
			if err != nil {
				return err
			}
			if actor.Role != domain.RoleAdministrator {
				return domain.Fail(domain.KindForbidden, op, domain.ErrForbidden)
			}
		}
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			return err
		}
		entries, err := tx.ListLedgerEntries(ctx, accountID)
		if err != nil {
			return err
		}
		out = make([]domain.LedgerEntry, len(entries))
		for i, e := range entries {
			out[len(entries)-1-i] = e
		}
		return nil
	})
	return out, err
}

// AccountView is the account as shown to its owner.
type AccountView struct {
	domain.Account
	CanRequestFeedback bool `json:"can_request_feedback"`
}

func (s *AccountService) View(a domain.Account) AccountView {
	return AccountView{Account: a, CanRequestFeedback: a.Balance >= s.econ.BookingThreshold}
}
