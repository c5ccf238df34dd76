package app

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"tutor-points-service/internal/domain"
)

const joinCodeLength = 8

// RosterEntry is one classroom member as shown to its owner.
type RosterEntry struct {
	AccountID int64     `json:"id"`
	Name      string    `json:"name"`
	Points    int64     `json:"points"`
	JoinedAt  time.Time `json:"joined_at"`
}

// ClassroomService groups learners under a provider by join code.
type ClassroomService struct {
	store   Store
	now     func() time.Time
	newCode func() string
}

func NewClassroomService(d Deps) *ClassroomService {
	d = d.withDefaults()
	return &ClassroomService{store: d.Store, now: d.Now, newCode: randomJoinCode}
}

func randomJoinCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:joinCodeLength])
}

// Create opens a classroom owned by a provider or administrator. Join-code collisions are retried.
func (s *ClassroomService) Create(ctx context.Context, actorID int64, name string) (domain.Classroom, error) {
	const op = "classrooms.Create"
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Classroom{}, domain.Invalid(op, "name is required")
	}
	var (
		c   domain.Classroom
		err error
	)
	for attempt := 0; attempt < 3; attempt++ {
		err = s.store.InTx(ctx, func(tx Tx) error {
			owner, err := tx.GetAccount(ctx, actorID)
			if err != nil {
				return err
			}
			if owner.Role != domain.RoleProvider && owner.Role != domain.RoleAdministrator {
				return domain.Fail(domain.KindForbidden, op, domain.ErrForbidden)
			}
			c = domain.Classroom{OwnerID: actorID, Name: name, JoinCode: s.newCode(), CreatedAt: s.now()}
			return tx.InsertClassroom(ctx, &c)
		})
		if !domain.IsKind(err, domain.KindConflict) {
			break
		}
	}
	if err != nil {
		return domain.Classroom{}, err
	}
	return c, nil
}

// Join adds the account to the classroom behind code.
func (s *ClassroomService) Join(ctx context.Context, accountID int64, code string) (domain.Membership, error) {
	const op = "classrooms.Join"
	var m domain.Membership
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			return err
		}
		c, err := tx.GetClassroomByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
		if err != nil {
			return err
		}
		if c.OwnerID == accountID {
			return domain.Invalid(op, "owners cannot join their own classroom")
		}
		m = domain.Membership{ClassroomID: c.ID, AccountID: accountID, JoinedAt: s.now()}
		ok, err := tx.InsertMembershipIfAbsent(ctx, m)
		if err != nil {
			return domain.Internal(op, err)
		}
		if !ok {
			return domain.Fail(domain.KindConflict, op, domain.ErrAlreadyMember)
		}
		return nil
	})
	return m, err
}

func (s *ClassroomService) Leave(ctx context.Context, accountID, classroomID int64) error {
	const op = "classrooms.Leave"
	return s.store.InTx(ctx, func(tx Tx) error {
		ok, err := tx.DeleteMembership(ctx, classroomID, accountID)
		if err != nil {
			return domain.Internal(op, err)
		}
		if !ok {
			return domain.Fail(domain.KindNotFound, op, domain.ErrNotMember)
		}
		return nil
	})
}

// Roster lists members for the owner, a member or an administrator, ranked by balance.
func (s *ClassroomService) Roster(ctx context.Context, actorID, classroomID int64) ([]RosterEntry, error) {
	const op = "classrooms.Roster"
	out := []RosterEntry{}
	err := s.store.InTx(ctx, func(tx Tx) error {
		c, err := tx.GetClassroom(ctx, classroomID)
		if err != nil {
			return err
		}
		members, err := tx.ListMembers(ctx, classroomID)
		if err != nil {
			return err
		}
		if c.OwnerID != actorID && !hasMember(members, actorID) {
			actor, err := tx.GetAccount(ctx, actorID)
			if err != nil {
				return err
			}
			if actor.Role != domain.RoleAdministrator {
				return domain.Fail(domain.KindForbidden, op, domain.ErrForbidden)
			}
		}
		for _, m := range members {
			acc, err := tx.GetAccount(ctx, m.AccountID)
			if err != nil {
				return err
			}
			out = append(out, RosterEntry{AccountID: acc.ID, Name: acc.FullName(), Points: acc.Balance, JoinedAt: m.JoinedAt})
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Points > out[j].Points })
		return nil
	})
	return out, err
}

func hasMember(members []domain.Membership, accountID int64) bool {
	for _, m := range members {
		if m.AccountID == accountID {
			return true
		}
	}
	return false
}
