package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. Units of work run one at
// a time against a private copy of the data that replaces the shared state
// only when the unit succeeds.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

func NewStore() *Store {
	return &Store{data: newDataset()}
}

func (s *Store) InTx(ctx context.Context, fn func(tx app.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&tx{d: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

type pairKey struct{ a, b int64 }

type rewardKey struct {
	accountID int64
	kind      domain.RewardType
	value     int64
}

type dataset struct {
	seq         map[string]int64
	accounts    map[int64]domain.Account
	ledger      []domain.LedgerEntry
	bookings    map[int64]domain.Booking
	lessons     map[int64]domain.Lesson
	ratings     map[pairKey]int
	quizzes     map[int64]domain.Quiz
	submissions []domain.Submission
	progress    map[pairKey]domain.Progress
	badges      []domain.Badge
	awarded     map[pairKey]domain.AwardedBadge
	rewards     map[int64]domain.Reward
	classrooms  map[int64]domain.Classroom
	members     map[pairKey]domain.Membership
}

func newDataset() *dataset {
	return &dataset{
		seq:        make(map[string]int64),
		accounts:   make(map[int64]domain.Account),
		bookings:   make(map[int64]domain.Booking),
		lessons:    make(map[int64]domain.Lesson),
		ratings:    make(map[pairKey]int),
		quizzes:    make(map[int64]domain.Quiz),
		progress:   make(map[pairKey]domain.Progress),
		awarded:    make(map[pairKey]domain.AwardedBadge),
		rewards:    make(map[int64]domain.Reward),
		classrooms: make(map[int64]domain.Classroom),
		members:    make(map[pairKey]domain.Membership),
	}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		seq:         copyMap(d.seq),
		accounts:    copyMap(d.accounts),
		ledger:      append([]domain.LedgerEntry(nil), d.ledger...),
		bookings:    copyMap(d.bookings),
		lessons:     copyMap(d.lessons),
		ratings:     copyMap(d.ratings),
		quizzes:     copyMap(d.quizzes),
		submissions: append([]domain.Submission(nil), d.submissions...),
		progress:    copyMap(d.progress),
		badges:      append([]domain.Badge(nil), d.badges...),
		awarded:     copyMap(d.awarded),
		rewards:     copyMap(d.rewards),
		classrooms:  copyMap(d.classrooms),
		members:     copyMap(d.members),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *dataset) next(table string) int64 {
	d.seq[table]++
	return d.seq[table]
}

func sortedValues[V any](m map[int64]V) []V {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// tx implements app.Tx over a private dataset copy. Locks are implicit since
// the whole unit of work holds the store mutex.
type tx struct {
	d *dataset
}

var _ app.Tx = (*tx)(nil)

func (t *tx) InsertAccount(_ context.Context, a *domain.Account) error {
	for _, existing := range t.d.accounts {
		if existing.Email == a.Email {
			return domain.Conflict("memory.InsertAccount", nil)
		}
	}
	a.ID = t.d.next("accounts")
	t.d.accounts[a.ID] = *a
	return nil
}

func (t *tx) GetAccount(_ context.Context, id int64) (domain.Account, error) {
	a, ok := t.d.accounts[id]
	if !ok {
		return domain.Account{}, domain.NotFound(domain.ErrAccountNotFound)
	}
	return a, nil
}

func (t *tx) GetAccountByEmail(_ context.Context, email string) (domain.Account, error) {
	for _, a := range t.d.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return domain.Account{}, domain.NotFound(domain.ErrAccountNotFound)
}

func (t *tx) LockAccount(ctx context.Context, id int64) (domain.Account, error) {
	return t.GetAccount(ctx, id)
}

func (t *tx) ListAccounts(_ context.Context, role domain.Role) ([]domain.Account, error) {
	out := []domain.Account{}
	for _, a := range sortedValues(t.d.accounts) {
		if role == "" || a.Role == role {
			out = append(out, a)
		}
	}
	return out, nil
}

// UpdateProfile writes every account field except the balance.
func (t *tx) UpdateProfile(_ context.Context, a domain.Account) error {
	cur, ok := t.d.accounts[a.ID]
	if !ok {
		return domain.NotFound(domain.ErrAccountNotFound)
	}
	a.Balance = cur.Balance
	t.d.accounts[a.ID] = a
	return nil
}

func (t *tx) SetBalance(_ context.Context, accountID, balance int64) error {
	a, ok := t.d.accounts[accountID]
	if !ok {
		return domain.NotFound(domain.ErrAccountNotFound)
	}
	a.Balance = balance
	t.d.accounts[accountID] = a
	return nil
}

func (t *tx) InsertLedgerEntry(_ context.Context, e *domain.LedgerEntry) error {
	e.ID = t.d.next("ledger")
	t.d.ledger = append(t.d.ledger, *e)
	return nil
}

func (t *tx) ListLedgerEntries(_ context.Context, accountID int64) ([]domain.LedgerEntry, error) {
	out := []domain.LedgerEntry{}
	for _, e := range t.d.ledger {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *tx) InsertBooking(_ context.Context, b *domain.Booking) error {
	b.ID = t.d.next("bookings")
	t.d.bookings[b.ID] = *b
	return nil
}

func (t *tx) LockBooking(_ context.Context, id int64) (domain.Booking, error) {
	b, ok := t.d.bookings[id]
	if !ok {
		return domain.Booking{}, domain.NotFound(domain.ErrBookingNotFound)
	}
	return b, nil
}

func (t *tx) UpdateBooking(_ context.Context, b domain.Booking) error {
	if _, ok := t.d.bookings[b.ID]; !ok {
		return domain.NotFound(domain.ErrBookingNotFound)
	}
	t.d.bookings[b.ID] = b
	return nil
}

func (t *tx) ListBookings(_ context.Context, f app.BookingFilter) ([]domain.Booking, error) {
	out := []domain.Booking{}
	for _, b := range t.d.bookings {
		if f.RequesterID != 0 && b.RequesterID != f.RequesterID {
			continue
		}
		if f.ProviderID != 0 && b.ProviderID != f.ProviderID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.After(out[j].ScheduledAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (t *tx) InsertLesson(_ context.Context, l *domain.Lesson) error {
	l.ID = t.d.next("lessons")
	t.d.lessons[l.ID] = *l
	return nil
}

func (t *tx) GetLesson(_ context.Context, id int64) (domain.Lesson, error) {
	l, ok := t.d.lessons[id]
	if !ok {
		return domain.Lesson{}, domain.NotFound(domain.ErrLessonNotFound)
	}
	return l, nil
}

func (t *tx) ListLessons(_ context.Context) ([]domain.Lesson, error) {
	return sortedValues(t.d.lessons), nil
}

func (t *tx) IncrementLessonViews(_ context.Context, id int64) error {
	l, ok := t.d.lessons[id]
	if !ok {
		return domain.NotFound(domain.ErrLessonNotFound)
	}
	l.Views++
	t.d.lessons[id] = l
	return nil
}

func (t *tx) IncrementLessonCompletions(_ context.Context, id int64) error {
	l, ok := t.d.lessons[id]
	if !ok {
		return domain.NotFound(domain.ErrLessonNotFound)
	}
	l.Completions++
	t.d.lessons[id] = l
	return nil
}

func (t *tx) UpsertLessonRating(_ context.Context, r domain.LessonRating) (domain.Lesson, error) {
	l, ok := t.d.lessons[r.LessonID]
	if !ok {
		return domain.Lesson{}, domain.NotFound(domain.ErrLessonNotFound)
	}
	t.d.ratings[pairKey{r.AccountID, r.LessonID}] = r.Stars

	var lessonSum, lessonN, providerSum, providerN int64
	for k, stars := range t.d.ratings {
		if k.b == l.ID {
			lessonSum += int64(stars)
			lessonN++
		}
		if rated, ok := t.d.lessons[k.b]; ok && rated.ProviderID == l.ProviderID {
			providerSum += int64(stars)
			providerN++
		}
	}
	l.Rating = average(lessonSum, lessonN)
	l.RatingCount = lessonN
	t.d.lessons[l.ID] = l

	if p, ok := t.d.accounts[l.ProviderID]; ok {
		p.Rating = average(providerSum, providerN)
		p.TotalReviews = int(providerN)
		t.d.accounts[p.ID] = p
	}
	return l, nil
}

func average(sum, n int64) float64 {
	if n == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(n)*100) / 100
}

func (t *tx) InsertQuiz(_ context.Context, q *domain.Quiz) error {
	q.ID = t.d.next("quizzes")
	questions := make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.ID = t.d.next("questions")
		question.QuizID = q.ID
		questions[i] = question
	}
	q.Questions = questions
	stored := *q
	stored.Questions = append([]domain.Question(nil), questions...)
	t.d.quizzes[q.ID] = stored
	return nil
}

func (t *tx) LoadQuiz(_ context.Context, id int64) (domain.Quiz, error) {
	q, ok := t.d.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.NotFound(domain.ErrQuizNotFound)
	}
	q.Questions = append([]domain.Question(nil), q.Questions...)
	return q, nil
}

func (t *tx) CountSubmissions(_ context.Context, accountID, quizID int64) (int, error) {
	n := 0
	for _, s := range t.d.submissions {
		if s.AccountID == accountID && s.QuizID == quizID {
			n++
		}
	}
	return n, nil
}

func (t *tx) InsertSubmission(_ context.Context, s *domain.Submission) error {
	s.ID = t.d.next("submissions")
	t.d.submissions = append(t.d.submissions, *s)
	return nil
}

func (t *tx) CountPerfectSubmissions(_ context.Context, accountID int64) (int64, error) {
	var n int64
	for _, s := range t.d.submissions {
		if s.AccountID == accountID && s.Score >= domain.PerfectScore {
			n++
		}
	}
	return n, nil
}

func (t *tx) InsertProgressIfAbsent(_ context.Context, p domain.Progress) (bool, error) {
	key := pairKey{p.AccountID, p.LessonID}
	if _, ok := t.d.progress[key]; ok {
		return false, nil
	}
	p.ID = t.d.next("progress")
	t.d.progress[key] = p
	return true, nil
}

func (t *tx) LockProgress(_ context.Context, accountID, lessonID int64) (domain.Progress, error) {
	p, ok := t.d.progress[pairKey{accountID, lessonID}]
	if !ok {
		return domain.Progress{}, domain.NotFound(domain.ErrProgressNotFound)
	}
	return p, nil
}

func (t *tx) UpdateProgress(_ context.Context, p domain.Progress) error {
	key := pairKey{p.AccountID, p.LessonID}
	if _, ok := t.d.progress[key]; !ok {
		return domain.NotFound(domain.ErrProgressNotFound)
	}
	t.d.progress[key] = p
	return nil
}

func (t *tx) ListProgress(_ context.Context, accountID int64) ([]domain.Progress, error) {
	out := []domain.Progress{}
	for k, p := range t.d.progress {
		if k.a == accountID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) CountCompletedLessons(_ context.Context, accountIDs ...int64) (map[int64]int64, error) {
	want := make(map[int64]bool, len(accountIDs))
	for _, id := range accountIDs {
		want[id] = true
	}
	out := make(map[int64]int64, len(accountIDs))
	for k, p := range t.d.progress {
		if want[k.a] && p.Status == domain.ProgressCompleted {
			out[k.a]++
		}
	}
	return out, nil
}

func (t *tx) InsertBadgeIfAbsent(_ context.Context, b *domain.Badge) (bool, error) {
	for _, existing := range t.d.badges {
		if existing.Name == b.Name {
			*b = existing
			return false, nil
		}
	}
	b.ID = t.d.next("badges")
	t.d.badges = append(t.d.badges, *b)
	return true, nil
}

func (t *tx) ListBadges(_ context.Context) ([]domain.Badge, error) {
	return append([]domain.Badge{}, t.d.badges...), nil
}

func (t *tx) ListAwardedBadges(_ context.Context, accountID int64) ([]domain.AwardedBadge, error) {
	out := []domain.AwardedBadge{}
	for k, a := range t.d.awarded {
		if k.a == accountID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BadgeID < out[j].BadgeID })
	return out, nil
}

func (t *tx) AwardBadgeIfAbsent(_ context.Context, a domain.AwardedBadge) (bool, error) {
	key := pairKey{a.AccountID, a.BadgeID}
	if _, ok := t.d.awarded[key]; ok {
		return false, nil
	}
	t.d.awarded[key] = a
	return true, nil
}

func (t *tx) InsertRewardIfAbsent(_ context.Context, r *domain.Reward) (bool, error) {
	want := rewardKey{r.AccountID, r.Type, r.Value}
	for _, existing := range t.d.rewards {
		if (rewardKey{existing.AccountID, existing.Type, existing.Value}) == want {
			return false, nil
		}
	}
	r.ID = t.d.next("rewards")
	t.d.rewards[r.ID] = *r
	return true, nil
}

func (t *tx) RewardWithDescriptionExists(_ context.Context, accountID int64, description string) (bool, error) {
	for _, r := range t.d.rewards {
		if r.AccountID == accountID && r.Description == description {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) LockReward(_ context.Context, id int64) (domain.Reward, error) {
	r, ok := t.d.rewards[id]
	if !ok {
		return domain.Reward{}, domain.NotFound(domain.ErrRewardNotFound)
	}
	return r, nil
}

func (t *tx) UpdateReward(_ context.Context, r domain.Reward) error {
	if _, ok := t.d.rewards[r.ID]; !ok {
		return domain.NotFound(domain.ErrRewardNotFound)
	}
	t.d.rewards[r.ID] = r
	return nil
}

func (t *tx) ListRewards(_ context.Context, accountID int64) ([]domain.Reward, error) {
	out := []domain.Reward{}
	for _, r := range sortedValues(t.d.rewards) {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *tx) InsertClassroom(_ context.Context, c *domain.Classroom) error {
	for _, existing := range t.d.classrooms {
		if existing.JoinCode == c.JoinCode {
			return domain.Conflict("memory.InsertClassroom", nil)
		}
	}
	c.ID = t.d.next("classrooms")
	t.d.classrooms[c.ID] = *c
	return nil
}

func (t *tx) GetClassroom(_ context.Context, id int64) (domain.Classroom, error) {
	c, ok := t.d.classrooms[id]
	if !ok {
		return domain.Classroom{}, domain.NotFound(domain.ErrClassroomNotFound)
	}
	return c, nil
}

func (t *tx) GetClassroomByCode(_ context.Context, code string) (domain.Classroom, error) {
	for _, c := range t.d.classrooms {
		if c.JoinCode == code {
			return c, nil
		}
	}
	return domain.Classroom{}, domain.NotFound(domain.ErrClassroomNotFound)
}

func (t *tx) InsertMembershipIfAbsent(_ context.Context, m domain.Membership) (bool, error) {
	key := pairKey{m.ClassroomID, m.AccountID}
	if _, ok := t.d.members[key]; ok {
		return false, nil
	}
	t.d.members[key] = m
	return true, nil
}

func (t *tx) DeleteMembership(_ context.Context, classroomID, accountID int64) (bool, error) {
	key := pairKey{classroomID, accountID}
	if _, ok := t.d.members[key]; !ok {
		return false, nil
	}
	delete(t.d.members, key)
	return true, nil
}

func (t *tx) ListMembers(_ context.Context, classroomID int64) ([]domain.Membership, error) {
	out := []domain.Membership{}
	for k, m := range t.d.members {
		if k.a == classroomID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}
