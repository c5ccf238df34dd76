package postgres

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/domain"
)

const uniqueViolation = "23505"

// Open returns a bun handle over the pgdriver connector.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Store implements app.Store on Postgres. Lock* methods use SELECT ... FOR UPDATE.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx app.Tx) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(&txRepo{tx: tx})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

// mapErr classifies driver errors: no rows becomes notFound, unique
// violations become conflicts, anything else passes through.
func mapErr(op string, err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows) && notFound != nil:
		return domain.NotFound(notFound)
	case isUniqueViolation(err):
		return domain.Conflict(op, err)
	default:
		return err
	}
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type txRepo struct {
	tx bun.Tx
}

var _ app.Tx = (*txRepo)(nil)

func (r *txRepo) InsertAccount(ctx context.Context, a *domain.Account) error {
	row := accountFromDomain(*a)
	row.ID = 0
	if _, err := r.tx.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return mapErr("postgres.InsertAccount", err, nil)
	}
	a.ID = row.ID
	return nil
}

func (r *txRepo) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	var row accountRow
	err := r.tx.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	return row.toDomain(), mapErr("postgres.GetAccount", err, domain.ErrAccountNotFound)
}

func (r *txRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	var row accountRow
	err := r.tx.NewSelect().Model(&row).Where("email = ?", email).Scan(ctx)
	return row.toDomain(), mapErr("postgres.GetAccountByEmail", err, domain.ErrAccountNotFound)
}

func (r *txRepo) LockAccount(ctx context.Context, id int64) (domain.Account, error) {
	var row accountRow
	err := r.tx.NewSelect().Model(&row).Where("id = ?", id).For("UPDATE").Scan(ctx)
	return row.toDomain(), mapErr("postgres.LockAccount", err, domain.ErrAccountNotFound)
}

func (r *txRepo) ListAccounts(ctx context.Context, role domain.Role) ([]domain.Account, error) {
	var rows []accountRow
	q := r.tx.NewSelect().Model(&rows).Order("id ASC")
	if role != "" {
		q = q.Where("role = ?", string(role))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Account, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *txRepo) UpdateProfile(ctx context.Context, a domain.Account) error {
	row := accountFromDomain(a)
	_, err := r.tx.NewUpdate().Model(&row).
		Column("first_name", "last_name", "premium", "bio", "specialization", "rating", "total_reviews", "available").
		WherePK().
		Exec(ctx)
	return mapErr("postgres.UpdateProfile", err, nil)
}

func (r *txRepo) SetBalance(ctx context.Context, accountID, balance int64) error {
	res, err := r.tx.NewUpdate().Model((*accountRow)(nil)).
		Set("balance = ?", balance).
		Where("id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if ok, err := affected(res); err != nil || !ok {
		if err != nil {
			return err
		}
		return domain.NotFound(domain.ErrAccountNotFound)
	}
	return nil
}

func (r *txRepo) InsertLedgerEntry(ctx context.Context, e *domain.LedgerEntry) error {
	row := ledgerRow{
		AccountID:     e.AccountID,
		Direction:     string(e.Direction),
		Reason:        string(e.Reason),
		Amount:        e.Amount,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		RefType:       e.RefType,
		RefID:         e.RefID,
		Note:          e.Note,
		CreatedAt:     e.CreatedAt,
	}
	if _, err := r.tx.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return err
	}
	e.ID = row.ID
	return nil
}

func (r *txRepo) ListLedgerEntries(ctx context.Context, accountID int64) ([]domain.LedgerEntry, error) {
	var rows []ledgerRow
	if err := r.tx.NewSelect().Model(&rows).Where("account_id = ?", accountID).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEntry, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *txRepo) InsertBooking(ctx context.Context, b *domain.Booking) error {
	row := bookingFromDomain(*b)
	row.ID = 0
	if _, err := r.tx.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return err
	}
	b.ID = row.ID
	return nil
}

func (r *txRepo) LockBooking(ctx context.Context, id int64) (domain.Booking, error) {
	var row bookingRow
	err := r.tx.NewSelect().Model(&row).Where("id = ?", id).For("UPDATE").Scan(ctx)
	return row.toDomain(), mapErr("postgres.LockBooking", err, domain.ErrBookingNotFound)
}

func (r *txRepo) UpdateBooking(ctx context.Context, b domain.Booking) error {
	row := bookingFromDomain(b)
	_, err := r.tx.NewUpdate().Model(&row).
		Column("status", "response", "meeting_link", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

func (r *txRepo) ListBookings(ctx context.Context, f app.BookingFilter) ([]domain.Booking, error) {
	var rows []bookingRow
	q := r.tx.NewSelect().Model(&rows).Order("scheduled_at DESC", "id DESC")
	if f.RequesterID != 0 {
		q = q.Where("requester_id = ?", f.RequesterID)
	}
	if f.ProviderID != 0 {
		q = q.Where("provider_id = ?", f.ProviderID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Booking, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *txRepo) InsertLesson(ctx context.Context, l *domain.Lesson) error {
	row := lessonRow{
		ProviderID: l.ProviderID,
		Title:      l.Title,
		Level:      string(l.Level),
		Category:   l.Category,
		Published:  l.Published,
		CreatedAt:  l.CreatedAt,
	}
	if _, err := r.tx.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return err
	}
	l.ID = row.ID
	return nil
}

func (r *txRepo) GetLesson(ctx context.Context, id int64) (domain.Lesson, error) {
	var row lessonRow
	err := r.tx.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	return row.toDomain(), mapErr("postgres.GetLesson", err, domain.ErrLessonNotFound)
}

func (r *txRepo) ListLessons(ctx context.Context) ([]domain.Lesson, error) {
	var rows []lessonRow
	if err := r.tx.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Lesson, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *txRepo) bumpLesson(ctx context.Context, id int64, expr string) error {
	res, err := r.tx.NewUpdate().Model((*lessonRow)(nil)).Set(expr).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound(domain.ErrLessonNotFound)
	}
	return nil
}

func (r *txRepo) IncrementLessonViews(ctx context.Context, id int64) error {
	return r.bumpLesson(ctx, id, "views = views + 1")
}

func (r *txRepo) IncrementLessonCompletions(ctx context.Context, id int64) error {
	return r.bumpLesson(ctx, id, "completions = completions + 1")
}

func (r *txRepo) UpsertLessonRating(ctx context.Context, rating domain.LessonRating) (domain.Lesson, error) {
	lesson, err := r.GetLesson(ctx, rating.LessonID)
	if err != nil {
		return domain.Lesson{}, err
	}
	row := ratingRow{AccountID: rating.AccountID, LessonID: rating.LessonID, Stars: rating.Stars}
	if _, err := r.tx.NewInsert().Model(&row).
		On("CONFLICT (account_id, lesson_id) DO UPDATE").
		Set("stars = EXCLUDED.stars").
		Exec(ctx); err != nil {
		return domain.Lesson{}, err
	}

	var lessonAgg struct {
		Avg float64 `bun:"avg"`
		N   int64   `bun:"n"`
	}
	if err := r.tx.NewSelect().Model((*ratingRow)(nil)).
		ColumnExpr("COALESCE(AVG(stars), 0) AS avg").
		ColumnExpr("COUNT(*) AS n").
		Where("lesson_id = ?", lesson.ID).
		Scan(ctx, &lessonAgg); err != nil {
		return domain.Lesson{}, err
	}
	lesson.Rating = round2(lessonAgg.Avg)
	lesson.RatingCount = lessonAgg.N
	if _, err := r.tx.NewUpdate().Model((*lessonRow)(nil)).
		Set("rating = ?", lesson.Rating).
		Set("rating_count = ?", lesson.RatingCount).
		Where("id = ?", lesson.ID).
		Exec(ctx); err != nil {
		return domain.Lesson{}, err
	}

	var providerAgg struct {
		Avg float64 `bun:"avg"`
		N   int64   `bun:"n"`
	}
	if err := r.tx.NewSelect().TableExpr("lesson_ratings AS r").
		Join("JOIN lessons AS l ON l.id = r.lesson_id").
		ColumnExpr("COALESCE(AVG(r.stars), 0) AS avg").
		ColumnExpr("COUNT(*) AS n").
		Where("l.provider_id = ?", lesson.ProviderID).
		Scan(ctx, &providerAgg); err != nil {
		return domain.Lesson{}, err
	}
	if _, err := r.tx.NewUpdate().Model((*accountRow)(nil)).
		Set("rating = ?", round2(providerAgg.Avg)).
		Set("total_reviews = ?", providerAgg.N).
		Where("id = ?", lesson.ProviderID).
		Exec(ctx); err != nil {
		return domain.Lesson{}, err
	}
	return lesson, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (r *txRepo) InsertQuiz(ctx context.Context, q *domain.Quiz) error {
	row := quizRow{
		LessonID:     q.LessonID,
		Title:        q.Title,
		PassingScore: q.PassingScore,
		MaxAttempts:  q.MaxAttempts,
		PointsReward: q.PointsReward,
	}
	if _, err := r.tx.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return err
	}
	q.ID = row.ID
	if len(q.Questions) == 0 {
		return nil
	}
	rows := make([]questionRow, len(q.Questions))
	for i, question := range q.Questions {
		rows[i] = questionRow{
			QuizID:        q.ID,
			Prompt:        question.Prompt,
			Points:        question.Points,
			CorrectAnswer: question.CorrectAnswer,
			Position:      question.Position,
		}
	}
	if _, err := r.tx.NewInsert().Model(&rows).Returning("id").Exec(ctx); err != nil {
		return err
	}
	for i := range q.Questions {
		q.Questions[i].ID = rows[i].ID
		q.Questions[i].QuizID = q.ID
	}
	return nil
}

func (r *txRepo) LoadQuiz(ctx context.Context, id int64) (domain.Quiz, error) {
	var row quizRow
	if err := r.tx.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.Quiz{}, mapErr("postgres.LoadQuiz", err, domain.ErrQuizNotFound)
	}
	var questions []questionRow
	if err := r.tx.NewSelect().Model(&questions).Where("quiz_id = ?", id).Order("position ASC", "id ASC").Scan(ctx); err != nil {
		return domain.Quiz{}, err
	}
	quiz := domain.Quiz{
		ID:           row.ID,
		LessonID:     row.LessonID,
		Title:        row.Title,
		PassingScore: row.PassingScore,
		MaxAttempts:  row.MaxAttempts,
		PointsReward: row.PointsReward,
	}
	for _, q := range questions {
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:            q.ID,
			QuizID:        q.QuizID,
			Prompt:        q.Prompt,
			Points:        q.Points,
			CorrectAnswer: q.CorrectAnswer,
			Position:      q.Position,
		})
	}
	return quiz, nil
}

func (r *txRepo) CountSubmissions(ctx context.Context, accountID, quizID int64) (int, error) {
	return r.tx.NewSelect().Model((*submissionRow)(nil)).
		Where("account_id = ?", accountID).
		Where("quiz_id = ?", quizID).
		Count(ctx)
}

func (r *txRepo) InsertSubmission(ctx context.Context, s *domain.Submission) error {
	row := submissionRow{
		AccountID:        s.AccountID,
		QuizID:           s.QuizID,
		Answers:          s.Answers,
		Score:            s.Score,
		Passed:           s.Passed,
		PointsEarned:     s.PointsEarned,
		AttemptNumber:    s.AttemptNumber,
		TimeTakenSeconds: s.TimeTakenSeconds,
		CreatedAt:        s.CreatedAt,
	}
	if row.Answers == nil {
		row.Answers = map[int64]string{}
	}
	if _, err := r.tx.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return mapErr("postgres.InsertSubmission", err, nil)
	}
	s.ID = row.ID
	return nil
}

func (r *txRepo) CountPerfectSubmissions(ctx context.Context, accountID int64) (int64, error) {
	n, err := r.tx.NewSelect().Model((*submissionRow)(nil)).
		Where("account_id = ?", accountID).
		Where("score >= ?", domain.PerfectScore).
		Count(ctx)
	return int64(n), err
}

func (r *txRepo) InsertProgressIfAbsent(ctx context.Context, p domain.Progress) (bool, error) {
	row := progressFromDomain(p)
	row.ID = 0
	res, err := r.tx.NewInsert().Model(&row).
		On("CONFLICT (account_id, lesson_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *txRepo) LockProgress(ctx context.Context, accountID, lessonID int64) (domain.Progress, error) {
	var row progressRow
	err := r.tx.NewSelect().Model(&row).
		Where("account_id = ?", accountID).
		Where("lesson_id = ?", lessonID).
		For("UPDATE").
		Scan(ctx)
	return row.toDomain(), mapErr("postgres.LockProgress", err, domain.ErrProgressNotFound)
}

func (r *txRepo) UpdateProgress(ctx context.Context, p domain.Progress) error {
	row := progressFromDomain(p)
	_, err := r.tx.NewUpdate().Model(&row).
		Column("status", "best_score", "quiz_attempts", "started_at", "last_accessed_at", "completed_at").
		WherePK().
		Exec(ctx)
	return err
}

func (r *txRepo) ListProgress(ctx context.Context, accountID int64) ([]domain.Progress, error) {
	var rows []progressRow
	if err := r.tx.NewSelect().Model(&rows).Where("account_id = ?", accountID).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Progress, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *txRepo) CountCompletedLessons(ctx context.Context, accountIDs ...int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(accountIDs))
	if len(accountIDs) == 0 {
		return out, nil
	}
	var counts []struct {
		AccountID int64 `bun:"account_id"`
		N         int64 `bun:"n"`
	}
	err := r.tx.NewSelect().Model((*progressRow)(nil)).
		Column("account_id").
		ColumnExpr("COUNT(*) AS n").
		Where("status = ?", string(domain.ProgressCompleted)).
		Where("account_id IN (?)", bun.In(accountIDs)).
		Group("account_id").
		Scan(ctx, &counts)
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		out[c.AccountID] = c.N
	}
	return out, nil
}

func (r *txRepo) InsertBadgeIfAbsent(ctx context.Context, b *domain.Badge) (bool, error) {
	row := badgeRow{Name: b.Name, Description: b.Description, CriteriaType: string(b.Criteria), CriteriaValue: b.Threshold}
	res, err := r.tx.NewInsert().Model(&row).On("CONFLICT (name) DO NOTHING").Returning("id").Exec(ctx)
	if err != nil {
		return false, err
	}
	created, err := affected(res)
	if err != nil {
		return false, err
	}
	if !created {
		var existing badgeRow
		if err := r.tx.NewSelect().Model(&existing).Where("name = ?", b.Name).Scan(ctx); err != nil {
			return false, err
		}
		*b = existing.toDomain()
		return false, nil
	}
	b.ID = row.ID
	return true, nil
}

func (r *txRepo) ListBadges(ctx context.Context) ([]domain.Badge, error) {
	var rows []badgeRow
	if err := r.tx.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Badge, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *txRepo) ListAwardedBadges(ctx context.Context, accountID int64) ([]domain.AwardedBadge, error) {
	var rows []awardedBadgeRow
	if err := r.tx.NewSelect().Model(&rows).Where("account_id = ?", accountID).Order("badge_id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.AwardedBadge, len(rows))
	for i, row := range rows {
		out[i] = domain.AwardedBadge{AccountID: row.AccountID, BadgeID: row.BadgeID, AwardedAt: row.AwardedAt}
	}
	return out, nil
}

func (r *txRepo) AwardBadgeIfAbsent(ctx context.Context, a domain.AwardedBadge) (bool, error) {
	row := awardedBadgeRow{AccountID: a.AccountID, BadgeID: a.BadgeID, AwardedAt: a.AwardedAt}
	res, err := r.tx.NewInsert().Model(&row).On("CONFLICT (account_id, badge_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *txRepo) InsertRewardIfAbsent(ctx context.Context, rw *domain.Reward) (bool, error) {
	row := rewardFromDomain(*rw)
	row.ID = 0
	res, err := r.tx.NewInsert().Model(&row).
		On("CONFLICT (account_id, reward_type, value) DO NOTHING").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	created, err := affected(res)
	if err != nil || !created {
		return false, err
	}
	rw.ID = row.ID
	return true, nil
}

func (r *txRepo) RewardWithDescriptionExists(ctx context.Context, accountID int64, description string) (bool, error) {
	return r.tx.NewSelect().Model((*rewardRow)(nil)).
		Where("account_id = ?", accountID).
		Where("description = ?", description).
		Exists(ctx)
}

func (r *txRepo) LockReward(ctx context.Context, id int64) (domain.Reward, error) {
	var row rewardRow
	err := r.tx.NewSelect().Model(&row).Where("id = ?", id).For("UPDATE").Scan(ctx)
	return row.toDomain(), mapErr("postgres.LockReward", err, domain.ErrRewardNotFound)
}

func (r *txRepo) UpdateReward(ctx context.Context, rw domain.Reward) error {
	row := rewardFromDomain(rw)
	_, err := r.tx.NewUpdate().Model(&row).Column("status", "claimed_at").WherePK().Exec(ctx)
	return err
}

func (r *txRepo) ListRewards(ctx context.Context, accountID int64) ([]domain.Reward, error) {
	var rows []rewardRow
	if err := r.tx.NewSelect().Model(&rows).Where("account_id = ?", accountID).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Reward, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *txRepo) InsertClassroom(ctx context.Context, c *domain.Classroom) error {
	row := classroomRow{OwnerID: c.OwnerID, Name: c.Name, JoinCode: c.JoinCode, CreatedAt: c.CreatedAt}
	if _, err := r.tx.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return mapErr("postgres.InsertClassroom", err, nil)
	}
	c.ID = row.ID
	return nil
}

func (r *txRepo) GetClassroom(ctx context.Context, id int64) (domain.Classroom, error) {
	var row classroomRow
	err := r.tx.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	return row.toDomain(), mapErr("postgres.GetClassroom", err, domain.ErrClassroomNotFound)
}

func (r *txRepo) GetClassroomByCode(ctx context.Context, code string) (domain.Classroom, error) {
	var row classroomRow
	err := r.tx.NewSelect().Model(&row).Where("join_code = ?", code).Scan(ctx)
	return row.toDomain(), mapErr("postgres.GetClassroomByCode", err, domain.ErrClassroomNotFound)
}

func (r *txRepo) InsertMembershipIfAbsent(ctx context.Context, m domain.Membership) (bool, error) {
	row := memberRow{ClassroomID: m.ClassroomID, AccountID: m.AccountID, JoinedAt: m.JoinedAt}
	res, err := r.tx.NewInsert().Model(&row).On("CONFLICT (classroom_id, account_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *txRepo) DeleteMembership(ctx context.Context, classroomID, accountID int64) (bool, error) {
	res, err := r.tx.NewDelete().Model((*memberRow)(nil)).
		Where("classroom_id = ?", classroomID).
		Where("account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *txRepo) ListMembers(ctx context.Context, classroomID int64) ([]domain.Membership, error) {
	var rows []memberRow
	if err := r.tx.NewSelect().Model(&rows).Where("classroom_id = ?", classroomID).Order("account_id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Membership, len(rows))
	for i, row := range rows {
		out[i] = domain.Membership{ClassroomID: row.ClassroomID, AccountID: row.AccountID, JoinedAt: row.JoinedAt}
	}
	return out, nil
}
