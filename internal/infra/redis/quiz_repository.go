package redis

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/domain"
)

// QuizRepository caches grading data in Redis and falls back to a loader on cache miss.
// Answer keys are stored as: HSET quiz:{quizID}:answers {questionID} {letter}
// Points are stored as:      HSET quiz:{quizID}:points  {questionID} {points}
// Settings are stored as:    HSET quiz:{quizID}:meta    lesson_id|passing_score|max_attempts|points_reward|title
type QuizRepository struct {
	client *redis.Client
	loader app.QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader app.QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	if quiz, ok := r.fromCache(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(strconv.FormatInt(quizID, 10), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.fromCache(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.store(ctx, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) fromCache(ctx context.Context, quizID int64) (domain.Quiz, bool) {
	pipe := r.client.Pipeline()
	metaCmd := pipe.HGetAll(ctx, metaKey(quizID))
	answersCmd := pipe.HGetAll(ctx, answersKey(quizID))
	pointsCmd := pipe.HGetAll(ctx, pointsKey(quizID))
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Quiz{}, false
	}
	meta := metaCmd.Val()
	answers := answersCmd.Val()
	if len(meta) == 0 || len(answers) == 0 {
		return domain.Quiz{}, false
	}
	return buildQuizFromCache(quizID, meta, answers, pointsCmd.Val()), true
}

// store is best-effort; a failed write only costs a reload later.
func (r *QuizRepository) store(ctx context.Context, quiz domain.Quiz) {
	answerKey, pointKey, settingsKey := answersKey(quiz.ID), pointsKey(quiz.ID), metaKey(quiz.ID)
	ttl := r.ttlWithJitter()

	pipe := r.client.Pipeline()
	pipe.Del(ctx, answerKey, pointKey, settingsKey)
	for _, q := range quiz.Questions {
		pipe.HSet(ctx, answerKey, q.ID, q.CorrectAnswer)
		pipe.HSet(ctx, pointKey, q.ID, q.Points)
	}
	pipe.HSet(ctx, settingsKey,
		"lesson_id", quiz.LessonID,
		"passing_score", quiz.PassingScore,
		"max_attempts", quiz.MaxAttempts,
		"points_reward", quiz.PointsReward,
		"title", quiz.Title,
	)
	if ttl > 0 {
		pipe.Expire(ctx, answerKey, ttl)
		pipe.Expire(ctx, pointKey, ttl)
		pipe.Expire(ctx, settingsKey, ttl)
	}
	_, _ = pipe.Exec(ctx)
}

func answersKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":answers"
}

func pointsKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":points"
}

func metaKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":meta"
}

func buildQuizFromCache(quizID int64, meta, answers, pointsMap map[string]string) domain.Quiz {
	quiz := domain.Quiz{
		ID:           quizID,
		LessonID:     parseInt64(meta["lesson_id"]),
		Title:        meta["title"],
		PassingScore: int(parseInt64(meta["passing_score"])),
		MaxAttempts:  int(parseInt64(meta["max_attempts"])),
		PointsReward: parseInt64(meta["points_reward"]),
	}
	for rawID, letter := range answers {
		id := parseInt64(rawID)
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:            id,
			QuizID:        quizID,
			Points:        int(parseInt64(pointsMap[rawID])),
			CorrectAnswer: letter,
			// prompt not cached in this lightweight form
		})
	}
	sort.Slice(quiz.Questions, func(i, j int) bool { return quiz.Questions[i].ID < quiz.Questions[j].ID })
	for i := range quiz.Questions {
		quiz.Questions[i].Position = i + 1
	}
	return quiz
}

func parseInt64(raw string) int64 {
	v, _ := strconv.ParseInt(raw, 10, 64)
	return v
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
