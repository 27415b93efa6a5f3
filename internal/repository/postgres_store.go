package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"adaptive-backend/internal/adaptive"
	"adaptive-backend/internal/models"
)

const pgUniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RecordAttempt locks the enrollment row with SELECT ... FOR UPDATE so concurrent attempts on
// the same (student, course) fold one after another, even across processes.
func (s *PostgresStore) RecordAttempt(ctx context.Context, a models.AttemptRecord, fold FoldFunc) (models.TopicMastery, models.DifficultyState, error) {
	var zeroM models.TopicMastery
	var zeroS models.DifficultyState

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return zeroM, zeroS, unavailable("begin attempt tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO difficulty_states (student_id, course_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		a.StudentID, a.CourseID,
	); err != nil {
		return zeroM, zeroS, unavailable("ensure enrollment", err)
	}

	state, err := pgState(ctx, tx, a.StudentID, a.CourseID, true)
	if err != nil {
		return zeroM, zeroS, err
	}
	mastery, err := pgTopic(ctx, tx, a.StudentID, a.CourseID, a.TopicName)
	if err != nil && !errors.Is(err, adaptive.ErrNotFound) {
		return zeroM, zeroS, err
	}

	m, st := fold(mastery, state)

	attemptTags, _ := json.Marshal(nonNilTags(a.WeakAreas))
	_, err = tx.Exec(ctx, `
		INSERT INTO quiz_attempts (id, student_id, course_id, topic_name, quiz_kind, score, total_questions,
			difficulty_at_attempt, time_spent_seconds, weak_areas, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.StudentID, a.CourseID, a.TopicName, string(a.QuizKind), a.Score, a.TotalQuestions,
		string(a.DifficultyAtAttempt), a.TimeSpentSeconds, attemptTags, a.AttemptedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return zeroM, zeroS, adaptive.ErrDuplicateAttempt
		}
		return zeroM, zeroS, unavailable("insert attempt", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE difficulty_states
		SET current_level = $3, consecutive_high_scores = $4, consecutive_low_scores = $5, updated_at = $6
		WHERE student_id = $1 AND course_id = $2`,
		st.StudentID, st.CourseID, string(st.CurrentLevel), st.ConsecutiveHighScores, st.ConsecutiveLowScores, st.UpdatedAt,
	); err != nil {
		return zeroM, zeroS, unavailable("save difficulty state", err)
	}

	masteryTags, _ := json.Marshal(nonNilTags(m.WeakAreas))
	if _, err := tx.Exec(ctx, `
		INSERT INTO topic_masteries (student_id, course_id, topic_name, attempt_count, correct_total, question_total,
			average_score_percent, time_spent_seconds_total, trend, weak_areas, last_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (student_id, course_id, topic_name) DO UPDATE SET
			attempt_count = EXCLUDED.attempt_count,
			correct_total = EXCLUDED.correct_total,
			question_total = EXCLUDED.question_total,
			average_score_percent = EXCLUDED.average_score_percent,
			time_spent_seconds_total = EXCLUDED.time_spent_seconds_total,
			trend = EXCLUDED.trend,
			weak_areas = EXCLUDED.weak_areas,
			last_attempt_at = EXCLUDED.last_attempt_at`,
		m.StudentID, m.CourseID, m.TopicName, m.AttemptCount, m.CorrectTotal, m.QuestionTotal,
		m.AverageScorePercent, m.TimeSpentSecondsTotal, string(m.Trend), masteryTags, m.LastAttemptAt,
	); err != nil {
		return zeroM, zeroS, unavailable("save topic mastery", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return zeroM, zeroS, unavailable("commit attempt", err)
	}
	return m, st, nil
}

func (s *PostgresStore) Enroll(ctx context.Context, studentID, courseID string) (models.DifficultyState, error) {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO difficulty_states (student_id, course_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		studentID, courseID,
	); err != nil {
		return models.DifficultyState{}, unavailable("enroll", err)
	}
	return pgState(ctx, s.pool, studentID, courseID, false)
}

func (s *PostgresStore) GetCourse(ctx context.Context, studentID, courseID string) (*CourseSnapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, unavailable("begin course read", err)
	}
	defer tx.Rollback(ctx)

	state, err := pgState(ctx, tx, studentID, courseID, false)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT student_id, course_id, topic_name, attempt_count, correct_total, question_total,
			average_score_percent, time_spent_seconds_total, trend, weak_areas, last_attempt_at
		FROM topic_masteries WHERE student_id = $1 AND course_id = $2 ORDER BY topic_name`,
		studentID, courseID,
	)
	if err != nil {
		return nil, unavailable("list topics", err)
	}
	defer rows.Close()

	snap := &CourseSnapshot{State: state, Topics: []models.TopicMastery{}}
	for rows.Next() {
		m, err := scanPgTopic(rows)
		if err != nil {
			return nil, unavailable("scan topic", err)
		}
		snap.Topics = append(snap.Topics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list topics", err)
	}
	return snap, nil
}

func (s *PostgresStore) ListEnrollments(ctx context.Context, studentID string) ([]models.DifficultyState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT student_id, course_id, current_level, consecutive_high_scores, consecutive_low_scores, updated_at
		FROM difficulty_states WHERE student_id = $1 ORDER BY course_id`, studentID)
	if err != nil {
		return nil, unavailable("list enrollments", err)
	}
	defer rows.Close()

	var out []models.DifficultyState
	for rows.Next() {
		var st models.DifficultyState
		if err := rows.Scan(&st.StudentID, &st.CourseID, &st.CurrentLevel, &st.ConsecutiveHighScores,
			&st.ConsecutiveLowScores, &st.UpdatedAt); err != nil {
			return nil, unavailable("scan enrollment", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list enrollments", err)
	}
	return out, nil
}

func (s *PostgresStore) ListAttempts(ctx context.Context, studentID, courseID, topic string, limit int) ([]models.AttemptRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, student_id, course_id, topic_name, quiz_kind, score, total_questions,
			difficulty_at_attempt, time_spent_seconds, weak_areas, attempted_at
		FROM quiz_attempts
		WHERE student_id = $1 AND course_id = $2 AND ($3::text = '' OR topic_name = $3)
		ORDER BY attempted_at DESC, created_at DESC
		LIMIT $4`,
		studentID, courseID, topic, clampLimit(limit),
	)
	if err != nil {
		return nil, unavailable("list attempts", err)
	}
	defer rows.Close()

	out := []models.AttemptRecord{}
	for rows.Next() {
		var a models.AttemptRecord
		var tags []byte
		if err := rows.Scan(&a.ID, &a.StudentID, &a.CourseID, &a.TopicName, &a.QuizKind, &a.Score, &a.TotalQuestions,
			&a.DifficultyAtAttempt, &a.TimeSpentSeconds, &tags, &a.AttemptedAt); err != nil {
			return nil, unavailable("scan attempt", err)
		}
		a.WeakAreas = decodeTags(string(tags))
		a.AttemptedAt = a.AttemptedAt.UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list attempts", err)
	}
	return out, nil
}

func (s *PostgresStore) QuizKindTotals(ctx context.Context, studentID string) (map[models.QuizKind]KindTotals, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT quiz_kind, COUNT(*)::int, COALESCE(SUM(score), 0)::int, COALESCE(SUM(total_questions), 0)::int,
			COALESCE(SUM(time_spent_seconds), 0)::int
		FROM quiz_attempts WHERE student_id = $1 GROUP BY quiz_kind`, studentID)
	if err != nil {
		return nil, unavailable("quiz kind totals", err)
	}
	defer rows.Close()

	totals := make(map[models.QuizKind]KindTotals)
	for rows.Next() {
		var kind models.QuizKind
		var t KindTotals
		if err := rows.Scan(&kind, &t.Attempts, &t.Correct, &t.Questions, &t.TimeSpentSeconds); err != nil {
			return nil, unavailable("scan quiz kind totals", err)
		}
		totals[kind] = t
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("quiz kind totals", err)
	}
	return totals, nil
}

func (s *PostgresStore) PutCatalog(ctx context.Context, courseID string, topics []models.CatalogTopic) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("begin catalog tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM course_topics WHERE course_id = $1", courseID); err != nil {
		return unavailable("clear catalog", err)
	}

	batch := &pgx.Batch{}
	for _, t := range topics {
		batch.Queue("INSERT INTO course_topics (course_id, name, position, content_count) VALUES ($1, $2, $3, $4)",
			courseID, t.Name, t.Position, t.ContentCount)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return unavailable("insert catalog topics", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit catalog", err)
	}
	return nil
}

func (s *PostgresStore) GetCatalog(ctx context.Context, courseID string) ([]models.CatalogTopic, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT name, position, content_count FROM course_topics WHERE course_id = $1 ORDER BY position, name", courseID)
	if err != nil {
		return nil, unavailable("get catalog", err)
	}
	defer rows.Close()

	out := []models.CatalogTopic{}
	for rows.Next() {
		var t models.CatalogTopic
		if err := rows.Scan(&t.Name, &t.Position, &t.ContentCount); err != nil {
			return nil, unavailable("scan catalog topic", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("get catalog", err)
	}
	return out, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping postgres", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgState(ctx context.Context, q pgQuerier, studentID, courseID string, forUpdate bool) (models.DifficultyState, error) {
	query := `SELECT student_id, course_id, current_level, consecutive_high_scores, consecutive_low_scores, updated_at
		FROM difficulty_states WHERE student_id = $1 AND course_id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var st models.DifficultyState
	err := q.QueryRow(ctx, query, studentID, courseID).Scan(
		&st.StudentID, &st.CourseID, &st.CurrentLevel, &st.ConsecutiveHighScores, &st.ConsecutiveLowScores, &st.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, adaptive.ErrNotFound
	}
	if err != nil {
		return st, unavailable("get difficulty state", err)
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, nil
}

func pgTopic(ctx context.Context, q pgQuerier, studentID, courseID, topic string) (models.TopicMastery, error) {
	row := q.QueryRow(ctx, `
		SELECT student_id, course_id, topic_name, attempt_count, correct_total, question_total,
			average_score_percent, time_spent_seconds_total, trend, weak_areas, last_attempt_at
		FROM topic_masteries WHERE student_id = $1 AND course_id = $2 AND topic_name = $3`,
		studentID, courseID, topic)
	m, err := scanPgTopic(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.TopicMastery{}, adaptive.ErrNotFound
	}
	if err != nil {
		return models.TopicMastery{}, unavailable("get topic mastery", err)
	}
	return m, nil
}

func scanPgTopic(r rowScanner) (models.TopicMastery, error) {
	var m models.TopicMastery
	var tags []byte
	var last time.Time
	if err := r.Scan(&m.StudentID, &m.CourseID, &m.TopicName, &m.AttemptCount, &m.CorrectTotal, &m.QuestionTotal,
		&m.AverageScorePercent, &m.TimeSpentSecondsTotal, &m.Trend, &tags, &last); err != nil {
		return m, err
	}
	m.WeakAreas = decodeTags(string(tags))
	m.LastAttemptAt = last.UTC()
	return m, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
