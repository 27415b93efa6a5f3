package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"adaptive-backend/internal/adaptive"
	"adaptive-backend/internal/models"
)

// SQLiteStore is the embedded Store. The database must be opened with a single connection
// (database.NewSQLite does this), so every transaction here is the only writer.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) RecordAttempt(ctx context.Context, a models.AttemptRecord, fold FoldFunc) (models.TopicMastery, models.DifficultyState, error) {
	var zeroM models.TopicMastery
	var zeroS models.DifficultyState

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return zeroM, zeroS, unavailable("begin attempt tx", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM quiz_attempts WHERE id = ?)", a.ID.String()).Scan(&exists); err != nil {
		return zeroM, zeroS, unavailable("check attempt id", err)
	}
	if exists {
		return zeroM, zeroS, adaptive.ErrDuplicateAttempt
	}

	state, err := sqliteState(ctx, tx, a.StudentID, a.CourseID)
	if errors.Is(err, adaptive.ErrNotFound) {
		state = models.NewDifficultyState(a.StudentID, a.CourseID)
		state.UpdatedAt = time.Now().UTC()
	} else if err != nil {
		return zeroM, zeroS, err
	}

	mastery, err := sqliteTopic(ctx, tx, a.StudentID, a.CourseID, a.TopicName)
	if err != nil && !errors.Is(err, adaptive.ErrNotFound) {
		return zeroM, zeroS, err
	}

	m, st := fold(mastery, state)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO difficulty_states (student_id, course_id, current_level, consecutive_high_scores, consecutive_low_scores, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, course_id) DO UPDATE SET
			current_level = excluded.current_level,
			consecutive_high_scores = excluded.consecutive_high_scores,
			consecutive_low_scores = excluded.consecutive_low_scores,
			updated_at = excluded.updated_at`,
		st.StudentID, st.CourseID, string(st.CurrentLevel), st.ConsecutiveHighScores, st.ConsecutiveLowScores, st.UpdatedAt.UnixMilli(),
	); err != nil {
		return zeroM, zeroS, unavailable("save difficulty state", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO topic_masteries (student_id, course_id, topic_name, attempt_count, correct_total, question_total,
			average_score_percent, time_spent_seconds_total, trend, weak_areas, last_attempt_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, course_id, topic_name) DO UPDATE SET
			attempt_count = excluded.attempt_count,
			correct_total = excluded.correct_total,
			question_total = excluded.question_total,
			average_score_percent = excluded.average_score_percent,
			time_spent_seconds_total = excluded.time_spent_seconds_total,
			trend = excluded.trend,
			weak_areas = excluded.weak_areas,
			last_attempt_at = excluded.last_attempt_at`,
		m.StudentID, m.CourseID, m.TopicName, m.AttemptCount, m.CorrectTotal, m.QuestionTotal,
		m.AverageScorePercent, m.TimeSpentSecondsTotal, string(m.Trend), encodeTags(m.WeakAreas), m.LastAttemptAt.UnixMilli(),
	); err != nil {
		return zeroM, zeroS, unavailable("save topic mastery", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO quiz_attempts (id, student_id, course_id, topic_name, quiz_kind, score, total_questions,
			difficulty_at_attempt, time_spent_seconds, weak_areas, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.StudentID, a.CourseID, a.TopicName, string(a.QuizKind), a.Score, a.TotalQuestions,
		string(a.DifficultyAtAttempt), a.TimeSpentSeconds, encodeTags(a.WeakAreas), a.AttemptedAt.UnixMilli(),
	); err != nil {
		return zeroM, zeroS, unavailable("insert attempt", err)
	}

	if err := tx.Commit(); err != nil {
		return zeroM, zeroS, unavailable("commit attempt", err)
	}
	return m, st, nil
}

func (s *SQLiteStore) Enroll(ctx context.Context, studentID, courseID string) (models.DifficultyState, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO difficulty_states (student_id, course_id, current_level, updated_at)
		VALUES (?, ?, 'BEGINNER', ?)
		ON CONFLICT (student_id, course_id) DO NOTHING`,
		studentID, courseID, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return models.DifficultyState{}, unavailable("enroll", err)
	}
	return sqliteState(ctx, s.db, studentID, courseID)
}

func (s *SQLiteStore) GetCourse(ctx context.Context, studentID, courseID string) (*CourseSnapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin course read", err)
	}
	defer tx.Rollback()

	state, err := sqliteState(ctx, tx, studentID, courseID)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT student_id, course_id, topic_name, attempt_count, correct_total, question_total,
			average_score_percent, time_spent_seconds_total, trend, weak_areas, last_attempt_at
		FROM topic_masteries WHERE student_id = ? AND course_id = ? ORDER BY topic_name`,
		studentID, courseID,
	)
	if err != nil {
		return nil, unavailable("list topics", err)
	}
	defer rows.Close()

	snap := &CourseSnapshot{State: state, Topics: []models.TopicMastery{}}
	for rows.Next() {
		m, err := scanSQLiteTopic(rows)
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

func (s *SQLiteStore) ListEnrollments(ctx context.Context, studentID string) ([]models.DifficultyState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT student_id, course_id, current_level, consecutive_high_scores, consecutive_low_scores, updated_at
		FROM difficulty_states WHERE student_id = ? ORDER BY course_id`, studentID)
	if err != nil {
		return nil, unavailable("list enrollments", err)
	}
	defer rows.Close()

	var out []models.DifficultyState
	for rows.Next() {
		st, err := scanSQLiteState(rows)
		if err != nil {
			return nil, unavailable("scan enrollment", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list enrollments", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, studentID, courseID, topic string, limit int) ([]models.AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, course_id, topic_name, quiz_kind, score, total_questions,
			difficulty_at_attempt, time_spent_seconds, weak_areas, attempted_at
		FROM quiz_attempts
		WHERE student_id = ? AND course_id = ? AND (? = '' OR topic_name = ?)
		ORDER BY attempted_at DESC, rowid DESC
		LIMIT ?`,
		studentID, courseID, topic, topic, clampLimit(limit),
	)
	if err != nil {
		return nil, unavailable("list attempts", err)
	}
	defer rows.Close()

	out := []models.AttemptRecord{}
	for rows.Next() {
		var a models.AttemptRecord
		var tags string
		var at int64
		if err := rows.Scan(&a.ID, &a.StudentID, &a.CourseID, &a.TopicName, &a.QuizKind, &a.Score, &a.TotalQuestions,
			&a.DifficultyAtAttempt, &a.TimeSpentSeconds, &tags, &at); err != nil {
			return nil, unavailable("scan attempt", err)
		}
		a.WeakAreas = decodeTags(tags)
		a.AttemptedAt = time.UnixMilli(at).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list attempts", err)
	}
	return out, nil
}

func (s *SQLiteStore) QuizKindTotals(ctx context.Context, studentID string) (map[models.QuizKind]KindTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT quiz_kind, COUNT(*), COALESCE(SUM(score), 0), COALESCE(SUM(total_questions), 0), COALESCE(SUM(time_spent_seconds), 0)
		FROM quiz_attempts WHERE student_id = ? GROUP BY quiz_kind`, studentID)
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

func (s *SQLiteStore) PutCatalog(ctx context.Context, courseID string, topics []models.CatalogTopic) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin catalog tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM course_topics WHERE course_id = ?", courseID); err != nil {
		return unavailable("clear catalog", err)
	}
	for _, t := range topics {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO course_topics (course_id, name, position, content_count) VALUES (?, ?, ?, ?)",
			courseID, t.Name, t.Position, t.ContentCount,
		); err != nil {
			return unavailable("insert catalog topic", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit catalog", err)
	}
	return nil
}

func (s *SQLiteStore) GetCatalog(ctx context.Context, courseID string) ([]models.CatalogTopic, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, position, content_count FROM course_topics WHERE course_id = ? ORDER BY position, name", courseID)
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

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping sqlite", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func sqliteState(ctx context.Context, q sqlQuerier, studentID, courseID string) (models.DifficultyState, error) {
	row := q.QueryRowContext(ctx, `
		SELECT student_id, course_id, current_level, consecutive_high_scores, consecutive_low_scores, updated_at
		FROM difficulty_states WHERE student_id = ? AND course_id = ?`, studentID, courseID)
	st, err := scanSQLiteState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DifficultyState{}, adaptive.ErrNotFound
	}
	if err != nil {
		return models.DifficultyState{}, unavailable("get difficulty state", err)
	}
	return st, nil
}

func scanSQLiteState(r rowScanner) (models.DifficultyState, error) {
	var st models.DifficultyState
	var updated int64
	if err := r.Scan(&st.StudentID, &st.CourseID, &st.CurrentLevel, &st.ConsecutiveHighScores, &st.ConsecutiveLowScores, &updated); err != nil {
		return st, err
	}
	st.UpdatedAt = time.UnixMilli(updated).UTC()
	return st, nil
}

func sqliteTopic(ctx context.Context, q sqlQuerier, studentID, courseID, topic string) (models.TopicMastery, error) {
	row := q.QueryRowContext(ctx, `
		SELECT student_id, course_id, topic_name, attempt_count, correct_total, question_total,
			average_score_percent, time_spent_seconds_total, trend, weak_areas, last_attempt_at
		FROM topic_masteries WHERE student_id = ? AND course_id = ? AND topic_name = ?`,
		studentID, courseID, topic)
	m, err := scanSQLiteTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TopicMastery{}, adaptive.ErrNotFound
	}
	if err != nil {
		return models.TopicMastery{}, unavailable("get topic mastery", err)
	}
	return m, nil
}

func scanSQLiteTopic(r rowScanner) (models.TopicMastery, error) {
	var m models.TopicMastery
	var tags string
	var last int64
	if err := r.Scan(&m.StudentID, &m.CourseID, &m.TopicName, &m.AttemptCount, &m.CorrectTotal, &m.QuestionTotal,
		&m.AverageScorePercent, &m.TimeSpentSecondsTotal, &m.Trend, &tags, &last); err != nil {
		return m, err
	}
	m.WeakAreas = decodeTags(tags)
	m.LastAttemptAt = time.UnixMilli(last).UTC()
	return m, nil
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeTags(raw string) []string {
	tags := []string{}
	if raw == "" {
		return tags
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return []string{}
	}
	return tags
}
