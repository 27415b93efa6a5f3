package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Times are unix milliseconds; weak areas are JSON arrays.
const sqliteSchema = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS difficulty_states (
    student_id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    current_level TEXT NOT NULL DEFAULT 'BEGINNER'
        CHECK (current_level IN ('BEGINNER', 'INTERMEDIATE', 'ADVANCED')),
    consecutive_high_scores INTEGER NOT NULL DEFAULT 0 CHECK (consecutive_high_scores >= 0),
    consecutive_low_scores INTEGER NOT NULL DEFAULT 0 CHECK (consecutive_low_scores >= 0),
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (student_id, course_id),
    CHECK (consecutive_high_scores = 0 OR consecutive_low_scores = 0)
);

CREATE TABLE IF NOT EXISTS topic_masteries (
    student_id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    topic_name TEXT NOT NULL,
    attempt_count INTEGER NOT NULL,
    correct_total INTEGER NOT NULL,
    question_total INTEGER NOT NULL,
    average_score_percent REAL NOT NULL,
    time_spent_seconds_total INTEGER NOT NULL,
    trend TEXT NOT NULL,
    weak_areas TEXT NOT NULL DEFAULT '[]',
    last_attempt_at INTEGER NOT NULL,
    PRIMARY KEY (student_id, course_id, topic_name),
    FOREIGN KEY (student_id, course_id) REFERENCES difficulty_states(student_id, course_id),
    CHECK (correct_total <= question_total)
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    topic_name TEXT NOT NULL,
    quiz_kind TEXT NOT NULL CHECK (quiz_kind IN ('NORMAL', 'AI')),
    score INTEGER NOT NULL,
    total_questions INTEGER NOT NULL CHECK (total_questions > 0),
    difficulty_at_attempt TEXT NOT NULL,
    time_spent_seconds INTEGER NOT NULL,
    weak_areas TEXT NOT NULL DEFAULT '[]',
    attempted_at INTEGER NOT NULL,
    CHECK (score >= 0 AND score <= total_questions)
);

CREATE INDEX IF NOT EXISTS idx_quiz_attempts_topic
    ON quiz_attempts (student_id, course_id, topic_name, attempted_at DESC);
CREATE INDEX IF NOT EXISTS idx_quiz_attempts_student ON quiz_attempts (student_id);

CREATE TABLE IF NOT EXISTS course_topics (
    course_id TEXT NOT NULL,
    name TEXT NOT NULL,
    position INTEGER NOT NULL,
    content_count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (course_id, name)
);
`

// NewSQLite opens (or creates) the database at path and ensures the schema exists.
// A single connection serializes writers, which also keeps ":memory:" databases alive.
func NewSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return db, nil
}
