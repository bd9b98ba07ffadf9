package db

import (
	"context"
	"database/sql"
)

type Queries struct {
	db *sql.DB
}

func New(database *sql.DB) *Queries {
	return &Queries{db: database}
}

type Enrollment struct {
	ID          int64
	Url         string
	Title       string
	Source      string
	Success     bool
	Reason      string
	Message     string
	AttemptedAt int64
}

type RecordEnrollmentParams struct {
	Url         string
	Title       string
	Source      string
	Success     bool
	Reason      string
	Message     string
	AttemptedAt int64
}

const recordEnrollment = `
INSERT INTO enrollment_history (url, title, source, success, reason, message, attempted_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) RecordEnrollment(ctx context.Context, arg RecordEnrollmentParams) error {
	_, err := q.db.ExecContext(ctx, recordEnrollment,
		arg.Url, arg.Title, arg.Source, arg.Success, arg.Reason, arg.Message, arg.AttemptedAt)
	return err
}

const listRecentEnrollments = `
SELECT id, url, title, source, success, reason, message, attempted_at
FROM enrollment_history
ORDER BY attempted_at DESC, id DESC
LIMIT ?
`

func (q *Queries) ListRecentEnrollments(ctx context.Context, limit int64) ([]Enrollment, error) {
	rows, err := q.db.QueryContext(ctx, listRecentEnrollments, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Enrollment
	for rows.Next() {
		var e Enrollment
		err := rows.Scan(&e.ID, &e.Url, &e.Title, &e.Source,
			&e.Success, &e.Reason, &e.Message, &e.AttemptedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const countSuccessfulSince = `
SELECT COUNT(*) FROM enrollment_history
WHERE success = 1 AND attempted_at >= ?
`

func (q *Queries) CountSuccessfulSince(ctx context.Context, since int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countSuccessfulSince, since).Scan(&count)
	return count, err
}
