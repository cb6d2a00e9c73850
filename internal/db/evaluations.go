package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrEvaluationNotFound is returned when an evaluation is not found.
var ErrEvaluationNotFound = errors.New("evaluation not found")

// Evaluation is one recorded run of the safety pipeline.
type Evaluation struct {
	ID             string    `json:"id" yaml:"id"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	Query          string    `json:"query,omitempty" yaml:"query,omitempty"`
	Command        string    `json:"command" yaml:"command"`
	IsSafe         bool      `json:"is_safe" yaml:"is_safe"`
	Confidence     float64   `json:"confidence" yaml:"confidence"`
	Source         string    `json:"source" yaml:"source"`
	Rationale      string    `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	MatchedPattern string    `json:"matched_pattern,omitempty" yaml:"matched_pattern,omitempty"`
	Gated          bool      `json:"gated,omitempty" yaml:"gated,omitempty"`
	Executed       bool      `json:"executed" yaml:"executed"`
	// ExitCode is nil until the command has run.
	ExitCode *int `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
}

const evaluationColumns = `id, created_at, query, command, is_safe, confidence, source, rationale, matched_pattern, gated, executed, exit_code`

// CreateEvaluation inserts e, generating its ID and timestamp when unset.
func (db *DB) CreateEvaluation(e *Evaluation) error {
	if e.Command == "" {
		return fmt.Errorf("command is required")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var exitCode sql.NullInt64
	if e.ExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*e.ExitCode), Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO evaluations (`+evaluationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.CreatedAt.UTC().Format(timeFormat), e.Query, e.Command, e.IsSafe, e.Confidence,
		e.Source, e.Rationale, e.MatchedPattern, e.Gated, e.Executed, exitCode)
	if err != nil {
		return fmt.Errorf("creating evaluation: %w", err)
	}
	return nil
}

// MarkExecuted records the exit code of an executed evaluation.
func (db *DB) MarkExecuted(id string, exitCode int) error {
	result, err := db.Exec(`
		UPDATE evaluations SET executed = 1, exit_code = ? WHERE id = ?
	`, exitCode, id)
	if err != nil {
		return fmt.Errorf("marking evaluation executed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEvaluationNotFound
	}
	return nil
}

// GetEvaluation retrieves an evaluation by ID.
func (db *DB) GetEvaluation(id string) (*Evaluation, error) {
	row := db.QueryRow(`SELECT `+evaluationColumns+` FROM evaluations WHERE id = ?`, id)
	e, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEvaluationNotFound
	}
	return e, err
}

// ListEvaluations returns up to limit evaluations, newest first.
// A non-positive limit returns all rows.
func (db *DB) ListEvaluations(limit int, unsafeOnly bool) ([]*Evaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations`
	if unsafeOnly {
		query += ` WHERE is_safe = 0`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying evaluations: %w", err)
	}
	defer rows.Close()

	var out []*Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating evaluations: %w", err)
	}
	return out, nil
}

// PruneBefore deletes evaluations created before cutoff and returns the count removed.
func (db *DB) PruneBefore(cutoff time.Time) (int64, error) {
	result, err := db.Exec(`DELETE FROM evaluations WHERE created_at < ?`, cutoff.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("pruning evaluations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(s scanner) (*Evaluation, error) {
	e := &Evaluation{}
	var createdAt string
	var exitCode sql.NullInt64

	err := s.Scan(&e.ID, &createdAt, &e.Query, &e.Command, &e.IsSafe, &e.Confidence,
		&e.Source, &e.Rationale, &e.MatchedPattern, &e.Gated, &e.Executed, &exitCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning evaluation: %w", err)
	}

	e.CreatedAt, err = time.Parse(timeFormat, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		e.ExitCode = &code
	}
	return e, nil
}
