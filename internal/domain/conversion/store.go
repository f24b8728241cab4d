package conversion

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// createdAtLayout is fixed width so created_at sorts lexically.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

const conversionColumns = `id, input_name, input_path, output_path, options, converter,
	status_code, outcome, duration_ms, size_bytes, error, created_at`

func (s *Service) insert(ctx context.Context, c *Conversion) error {
	opts, err := json.Marshal(c.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversions (`+conversionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.InputName, c.InputPath, c.OutputPath, string(opts), c.Converter,
		c.StatusCode, string(c.Outcome), c.DurationMs, c.SizeBytes, nullString(c.Error),
		c.CreatedAt.UTC().Format(createdAtLayout),
	)
	if err != nil {
		return fmt.Errorf("insert conversion: %w", err)
	}
	return nil
}

// Get returns one recorded conversion.
func (s *Service) Get(ctx context.Context, id string) (*Conversion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversionColumns+` FROM conversions WHERE id = ?`, id)
	c, err := scanConversion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversion: %w", err)
	}
	return c, nil
}

// List returns a page of conversions, newest first, and the total count.
func (s *Service) List(ctx context.Context, in ListInput) ([]*Conversion, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversionColumns+` FROM conversions
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, in.Limit, in.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversions: %w", err)
	}
	defer rows.Close()

	out := make([]*Conversion, 0, in.Limit)
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan conversion: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list conversions: %w", err)
	}
	return out, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversion(row rowScanner) (*Conversion, error) {
	var (
		c         Conversion
		opts      string
		outcome   string
		errText   sql.NullString
		createdAt string
	)
	if err := row.Scan(
		&c.ID, &c.InputName, &c.InputPath, &c.OutputPath, &opts, &c.Converter,
		&c.StatusCode, &outcome, &c.DurationMs, &c.SizeBytes, &errText, &createdAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(opts), &c.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	c.Outcome = Outcome(outcome)
	c.Error = errText.String
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	c.CreatedAt = ts
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
