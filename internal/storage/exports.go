package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const exportColumns = "id, job_id, format, file_path, exported_at, record_count, includes_comments, anonymized"

// InsertExportRecord documents a produced export bundle.
func (s *Store) InsertExportRecord(ctx context.Context, rec *ExportRecord) error {
	if rec.ExportedAt.IsZero() {
		rec.ExportedAt = utcNow()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO export_records (
            job_id, format, file_path, exported_at, record_count,
            includes_comments, anonymized
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID,
		rec.Format,
		rec.FilePath,
		rec.ExportedAt.Format(timeFormat),
		rec.RecordCount,
		boolToInt(rec.IncludesComments),
		boolToInt(rec.Anonymized),
	)
	if err != nil {
		return fmt.Errorf("insert export record: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// ListExportRecords returns export records most recent first, optionally
// filtered to one job (jobID <= 0 means all).
func (s *Store) ListExportRecords(ctx context.Context, jobID int64) ([]*ExportRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if jobID > 0 {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT `+exportColumns+` FROM export_records WHERE job_id = ? ORDER BY id DESC`,
			jobID,
		)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+exportColumns+` FROM export_records ORDER BY id DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("list export records: %w", err)
	}
	defer rows.Close()

	var records []*ExportRecord
	for rows.Next() {
		rec, err := scanExportRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetExportRecord fetches one export record. Returns nil when absent.
func (s *Store) GetExportRecord(ctx context.Context, id int64) (*ExportRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+exportColumns+` FROM export_records WHERE id = ?`, id)
	rec, err := scanExportRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get export record: %w", err)
	}
	return rec, nil
}

func scanExportRecord(scanner rowScanner) (*ExportRecord, error) {
	var (
		rec              ExportRecord
		exportedRaw      sql.NullString
		includesComments int
		anonymized       int
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.JobID,
		&rec.Format,
		&rec.FilePath,
		&exportedRaw,
		&rec.RecordCount,
		&includesComments,
		&anonymized,
	); err != nil {
		return nil, err
	}
	rec.IncludesComments = includesComments != 0
	rec.Anonymized = anonymized != 0
	if exportedRaw.Valid {
		if t, err := parseTimeString(exportedRaw.String); err == nil {
			rec.ExportedAt = t
		}
	}
	return &rec, nil
}
