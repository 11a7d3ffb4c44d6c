// Package journal keeps a local SQLite record of every item the print server
// handled. It is an audit trail only: nothing in the print path reads it back.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"time"

	"papercrumpler/internal/models"
	"papercrumpler/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// Entry is one journal row. Sender and Line are stored encrypted when
// journal encryption is enabled.
type Entry struct {
	ID         int64                `json:"id"`
	ItemID     string               `json:"item_id"`
	Sender     string               `json:"sender"`
	Source     string               `json:"source"`
	Line       string               `json:"line"`
	State      string               `json:"state"`
	Reason     models.FailureReason `json:"reason,omitempty"`
	Error      string               `json:"error,omitempty"`
	RecordedAt time.Time            `json:"recorded_at"`
}

type Journal struct {
	db        *sql.DB
	encryptor *encryptor
	now       func() time.Time
}

// Open creates or opens the journal file at path and applies the schema.
func Open(path string) (*Journal, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid journal path: %w", err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to create journal file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close journal file: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	fail := func(step string, err error) (*Journal, error) {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("%s: %w (close error: %v)", step, err, closeErr)
		}
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := db.Ping(); err != nil {
		return fail("failed to ping journal", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return fail("failed to initialize schema", err)
	}

	enc, err := newEncryptor()
	if err != nil {
		return fail("failed to initialize encryptor", err)
	}

	return &Journal{db: db, encryptor: enc, now: time.Now}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends e. A zero RecordedAt is set to the current time.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	sender, err := j.encryptor.encrypt(e.Sender)
	if err != nil {
		return fmt.Errorf("failed to encrypt sender: %w", err)
	}
	line, err := j.encryptor.encrypt(e.Line)
	if err != nil {
		return fmt.Errorf("failed to encrypt line: %w", err)
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = j.now()
	}

	return retryableOperation(ctx, func() error {
		_, err := j.db.ExecContext(ctx, insertEntryQuery,
			e.ItemID, sender, e.Source, line, e.State, string(e.Reason), e.Error, e.RecordedAt.UTC())
		return err
	}, "record journal entry")
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, selectRecentQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	return j.scanEntries(rows)
}

// ForItem returns the history of one item, oldest first.
func (j *Journal) ForItem(ctx context.Context, itemID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, selectByItemQuery, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	return j.scanEntries(rows)
}

// CountUnresolvedSince counts items that hit reason at or after since and
// were not archived by a later attempt.
func (j *Journal) CountUnresolvedSince(ctx context.Context, reason models.FailureReason, since time.Time) (int, error) {
	var count int
	err := j.db.QueryRowContext(ctx, countUnresolvedSinceQuery,
		string(reason), since.UTC(), models.StateArchived.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return count, nil
}

// Prune deletes entries older than retentionDays and returns how many went.
func (j *Journal) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}
	cutoff := j.now().AddDate(0, 0, -retentionDays).UTC()

	var removed int64
	err := retryableOperation(ctx, func() error {
		res, err := j.db.ExecContext(ctx, pruneBeforeQuery, cutoff)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	}, "prune journal")
	return removed, err
}

func (j *Journal) scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var reason string
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Sender, &e.Source, &e.Line,
			&e.State, &reason, &e.Error, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Reason = models.FailureReason(reason)

		var err error
		if e.Sender, err = j.encryptor.decrypt(e.Sender); err != nil {
			return nil, fmt.Errorf("failed to decrypt sender: %w", err)
		}
		if e.Line, err = j.encryptor.decrypt(e.Line); err != nil {
			return nil, fmt.Errorf("failed to decrypt line: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}
