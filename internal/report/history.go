package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"wording-sync/internal/core/deploy"
)

// historyPragmas are applied by the driver to every pooled connection.
const historyPragmas = "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

const historySchema = `
CREATE TABLE IF NOT EXISTS deployments (
    row_id INTEGER PRIMARY KEY AUTOINCREMENT,
    deployment_id TEXT NOT NULL,
    parent_row INTEGER,
    site_id TEXT NOT NULL,
    page_name TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    total_keys INTEGER NOT NULL DEFAULT 0,
    applied INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    missing INTEGER NOT NULL DEFAULT 0,
    warning_count INTEGER NOT NULL DEFAULT 0,
    error_count INTEGER NOT NULL DEFAULT 0,
    cancelled BOOLEAN NOT NULL DEFAULT 0,
    body TEXT NOT NULL,
    FOREIGN KEY (parent_row) REFERENCES deployments(row_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_deployments_id ON deployments(deployment_id);
CREATE INDEX IF NOT EXISTS idx_deployments_parent ON deployments(parent_row);
`

// ErrNotFound is returned by History.Get for an unknown deployment id.
var ErrNotFound = errors.New("deployment not found in history")

// History is a sqlite log of deployment reports. Per-page reports of a
// multi-page run are stored as children of the synthetic top-level row.
type History struct {
	db   *sql.DB
	path string
}

// HistoryEntry summarises one recorded top-level deployment.
type HistoryEntry struct {
	DeploymentID string
	SiteID       string
	PageName     string
	Timestamp    string
	Stats        deploy.Stats
	Warnings     int
	Errors       int
	Pages        int
	Cancelled    bool
}

// OpenHistory opens or creates the history database at path.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path+"?"+historyPragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &History{db: db, path: path}, nil
}

// Path returns the database file path.
func (h *History) Path() string { return h.path }

// Close releases the database.
func (h *History) Close() error { return h.db.Close() }

// Record stores r and its nested page reports in one transaction.
func (h *History) Record(ctx context.Context, r *deploy.DeploymentReport) error {
	if r == nil {
		return fmt.Errorf("nil report")
	}
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	parent, err := insertReport(ctx, tx, r, nil)
	if err != nil {
		return err
	}
	for i := range r.MultiPageReports {
		if _, err := insertReport(ctx, tx, &r.MultiPageReports[i], &parent); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertReport(ctx context.Context, tx *sql.Tx, r *deploy.DeploymentReport, parent *int64) (int64, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return 0, err
	}
	var parentRow sql.NullInt64
	if parent != nil {
		parentRow = sql.NullInt64{Int64: *parent, Valid: true}
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO deployments (deployment_id, parent_row, site_id, page_name, timestamp,
			total_keys, applied, failed, missing, warning_count, error_count, cancelled, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.DeploymentID, parentRow, r.SiteID, r.PageName, r.Timestamp,
		r.Stats.TotalKeys, r.Stats.Applied, r.Stats.Failed, r.Stats.Missing,
		len(r.Warnings), len(r.Errors), r.Cancelled, string(body))
	if err != nil {
		return 0, fmt.Errorf("failed to record deployment %s: %w", r.DeploymentID, err)
	}
	return res.LastInsertId()
}

// Recent lists the latest top-level deployments, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT d.deployment_id, d.site_id, d.page_name, d.timestamp,
			d.total_keys, d.applied, d.failed, d.missing,
			d.warning_count, d.error_count, d.cancelled,
			(SELECT COUNT(*) FROM deployments c WHERE c.parent_row = d.row_id)
		FROM deployments d
		WHERE d.parent_row IS NULL
		ORDER BY d.row_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.DeploymentID, &e.SiteID, &e.PageName, &e.Timestamp,
			&e.Stats.TotalKeys, &e.Stats.Applied, &e.Stats.Failed, &e.Stats.Missing,
			&e.Warnings, &e.Errors, &e.Cancelled, &e.Pages); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get loads the full top-level report recorded under id.
func (h *History) Get(ctx context.Context, id string) (*deploy.DeploymentReport, error) {
	var body string
	err := h.db.QueryRowContext(ctx, `
		SELECT body FROM deployments
		WHERE deployment_id = ? AND parent_row IS NULL
		ORDER BY row_id DESC LIMIT 1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return Parse([]byte(body))
}
