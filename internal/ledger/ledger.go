// Package ledger provides the durable, append-only audit store behind
// NEXUS's index_runs and query_runs tables. Grounded on
// 54b3r-tfai-go/internal/store.SQLiteStore's WAL-mode, single-writer
// SQLite idiom, generalized from one table to the two run types and
// their richer query surface.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"

	"nexus/internal/nexuserr"
)

const (
	questionTruncateLen = 500
	answerTruncateLen   = 2000

	// timestampLayout is a fixed-width, nanosecond-resolution ISO-8601
	// string. Fixed width keeps `ORDER BY timestamp` and the cutoff
	// comparison in CleanupOldRuns correct under plain string
	// comparison, per spec §6 ("Timestamps are stored as ISO-8601
	// strings for monotone string comparison"). Nanosecond resolution
	// (rather than whole seconds) keeps two timestamps minted
	// microseconds apart from colliding, which a seconds-only encoding
	// would round into ties.
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
)

func nowStamp() string { return time.Now().UTC().Format(timestampLayout) }

func parseStamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IndexRunInput is the recorded shape of a completed index_documents
// call.
type IndexRunInput struct {
	Workspace        string
	FilesProcessed   int
	FilesSkipped     int
	TotalChunks      int
	ProcessingTimeMs int64
	DocumentSources  []string // serialised entries (path, hash, mtime, ingested_at)
	EmbedProvider    string
}

// QueryRunInput is the recorded shape of a completed query call.
type QueryRunInput struct {
	RunID         string
	Workspace     string
	Question      string
	Answer        string
	CitationCount int
	Model         string
	Provider      string
	LatencyMs     int64
	ExcerptHashes []string
}

// IndexRun is a stored index_runs row.
type IndexRun struct {
	RunID            string    `json:"run_id"`
	Workspace        string    `json:"workspace"`
	Timestamp        time.Time `json:"timestamp"`
	FilesProcessed   int       `json:"files_processed"`
	FilesSkipped     int       `json:"files_skipped"`
	TotalChunks      int       `json:"total_chunks"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	DocumentSources  []string  `json:"document_sources"`
	EmbedProvider    string    `json:"embed_provider"`
}

// QueryRun is a stored query_runs row.
type QueryRun struct {
	RunID         string    `json:"run_id"`
	Workspace     string    `json:"workspace"`
	Timestamp     time.Time `json:"timestamp"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	CitationCount int       `json:"citation_count"`
	Model         string    `json:"model"`
	Provider      string    `json:"provider"`
	LatencyMs     int64     `json:"latency_ms"`
	ExcerptHashes []string  `json:"excerpt_hashes"`
}

// WorkspaceStats aggregates a workspace's recorded runs.
type WorkspaceStats struct {
	IndexRunCount       int     `json:"index_run_count"`
	QueryRunCount       int     `json:"query_run_count"`
	FilesProcessedTotal int     `json:"files_processed_total"`
	ChunksTotal         int     `json:"chunks_total"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
	AvgLatencyMs        float64 `json:"avg_latency_ms"`
	AvgCitationCount    float64 `json:"avg_citation_count"`
}

// Ledger is the process-wide audit store, opened once at startup and
// closed once at shutdown.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) a Ledger at path and runs its schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Ledger, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.Unconfigured, err, "open ledger at %s", path)
	}
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS index_runs (
    run_id             TEXT    PRIMARY KEY,
    workspace          TEXT    NOT NULL,
    timestamp          TEXT    NOT NULL,
    files_processed    INTEGER NOT NULL,
    files_skipped      INTEGER NOT NULL,
    total_chunks       INTEGER NOT NULL,
    processing_time_ms INTEGER NOT NULL,
    document_sources   TEXT    NOT NULL,
    embed_provider     TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_index_runs_workspace_timestamp
    ON index_runs (workspace, timestamp DESC);

CREATE TABLE IF NOT EXISTS query_runs (
    run_id         TEXT    PRIMARY KEY,
    workspace      TEXT    NOT NULL,
    timestamp      TEXT    NOT NULL,
    question       TEXT    NOT NULL,
    answer         TEXT    NOT NULL,
    citation_count INTEGER NOT NULL,
    model          TEXT    NOT NULL,
    provider       TEXT    NOT NULL,
    latency_ms     INTEGER NOT NULL,
    excerpt_hashes TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_runs_workspace_timestamp
    ON query_runs (workspace, timestamp DESC);
`
	if _, err := l.db.Exec(ddl); err != nil {
		return nexuserr.Wrap(nexuserr.Unrecoverable, err, "migrate ledger schema")
	}
	return nil
}

// Close releases the database connection pool.
func (l *Ledger) Close() error { return l.db.Close() }

// RecordIndexRun mints a run id of the form
// idx_<workspace>_<yyyyMMdd_HHmmss_micros> and stores in.
func (l *Ledger) RecordIndexRun(ctx context.Context, in IndexRunInput) (string, error) {
	stamp := strings.ReplaceAll(time.Now().Format("20060102_150405.000000"), ".", "_")
	runID := fmt.Sprintf("idx_%s_%s", in.Workspace, stamp)

	sources, err := json.Marshal(in.DocumentSources)
	if err != nil {
		return "", nexuserr.Wrap(nexuserr.Unrecoverable, err, "encode document sources")
	}

	const q = `INSERT INTO index_runs
		(run_id, workspace, timestamp, files_processed, files_skipped, total_chunks, processing_time_ms, document_sources, embed_provider)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = l.db.ExecContext(ctx, q, runID, in.Workspace, nowStamp(),
		in.FilesProcessed, in.FilesSkipped, in.TotalChunks, in.ProcessingTimeMs, string(sources), in.EmbedProvider)
	if err != nil {
		return "", nexuserr.Wrap(nexuserr.Unrecoverable, err, "record index run")
	}
	return runID, nil
}

// RecordQueryRun stores in under in.RunID (the response's own run id),
// truncating question to 500 and answer to 2000 characters.
func (l *Ledger) RecordQueryRun(ctx context.Context, in QueryRunInput) (string, error) {
	runID := in.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	question := truncate(in.Question, questionTruncateLen)
	answer := truncate(in.Answer, answerTruncateLen)

	hashes, err := json.Marshal(in.ExcerptHashes)
	if err != nil {
		return "", nexuserr.Wrap(nexuserr.Unrecoverable, err, "encode excerpt hashes")
	}

	const q = `INSERT INTO query_runs
		(run_id, workspace, timestamp, question, answer, citation_count, model, provider, latency_ms, excerpt_hashes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = l.db.ExecContext(ctx, q, runID, in.Workspace, nowStamp(),
		question, answer, in.CitationCount, in.Model, in.Provider, in.LatencyMs, string(hashes))
	if err != nil {
		return "", nexuserr.Wrap(nexuserr.Unrecoverable, err, "record query run")
	}
	return runID, nil
}

// RunType selects which ledger table(s) ListRuns reads from.
type RunType string

const (
	RunTypeIndex RunType = "index"
	RunTypeQuery RunType = "query"
	RunTypeAll   RunType = "all"
)

// ListRuns returns up to limit rows per requested table, newest first,
// optionally filtered to workspace. Unrequested tables return empty
// slices, never nil-vs-empty ambiguity in the response.
func (l *Ledger) ListRuns(ctx context.Context, workspace string, runType RunType, limit int) ([]IndexRun, []QueryRun, error) {
	indexRuns := []IndexRun{}
	queryRuns := []QueryRun{}

	if runType == RunTypeIndex || runType == RunTypeAll {
		rows, err := l.queryIndexRuns(ctx, workspace, limit)
		if err != nil {
			return nil, nil, err
		}
		indexRuns = append(indexRuns, rows...)
	}
	if runType == RunTypeQuery || runType == RunTypeAll {
		rows, err := l.queryQueryRuns(ctx, workspace, limit)
		if err != nil {
			return nil, nil, err
		}
		queryRuns = append(queryRuns, rows...)
	}
	return indexRuns, queryRuns, nil
}

func (l *Ledger) queryIndexRuns(ctx context.Context, workspace string, limit int) ([]IndexRun, error) {
	q := `SELECT run_id, workspace, timestamp, files_processed, files_skipped, total_chunks, processing_time_ms, document_sources, embed_provider
		FROM index_runs`
	args := []any{}
	if workspace != "" {
		q += " WHERE workspace = ?"
		args = append(args, workspace)
	}
	q += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.Unrecoverable, err, "list index runs")
	}
	defer rows.Close()

	var out []IndexRun
	for rows.Next() {
		var r IndexRun
		var ts string
		var sources string
		if err := rows.Scan(&r.RunID, &r.Workspace, &ts, &r.FilesProcessed, &r.FilesSkipped, &r.TotalChunks, &r.ProcessingTimeMs, &sources, &r.EmbedProvider); err != nil {
			return nil, nexuserr.Wrap(nexuserr.Unrecoverable, err, "scan index run")
		}
		r.Timestamp = parseStamp(ts)
		_ = json.Unmarshal([]byte(sources), &r.DocumentSources)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *Ledger) queryQueryRuns(ctx context.Context, workspace string, limit int) ([]QueryRun, error) {
	q := `SELECT run_id, workspace, timestamp, question, answer, citation_count, model, provider, latency_ms, excerpt_hashes
		FROM query_runs`
	args := []any{}
	if workspace != "" {
		q += " WHERE workspace = ?"
		args = append(args, workspace)
	}
	q += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.Unrecoverable, err, "list query runs")
	}
	defer rows.Close()

	var out []QueryRun
	for rows.Next() {
		var r QueryRun
		var ts string
		var hashes string
		if err := rows.Scan(&r.RunID, &r.Workspace, &ts, &r.Question, &r.Answer, &r.CitationCount, &r.Model, &r.Provider, &r.LatencyMs, &hashes); err != nil {
			return nil, nexuserr.Wrap(nexuserr.Unrecoverable, err, "scan query run")
		}
		r.Timestamp = parseStamp(ts)
		_ = json.Unmarshal([]byte(hashes), &r.ExcerptHashes)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunResult tags a run row with which table it came from.
type RunResult struct {
	RunType  RunType
	IndexRun *IndexRun
	QueryRun *QueryRun
}

// GetRun searches index_runs then query_runs (fixed order) for runID,
// returning nil if present in neither.
func (l *Ledger) GetRun(ctx context.Context, runID string) (*RunResult, error) {
	indexRuns, _, err := l.queryRunsByID(ctx, runID, RunTypeIndex)
	if err != nil {
		return nil, err
	}
	if len(indexRuns) > 0 {
		return &RunResult{RunType: RunTypeIndex, IndexRun: &indexRuns[0]}, nil
	}

	_, queryRuns, err := l.queryRunsByID(ctx, runID, RunTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(queryRuns) > 0 {
		return &RunResult{RunType: RunTypeQuery, QueryRun: &queryRuns[0]}, nil
	}
	return nil, nil
}

func (l *Ledger) queryRunsByID(ctx context.Context, runID string, runType RunType) ([]IndexRun, []QueryRun, error) {
	if runType == RunTypeIndex {
		rows, err := l.db.QueryContext(ctx,
			`SELECT run_id, workspace, timestamp, files_processed, files_skipped, total_chunks, processing_time_ms, document_sources, embed_provider
			 FROM index_runs WHERE run_id = ?`, runID)
		if err != nil {
			return nil, nil, nexuserr.Wrap(nexuserr.Unrecoverable, err, "get index run")
		}
		defer rows.Close()
		var out []IndexRun
		for rows.Next() {
			var r IndexRun
			var ts string
			var sources string
			if err := rows.Scan(&r.RunID, &r.Workspace, &ts, &r.FilesProcessed, &r.FilesSkipped, &r.TotalChunks, &r.ProcessingTimeMs, &sources, &r.EmbedProvider); err != nil {
				return nil, nil, nexuserr.Wrap(nexuserr.Unrecoverable, err, "scan index run")
			}
			r.Timestamp = parseStamp(ts)
			_ = json.Unmarshal([]byte(sources), &r.DocumentSources)
			out = append(out, r)
		}
		return out, nil, rows.Err()
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, workspace, timestamp, question, answer, citation_count, model, provider, latency_ms, excerpt_hashes
		 FROM query_runs WHERE run_id = ?`, runID)
	if err != nil {
		return nil, nil, nexuserr.Wrap(nexuserr.Unrecoverable, err, "get query run")
	}
	defer rows.Close()
	var out []QueryRun
	for rows.Next() {
		var r QueryRun
		var ts string
		var hashes string
		if err := rows.Scan(&r.RunID, &r.Workspace, &ts, &r.Question, &r.Answer, &r.CitationCount, &r.Model, &r.Provider, &r.LatencyMs, &hashes); err != nil {
			return nil, nil, nexuserr.Wrap(nexuserr.Unrecoverable, err, "scan query run")
		}
		r.Timestamp = parseStamp(ts)
		_ = json.Unmarshal([]byte(hashes), &r.ExcerptHashes)
		out = append(out, r)
	}
	return nil, out, rows.Err()
}

// GetWorkspaceStats aggregates workspace's rows across both tables.
func (l *Ledger) GetWorkspaceStats(ctx context.Context, workspace string) (WorkspaceStats, error) {
	var stats WorkspaceStats

	row := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(files_processed),0), COALESCE(SUM(total_chunks),0), COALESCE(AVG(processing_time_ms),0)
		 FROM index_runs WHERE workspace = ?`, workspace)
	if err := row.Scan(&stats.IndexRunCount, &stats.FilesProcessedTotal, &stats.ChunksTotal, &stats.AvgProcessingTimeMs); err != nil {
		return stats, nexuserr.Wrap(nexuserr.Unrecoverable, err, "aggregate index runs")
	}

	row = l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(latency_ms),0), COALESCE(AVG(citation_count),0)
		 FROM query_runs WHERE workspace = ?`, workspace)
	if err := row.Scan(&stats.QueryRunCount, &stats.AvgLatencyMs, &stats.AvgCitationCount); err != nil {
		return stats, nexuserr.Wrap(nexuserr.Unrecoverable, err, "aggregate query runs")
	}

	return stats, nil
}

// CleanupOldRuns deletes rows strictly older than now-days across both
// tables and returns the total deleted count.
func (l *Ledger) CleanupOldRuns(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).UTC().Format(timestampLayout)

	var total int64
	res, err := l.db.ExecContext(ctx, `DELETE FROM index_runs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, nexuserr.Wrap(nexuserr.Unrecoverable, err, "cleanup index runs")
	}
	n, _ := res.RowsAffected()
	total += n

	res, err = l.db.ExecContext(ctx, `DELETE FROM query_runs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, nexuserr.Wrap(nexuserr.Unrecoverable, err, "cleanup query runs")
	}
	n, _ = res.RowsAffected()
	total += n

	return total, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
