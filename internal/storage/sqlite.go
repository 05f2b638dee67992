package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for check-ins, insights,
// feedback counters, preferences, trigger events, and the job queue.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "attune.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Check-ins ---

func (s *Store) SaveCheckIn(c CheckIn) error {
	var checkOut any
	if c.CheckOutTime != nil {
		checkOut = c.CheckOutTime.UTC().Format(time.RFC3339)
	}
	var stress any
	if c.StressRating != nil {
		stress = *c.StressRating
	}
	_, err := s.db.Exec(`
		INSERT INTO check_ins (id, created_at, check_out_time, stress_rating, note)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.CreatedAt.UTC().Format(time.RFC3339), checkOut, stress, c.Note,
	)
	return err
}

func (s *Store) ListCheckIns(limit int) ([]CheckIn, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, check_out_time, stress_rating, note
		FROM check_ins ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CheckIn
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func scanCheckIn(rows *sql.Rows) (CheckIn, error) {
	var c CheckIn
	var createdAt string
	var checkOut sql.NullString
	var stress sql.NullInt64
	if err := rows.Scan(&c.ID, &createdAt, &checkOut, &stress, &c.Note); err != nil {
		return CheckIn{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return CheckIn{}, fmt.Errorf("parsing created_at: %w", err)
	}
	c.CreatedAt = t
	if checkOut.Valid {
		out, err := time.Parse(time.RFC3339, checkOut.String)
		if err != nil {
			return CheckIn{}, fmt.Errorf("parsing check_out_time: %w", err)
		}
		c.CheckOutTime = &out
	}
	if stress.Valid {
		v := int(stress.Int64)
		c.StressRating = &v
	}
	return c, nil
}

// --- Insights ---

func (s *Store) SaveInsight(i InsightRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO insights (id, type, message, priority, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		i.ID, i.Type, i.Message, i.Priority, i.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetInsight(id string) (InsightRecord, error) {
	var i InsightRecord
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, type, message, priority, created_at
		FROM insights WHERE id = ?`, id,
	).Scan(&i.ID, &i.Type, &i.Message, &i.Priority, &createdAt)
	if err == sql.ErrNoRows {
		return InsightRecord{}, ErrNotFound
	}
	if err != nil {
		return InsightRecord{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return InsightRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	i.CreatedAt = t
	return i, nil
}

func (s *Store) ListInsights(limit int) ([]InsightRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, type, message, priority, created_at
		FROM insights ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []InsightRecord
	for rows.Next() {
		var i InsightRecord
		var createdAt string
		if err := rows.Scan(&i.ID, &i.Type, &i.Message, &i.Priority, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		i.CreatedAt = t
		results = append(results, i)
	}
	return results, rows.Err()
}

// --- Feedback counters ---

// RecordFeedback increments the counter for one user response. "shown" bumps
// only the shown count; "engaged" and "dismissed" bump their own counter.
func (s *Store) RecordFeedback(insightType, action string) error {
	var column string
	switch action {
	case "shown":
		column = "shown_count"
	case "engaged":
		column = "engaged_count"
	case "dismissed":
		column = "dismissed_count"
	default:
		return fmt.Errorf("unknown feedback action: %q", action)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO insight_feedback (insight_type, `+column+`, updated_at) VALUES (?, 1, ?)
		ON CONFLICT(insight_type) DO UPDATE SET `+column+` = `+column+` + 1, updated_at = excluded.updated_at`,
		insightType, now,
	)
	return err
}

func (s *Store) GetFeedbackCounts(insightType string) (FeedbackCounts, error) {
	var c FeedbackCounts
	err := s.db.QueryRow(`
		SELECT insight_type, shown_count, engaged_count, dismissed_count
		FROM insight_feedback WHERE insight_type = ?`, insightType,
	).Scan(&c.InsightType, &c.Shown, &c.Engaged, &c.Dismissed)
	if err == sql.ErrNoRows {
		return FeedbackCounts{}, ErrNotFound
	}
	return c, err
}

// --- Preferences ---

func (s *Store) UpsertPreference(insightType string, engagementScore, dismissalRate float64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO preferences (insight_type, engagement_score, dismissal_rate, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(insight_type) DO UPDATE SET
			engagement_score = excluded.engagement_score,
			dismissal_rate = excluded.dismissal_rate,
			updated_at = excluded.updated_at`,
		insightType, engagementScore, dismissalRate, now,
	)
	return err
}

func (s *Store) GetPreference(insightType string) (PreferenceRecord, error) {
	var p PreferenceRecord
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT insight_type, engagement_score, dismissal_rate, updated_at
		FROM preferences WHERE insight_type = ?`, insightType,
	).Scan(&p.InsightType, &p.EngagementScore, &p.DismissalRate, &updatedAt)
	if err == sql.ErrNoRows {
		return PreferenceRecord{}, ErrNotFound
	}
	if err != nil {
		return PreferenceRecord{}, err
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return PreferenceRecord{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	p.UpdatedAt = t
	return p, nil
}

func (s *Store) AllPreferences() ([]PreferenceRecord, error) {
	rows, err := s.db.Query(`
		SELECT insight_type, engagement_score, dismissal_rate, updated_at FROM preferences`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []PreferenceRecord
	for rows.Next() {
		var p PreferenceRecord
		var updatedAt string
		if err := rows.Scan(&p.InsightType, &p.EngagementScore, &p.DismissalRate, &updatedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		p.UpdatedAt = t
		results = append(results, p)
	}
	return results, rows.Err()
}

// --- Trigger events ---

func (s *Store) SaveTriggerEvent(e TriggerEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO trigger_events (id, name, type, message, priority, fired_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Type, e.Message, e.Priority, e.FiredAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListTriggerEvents(limit int) ([]TriggerEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, name, type, message, priority, fired_at
		FROM trigger_events ORDER BY fired_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TriggerEvent
	for rows.Next() {
		var e TriggerEvent
		var firedAt string
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.Message, &e.Priority, &firedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, firedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing fired_at: %w", err)
		}
		e.FiredAt = t
		results = append(results, e)
	}
	return results, rows.Err()
}

// LatestTriggerFirings returns the most recent firing time per trigger name.
// Used to rehydrate the cooldown tracker at startup.
func (s *Store) LatestTriggerFirings() (map[string]time.Time, error) {
	rows, err := s.db.Query(`SELECT name, MAX(fired_at) FROM trigger_events GROUP BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]time.Time)
	for rows.Next() {
		var name, firedAt string
		if err := rows.Scan(&name, &firedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, firedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing fired_at for %q: %w", name, err)
		}
		result[name] = t
	}
	return result, rows.Err()
}

// --- User profile ---

func (s *Store) SetProfileKey(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO user_profile (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetProfileKey(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM user_profile WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

func (s *Store) GetAllProfileKeys() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM user_profile")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, rows.Err()
}

// --- Jobs ---

func (s *Store) EnqueueJob(job Job) error {
	now := time.Now().UTC().Format(time.RFC3339)
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC().Format(time.RFC3339)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, maxAttempts, runAfter, now, now,
	)
	return err
}

func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	placeholders := strings.Repeat(",?", len(types)-1)
	query := `SELECT id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error
		FROM jobs
		WHERE status = 'pending' AND run_after <= ? AND type IN (?` + placeholders + `)
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1`

	args := make([]any, 0, len(types)+1)
	args = append(args, now)
	for _, t := range types {
		args = append(args, t)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	var j Job
	var runAfter, createdAt, updatedAt string
	var lastError sql.NullString
	err = tx.QueryRow(query, args...).Scan(
		&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError,
	)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	res, err := tx.Exec(`UPDATE jobs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, now, j.ID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking updated job rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = "running"
	j.LastError = lastError.String
	if j.RunAfter, err = time.Parse(time.RFC3339, runAfter); err != nil {
		return nil, fmt.Errorf("parsing run_after for job %s: %w", j.ID, err)
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for job %s: %w", j.ID, err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339, now); err != nil {
		return nil, fmt.Errorf("parsing updated_at for job %s: %w", j.ID, err)
	}
	return &j, nil
}

func (s *Store) CompleteJob(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	attempts++

	if attempts >= maxAttempts {
		_, err = tx.Exec(`UPDATE jobs SET status = 'failed', attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, now.Format(time.RFC3339), id)
	} else {
		backoff := time.Duration(math.Pow(2, float64(attempts))) * time.Second
		runAfter := now.Add(backoff)
		_, err = tx.Exec(`UPDATE jobs SET status = 'pending', attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, runAfter.Format(time.RFC3339), now.Format(time.RFC3339), id)
	}

	if err != nil {
		return err
	}

	return tx.Commit()
}
