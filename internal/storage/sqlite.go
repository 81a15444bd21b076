package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding documents, feedback, and unanswered
// questions. It is the local system of record; conversation state lives
// entirely in the remote assistant service.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "askd.db")
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

// --- documents ---

// SaveDocument persists a document. Documents with an empty FileIDs set are
// rejected with ErrNoFileIDs.
func (s *Store) SaveDocument(doc Document) error {
	if len(doc.FileIDs) == 0 {
		return ErrNoFileIDs
	}
	fileIDs, err := json.Marshal(doc.FileIDs)
	if err != nil {
		return fmt.Errorf("marshaling file ids: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO documents (id, name, original_filename, file_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.OriginalFilename, string(fileIDs), doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// GetDocument returns the document with the given id, or ErrNotFound.
func (s *Store) GetDocument(id string) (Document, error) {
	row := s.db.QueryRow(`SELECT id, name, original_filename, file_ids, created_at, updated_at
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// ListDocuments returns documents ordered newest first.
func (s *Store) ListDocuments(limit, offset int) ([]Document, error) {
	rows, err := s.db.Query(`SELECT id, name, original_filename, file_ids, created_at, updated_at
		FROM documents ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// RenameDocument updates a document's display name.
func (s *Store) RenameDocument(id, name string) error {
	res, err := s.db.Exec(`UPDATE documents SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("renaming document: %w", err)
	}
	return requireRow(res)
}

// DeleteDocument removes a document's metadata record. Callers must detach
// the document's remote files from the knowledge base first.
func (s *Store) DeleteDocument(id string) error {
	res, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var fileIDs string
	err := row.Scan(&doc.ID, &doc.Name, &doc.OriginalFilename, &fileIDs, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("scanning document: %w", err)
	}
	if err := json.Unmarshal([]byte(fileIDs), &doc.FileIDs); err != nil {
		return Document{}, fmt.Errorf("parsing file ids for %s: %w", doc.ID, err)
	}
	return doc, nil
}

// --- feedback ---

// SaveFeedback persists a feedback record.
func (s *Store) SaveFeedback(fb Feedback) error {
	threadIDs, err := json.Marshal(fb.ThreadIDs)
	if err != nil {
		return fmt.Errorf("marshaling thread ids: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO feedback (id, reason, rating, thread_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.Reason, fb.Rating, string(threadIDs), fb.CreatedAt, fb.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

// GetFeedback returns the feedback record with the given id, or ErrNotFound.
func (s *Store) GetFeedback(id string) (Feedback, error) {
	row := s.db.QueryRow(`SELECT id, reason, rating, thread_ids, created_at, updated_at
		FROM feedback WHERE id = ?`, id)
	return scanFeedback(row)
}

// ListFeedback returns feedback records ordered newest first.
func (s *Store) ListFeedback(limit, offset int) ([]Feedback, error) {
	rows, err := s.db.Query(`SELECT id, reason, rating, thread_ids, created_at, updated_at
		FROM feedback ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	var records []Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, fb)
	}
	return records, rows.Err()
}

// FeedbackSummary counts stored ratings. Total is always TotalYes + TotalNo.
func (s *Store) FeedbackSummary() (FeedbackSummary, error) {
	var sum FeedbackSummary
	err := s.db.QueryRow(`SELECT
		COUNT(CASE WHEN rating THEN 1 END),
		COUNT(CASE WHEN NOT rating THEN 1 END),
		COUNT(*)
		FROM feedback`).Scan(&sum.TotalYes, &sum.TotalNo, &sum.Total)
	if err != nil {
		return FeedbackSummary{}, fmt.Errorf("summarizing feedback: %w", err)
	}
	return sum, nil
}

func scanFeedback(row rowScanner) (Feedback, error) {
	var fb Feedback
	var threadIDs string
	err := row.Scan(&fb.ID, &fb.Reason, &fb.Rating, &threadIDs, &fb.CreatedAt, &fb.UpdatedAt)
	if err == sql.ErrNoRows {
		return Feedback{}, ErrNotFound
	}
	if err != nil {
		return Feedback{}, fmt.Errorf("scanning feedback: %w", err)
	}
	if err := json.Unmarshal([]byte(threadIDs), &fb.ThreadIDs); err != nil {
		return Feedback{}, fmt.Errorf("parsing thread ids for %s: %w", fb.ID, err)
	}
	return fb, nil
}

// --- unanswered questions ---

// SaveUnanswered persists a flagged question for review.
func (s *Store) SaveUnanswered(q UnansweredQuestion) error {
	_, err := s.db.Exec(`INSERT INTO unanswered_questions (id, question, thread_id, reviewed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		q.ID, q.Question, q.ThreadID, q.Reviewed, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting unanswered question: %w", err)
	}
	return nil
}

// ListUnanswered returns flagged questions ordered newest first.
func (s *Store) ListUnanswered(limit, offset int) ([]UnansweredQuestion, error) {
	rows, err := s.db.Query(`SELECT id, question, thread_id, reviewed, created_at, updated_at
		FROM unanswered_questions ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing unanswered questions: %w", err)
	}
	defer rows.Close()

	var questions []UnansweredQuestion
	for rows.Next() {
		var q UnansweredQuestion
		if err := rows.Scan(&q.ID, &q.Question, &q.ThreadID, &q.Reviewed, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning unanswered question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// SetUnansweredReviewed flips a question's reviewed flag and returns the
// updated record.
func (s *Store) SetUnansweredReviewed(id string, reviewed bool) (UnansweredQuestion, error) {
	res, err := s.db.Exec(`UPDATE unanswered_questions SET reviewed = ?, updated_at = ? WHERE id = ?`,
		reviewed, time.Now().UTC(), id)
	if err != nil {
		return UnansweredQuestion{}, fmt.Errorf("updating unanswered question: %w", err)
	}
	if err := requireRow(res); err != nil {
		return UnansweredQuestion{}, err
	}

	var q UnansweredQuestion
	row := s.db.QueryRow(`SELECT id, question, thread_id, reviewed, created_at, updated_at
		FROM unanswered_questions WHERE id = ?`, id)
	if err := row.Scan(&q.ID, &q.Question, &q.ThreadID, &q.Reviewed, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return UnansweredQuestion{}, fmt.Errorf("reloading unanswered question: %w", err)
	}
	return q, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
