package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/npc-mind/internal/chunker"
	"github.com/rcliao/npc-mind/internal/embedding"
	"github.com/rcliao/npc-mind/internal/model"
)

// timeFormat is fixed width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrDuplicate is returned when a memory ID is already journaled.
var ErrDuplicate = errors.New("memory already journaled")

// ErrInvalid is returned for a memory with an unknown kind or an importance
// outside 1-10.
var ErrInvalid = errors.New("invalid memory")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string

	mu      sync.Mutex
	entropy io.Reader
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Agents journal concurrently; one connection keeps writers from
	// tripping over each other.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:      db,
		path:    dbPath,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Path is the database file.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id          TEXT PRIMARY KEY,
		ns          TEXT NOT NULL,
		kind        TEXT NOT NULL,
		description TEXT NOT NULL,
		importance  INTEGER NOT NULL,
		created_at  TEXT NOT NULL,
		keywords    TEXT,
		embedding   BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_memories_ns_created ON memories(ns, created_at);
	CREATE INDEX IF NOT EXISTS idx_memories_ns_kind ON memories(ns, kind);

	CREATE TABLE IF NOT EXISTS chunks (
		id          TEXT PRIMARY KEY,
		memory_id   TEXT NOT NULL REFERENCES memories(id),
		seq         INTEGER NOT NULL,
		text        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_memory ON chunks(memory_id);

	CREATE TABLE IF NOT EXISTS memory_links (
		from_id    TEXT NOT NULL REFERENCES memories(id),
		to_id      TEXT NOT NULL REFERENCES memories(id),
		rel        TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id, rel)
	);
	CREATE INDEX IF NOT EXISTS idx_links_to ON memory_links(to_id);

	CREATE TABLE IF NOT EXISTS knowledge (
		ns                  TEXT NOT NULL,
		concept_key         TEXT NOT NULL,
		concept             TEXT NOT NULL,
		description         TEXT NOT NULL,
		embedding           BLOB,
		learned_at          TEXT NOT NULL,
		reinforcement_count INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (ns, concept_key)
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
		text,
		content=chunks,
		content_rowid=rowid
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Chunks are never updated or deleted, so only inserts need syncing.
	_, err := s.db.Exec(`CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
		INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
	END`)
	return err
}

// AppendMemory journals m under ns together with its chunks and evidence
// links. A memory ID that is already journaled yields ErrDuplicate.
func (s *SQLiteStore) AppendMemory(ctx context.Context, ns string, m model.Memory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	inserted, err := s.insertMemory(ctx, tx, ns, m)
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("%s: %w", m.ID, ErrDuplicate)
	}
	return tx.Commit()
}

// insertMemory writes m unless its ID exists. It reports whether a row was
// written. Memories with an unknown kind or out-of-range importance are
// rejected with ErrInvalid.
func (s *SQLiteStore) insertMemory(ctx context.Context, tx *sql.Tx, ns string, m model.Memory) (bool, error) {
	if err := m.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var keywords *string
	if len(m.Keywords) > 0 {
		b, _ := json.Marshal(m.Keywords)
		kw := string(b)
		keywords = &kw
	}
	var vec []byte
	if m.Embedding != nil {
		vec = embedding.Encode(m.Embedding)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO memories (id, ns, kind, description, importance, created_at, keywords, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, ns, string(m.Kind), m.Description, m.Importance,
		m.CreatedAt.UTC().Format(timeFormat), keywords, vec)
	if err != nil {
		return false, fmt.Errorf("insert memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	for i, c := range chunker.Chunk(m.Description, chunker.DefaultOptions()) {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, memory_id, seq, text) VALUES (?, ?, ?, ?)`,
			s.newID(), m.ID, i, c.Text)
		if err != nil {
			return false, fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err := s.linkEvidence(ctx, tx, m); err != nil {
		return false, err
	}
	return true, nil
}

// SaveKnowledge upserts k under ns, keyed by its case-folded concept. The
// stored reinforcement count never decreases.
func (s *SQLiteStore) SaveKnowledge(ctx context.Context, ns string, k model.Knowledge) error {
	var vec []byte
	if k.Embedding != nil {
		vec = embedding.Encode(k.Embedding)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge (ns, concept_key, concept, description, embedding, learned_at, reinforcement_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ns, concept_key) DO UPDATE SET
		   description = excluded.description,
		   embedding = COALESCE(excluded.embedding, knowledge.embedding),
		   reinforcement_count = MAX(knowledge.reinforcement_count, excluded.reinforcement_count)`,
		ns, conceptKey(k.Concept), k.Concept, k.Description, vec,
		k.LearnedAt.UTC().Format(timeFormat), k.ReinforcementCount)
	if err != nil {
		return fmt.Errorf("save knowledge: %w", err)
	}
	return nil
}

func conceptKey(concept string) string {
	return strings.ToLower(strings.TrimSpace(concept))
}

const memoryColumns = `m.id, m.ns, m.kind, m.description, m.importance, m.created_at, m.keywords, m.embedding,
	(SELECT COUNT(*) FROM chunks c WHERE c.memory_id = m.id)`

// LoadMemories returns every memory in ns in journal order, with evidence.
func (s *SQLiteStore) LoadMemories(ctx context.Context, ns string) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories m WHERE m.ns = ? ORDER BY m.created_at, m.rowid`, ns)
	if err != nil {
		return nil, err
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	evidence, err := s.evidenceIn(ctx, ns)
	if err != nil {
		return nil, err
	}
	out := make([]model.Memory, len(records))
	for i, r := range records {
		r.EvidenceIDs = evidence[r.ID]
		out[i] = r.Memory
	}
	return out, nil
}

// LoadKnowledge returns every concept in ns in the order it was learned.
func (s *SQLiteStore) LoadKnowledge(ctx context.Context, ns string) ([]model.Knowledge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT concept, description, embedding, learned_at, reinforcement_count
		 FROM knowledge WHERE ns = ? ORDER BY learned_at, rowid`, ns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Knowledge
	for rows.Next() {
		var k model.Knowledge
		var vec []byte
		var learned string
		if err := rows.Scan(&k.Concept, &k.Description, &vec, &learned, &k.ReinforcementCount); err != nil {
			return nil, err
		}
		k.LearnedAt, _ = time.Parse(timeFormat, learned)
		if len(vec) > 0 {
			k.Embedding = embedding.Decode(vec)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// List returns the newest memories matching p, newest first.
func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]Record, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"1 = 1"}
	var args []interface{}
	if p.NS != "" {
		where = append(where, "m.ns = ?")
		args = append(args, p.NS)
	}
	if p.Kind != "" {
		where = append(where, "m.kind = ?")
		args = append(args, string(p.Kind))
	}

	query := fmt.Sprintf(`SELECT %s FROM memories m WHERE %s
		ORDER BY m.created_at DESC, m.rowid DESC LIMIT ?`, memoryColumns, strings.Join(where, " AND "))
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// Namespaces lists every namespace with at least one memory.
func (s *SQLiteStore) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ns FROM memories ORDER BY ns`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (Record, error) {
	var r Record
	var kind, createdAt string
	var keywords *string
	var vec []byte

	err := row.Scan(&r.ID, &r.NS, &kind, &r.Description, &r.Importance, &createdAt, &keywords, &vec, &r.ChunkCount)
	if err != nil {
		return r, err
	}
	fillRecord(&r, kind, createdAt, keywords, vec)
	return r, nil
}

func fillRecord(r *Record, kind, createdAt string, keywords *string, vec []byte) {
	r.Kind = model.Kind(kind)
	r.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	if keywords != nil {
		json.Unmarshal([]byte(*keywords), &r.Keywords)
	}
	if len(vec) > 0 {
		r.Embedding = embedding.Decode(vec)
	}
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
