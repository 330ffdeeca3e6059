package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/tuning"
	"github.com/ShiraishiHope/MultiAgents/internal/sim/world"
)

const schemaVersion = "1"

// SQLiteIndex is a queryable secondary index of the tick and audit logs.
// Writes are queued and applied by a single goroutine; the JSONL logs
// remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick  atomic.Uint64
	dropAudit atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
)

type req struct {
	kind reqKind

	tick  world.TickLogEntry
	audit world.AuditEntry
}

// Stats reports queue pressure of the async writer.
type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropTickTotal  uint64 `json:"drop_tick_total"`
	DropAuditTotal uint64 `json:"drop_audit_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tuning (
			digest TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS batches (
			seq INTEGER PRIMARY KEY,
			tick INTEGER NOT NULL,
			leader TEXT NOT NULL,
			agents INTEGER NOT NULL,
			applied INTEGER NOT NULL,
			defaulted INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			skipped_all INTEGER NOT NULL,
			latency_ms REAL NOT NULL,
			error TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_batches_tick ON batches(tick);`,
		`CREATE TABLE IF NOT EXISTS lifecycle (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			detail TEXT,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_agent_tick ON lifecycle(agent_id, tick);`,
		`CREATE TABLE IF NOT EXISTS action_results (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			batch_seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			target TEXT,
			ok INTEGER NOT NULL,
			code TEXT,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_action_results_actor_tick ON action_results(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_action_results_action ON action_results(action, ok);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTickTotal:  s.dropTick.Load(),
		DropAuditTotal: s.dropAudit.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

// UpsertTuning stores the tuning values actually applied, keyed by digest.
func (s *SQLiteIndex) UpsertTuning(ctx context.Context, worldID string, tune tuning.Tuning) (string, error) {
	if s == nil {
		return "", nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion); err != nil {
		return "", err
	}
	if worldID != "" {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES('world_id',?)`, worldID); err != nil {
			return "", err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES('tuning_digest',?)`, digest); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO tuning(digest,json,updated_at) VALUES(?,?,?)`, digest, string(b), now); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return digest, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertBatch, _ := s.db.Prepare(`INSERT OR REPLACE INTO batches(seq,tick,leader,agents,applied,defaulted,skipped,skipped_all,latency_ms,error) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertLife, _ := s.db.Prepare(`INSERT OR REPLACE INTO lifecycle(tick,seq,kind,agent_id,detail) VALUES(?,?,?,?,?)`)
	insertResult, _ := s.db.Prepare(`INSERT OR REPLACE INTO action_results(tick,seq,batch_seq,actor,action,target,ok,code,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertBatch, insertLife, insertResult} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			tick := int64(e.Tick)
			if b := e.Batch; b != nil && insertBatch != nil {
				if _, err := tx.Stmt(insertBatch).Exec(
					int64(b.Seq), tick, b.Leader, b.Agents, b.Applied, b.Defaulted, b.Skipped,
					boolInt(b.SkippedAll), b.LatencyMS, nullString(b.Error),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			if insertLife == nil {
				break
			}
			rows := lifecycleRows(e)
			for i, lr := range rows {
				if _, err := tx.Stmt(insertLife).Exec(tick, i, lr.kind, lr.agentID, nullString(lr.detail)); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if insertResult != nil {
				if _, err := tx.Stmt(insertResult).Exec(
					int64(a.Tick), seq, int64(a.Seq), a.Actor, a.Action, nullString(a.Target),
					boolInt(a.OK), nullString(a.Code), nullString(a.Reason), string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}

type lifecycleRow struct {
	kind    string
	agentID string
	detail  string
}

func lifecycleRows(e world.TickLogEntry) []lifecycleRow {
	rows := make([]lifecycleRow, 0, len(e.Joins)+len(e.Leaves)+len(e.Transitions)+len(e.Deaths))
	for _, id := range e.Joins {
		rows = append(rows, lifecycleRow{kind: "join", agentID: id})
	}
	for _, id := range e.Leaves {
		rows = append(rows, lifecycleRow{kind: "leave", agentID: id})
	}
	for _, tr := range e.Transitions {
		rows = append(rows, lifecycleRow{kind: "transition", agentID: tr.AgentID, detail: tr.From.String() + "->" + tr.To.String()})
	}
	for _, d := range e.Deaths {
		rows = append(rows, lifecycleRow{kind: "death", agentID: d.AgentID, detail: d.Cause})
	}
	return rows
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
