package indexdb

import (
	"context"
	"database/sql"
	"fmt"
)

// Summary aggregates what the index holds.
type Summary struct {
	WorldID      string         `json:"world_id"`
	TuningDigest string         `json:"tuning_digest"`
	Batches      int            `json:"batches"`
	Defaulted    int            `json:"defaulted"`
	FailedCalls  int            `json:"failed_calls"`
	Lifecycle    map[string]int `json:"lifecycle"`
	Actions      map[string]int `json:"actions"`
	FailedActs   int            `json:"failed_actions"`
}

type ActionRow struct {
	Tick     uint64 `json:"tick"`
	BatchSeq uint64 `json:"batch_seq"`
	Actor    string `json:"actor"`
	Action   string `json:"action"`
	Target   string `json:"target,omitempty"`
	OK       bool   `json:"ok"`
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// OpenReadOnly opens an existing index for queries without starting the
// writer loop.
func OpenReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return db, nil
}

func QuerySummary(ctx context.Context, db *sql.DB) (Summary, error) {
	out := Summary{Lifecycle: map[string]int{}, Actions: map[string]int{}}

	rows, err := db.QueryContext(ctx, `SELECT key,value FROM meta`)
	if err != nil {
		return out, err
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return out, err
		}
		switch k {
		case "world_id":
			out.WorldID = v
		case "tuning_digest":
			out.TuningDigest = v
		}
	}
	rows.Close()

	row := db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(defaulted),0), COALESCE(SUM(CASE WHEN error IS NOT NULL THEN 1 ELSE 0 END),0) FROM batches`)
	if err := row.Scan(&out.Batches, &out.Defaulted, &out.FailedCalls); err != nil {
		return out, err
	}
	if err := countInto(ctx, db, `SELECT kind, COUNT(*) FROM lifecycle GROUP BY kind`, out.Lifecycle); err != nil {
		return out, err
	}
	if err := countInto(ctx, db, `SELECT action, COUNT(*) FROM action_results GROUP BY action`, out.Actions); err != nil {
		return out, err
	}
	row = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM action_results WHERE ok=0`)
	if err := row.Scan(&out.FailedActs); err != nil {
		return out, err
	}
	return out, nil
}

func countInto(ctx context.Context, db *sql.DB, q string, dst map[string]int) error {
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return err
		}
		dst[k] = n
	}
	return rows.Err()
}

// QueryActions lists resolved actions, newest first. An empty actor
// matches everyone.
func QueryActions(ctx context.Context, db *sql.DB, actor string, limit int) ([]ActionRow, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT tick,batch_seq,actor,action,COALESCE(target,''),ok,COALESCE(code,''),COALESCE(reason,'') FROM action_results`
	args := []any{}
	if actor != "" {
		q += ` WHERE actor=?`
		args = append(args, actor)
	}
	q += ` ORDER BY tick DESC, seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ActionRow
	for rows.Next() {
		var r ActionRow
		var tick, bseq int64
		var ok int
		if err := rows.Scan(&tick, &bseq, &r.Actor, &r.Action, &r.Target, &ok, &r.Code, &r.Reason); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		r.BatchSeq = uint64(bseq)
		r.OK = ok != 0
		out = append(out, r)
	}
	return out, rows.Err()
}
