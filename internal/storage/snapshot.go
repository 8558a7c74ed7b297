package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/san-kum/gravsim/internal/body"
)

var ErrNoSnapshot = errors.New("storage: snapshot not found")

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL UNIQUE,
    tick       INTEGER NOT NULL,
    sim_time   REAL NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS bodies (
    snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
    body_id     INTEGER NOT NULL,
    type        TEXT NOT NULL,
    x           REAL NOT NULL,
    y           REAL NOT NULL,
    vx          REAL NOT NULL,
    vy          REAL NOT NULL,
    mass        REAL NOT NULL,
    radius      REAL NOT NULL,
    owner_id    INTEGER NOT NULL DEFAULT 0,
    payload     TEXT NOT NULL DEFAULT '{}',
    PRIMARY KEY (snapshot_id, body_id)
);
`

// SnapshotInfo describes a stored snapshot.
type SnapshotInfo struct {
	Name      string
	Tick      uint64
	Time      float64
	Bodies    int
	CreatedAt time.Time
}

// payload carries the snapshot fields that have no column of their own.
type payload struct {
	Alive    bool               `json:"alive"`
	Intact   bool               `json:"intact"`
	Density  body.Density       `json:"density"`
	Pulsar   bool               `json:"pulsar,omitempty"`
	Age      float64            `json:"age,omitempty"`
	Lifetime float64            `json:"lifetime,omitempty"`
	Trail    []body.TrailSample `json:"trail,omitempty"`
}

// SnapshotDB persists full body snapshots keyed by id in SQLite.
type SnapshotDB struct {
	db *sql.DB
}

func OpenSnapshotDB(ctx context.Context, path string) (*SnapshotDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, snapshotSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create schema: %w", err)
	}
	return &SnapshotDB{db: db}, nil
}

func (s *SnapshotDB) Close() error { return s.db.Close() }

// Save stores snaps under name, replacing any snapshot with that name.
func (s *SnapshotDB) Save(ctx context.Context, name string, tick uint64, simTime float64, snaps []body.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE name = ?", name); err != nil {
		return fmt.Errorf("storage: replace snapshot %q: %w", name, err)
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO snapshots (name, tick, sim_time) VALUES (?, ?, ?)", name, int64(tick), simTime)
	if err != nil {
		return fmt.Errorf("storage: insert snapshot %q: %w", name, err)
	}
	sid, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bodies (snapshot_id, body_id, type, x, y, vx, vy, mass, radius, owner_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range snaps {
		extra, err := json.Marshal(payload{
			Alive:    b.Alive,
			Intact:   b.Intact,
			Density:  b.Density,
			Pulsar:   b.Pulsar,
			Age:      b.Age,
			Lifetime: b.Lifetime,
			Trail:    b.Trail,
		})
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, sid, b.ID, b.Type.String(),
			b.X, b.Y, b.VX, b.VY, b.Mass, b.Radius, b.OwnerID, string(extra)); err != nil {
			return fmt.Errorf("storage: insert body %d: %w", b.ID, err)
		}
	}
	return tx.Commit()
}

// Load returns the bodies of the named snapshot ordered by id.
func (s *SnapshotDB) Load(ctx context.Context, name string) (SnapshotInfo, []body.Snapshot, error) {
	var (
		info SnapshotInfo
		sid  int64
		tick int64
		ts   string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, tick, sim_time, created_at FROM snapshots WHERE name = ?", name).
		Scan(&sid, &info.Name, &tick, &info.Time, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return info, nil, fmt.Errorf("%w: %q", ErrNoSnapshot, name)
	}
	if err != nil {
		return info, nil, fmt.Errorf("storage: load snapshot %q: %w", name, err)
	}
	info.Tick = uint64(tick)
	if info.CreatedAt, err = parseTimestamp(ts); err != nil {
		return info, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT body_id, type, x, y, vx, vy, mass, radius, owner_id, payload
		FROM bodies WHERE snapshot_id = ? ORDER BY body_id`, sid)
	if err != nil {
		return info, nil, err
	}
	defer rows.Close()

	var snaps []body.Snapshot
	for rows.Next() {
		var (
			b        body.Snapshot
			typeName string
			extra    string
		)
		if err := rows.Scan(&b.ID, &typeName, &b.X, &b.Y, &b.VX, &b.VY, &b.Mass, &b.Radius, &b.OwnerID, &extra); err != nil {
			return info, nil, err
		}
		if b.Type, err = body.ParseType(typeName); err != nil {
			return info, nil, err
		}
		var p payload
		if err := json.Unmarshal([]byte(extra), &p); err != nil {
			return info, nil, fmt.Errorf("storage: body %d payload: %w", b.ID, err)
		}
		b.Alive, b.Intact, b.Density, b.Pulsar = p.Alive, p.Intact, p.Density, p.Pulsar
		b.Age, b.Lifetime, b.Trail = p.Age, p.Lifetime, p.Trail
		if b.Trail == nil {
			b.Trail = []body.TrailSample{}
		}
		snaps = append(snaps, b)
	}
	if err := rows.Err(); err != nil {
		return info, nil, err
	}
	info.Bodies = len(snaps)
	return info, snaps, nil
}

// List returns snapshot summaries, newest first.
func (s *SnapshotDB) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.name, s.tick, s.sim_time, s.created_at, COUNT(b.body_id)
		FROM snapshots s LEFT JOIN bodies b ON b.snapshot_id = s.id
		GROUP BY s.id ORDER BY s.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var (
			info SnapshotInfo
			tick int64
			ts   string
		)
		if err := rows.Scan(&info.Name, &tick, &info.Time, &ts, &info.Bodies); err != nil {
			return nil, err
		}
		info.Tick = uint64(tick)
		created, err := parseTimestamp(ts)
		if err != nil {
			return nil, err
		}
		info.CreatedAt = created
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SnapshotDB) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE name = ?", name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrNoSnapshot, name)
	}
	return nil
}

// SQLite hands CURRENT_TIMESTAMP back either as RFC 3339 or in its own
// space-separated form depending on the driver path.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.DateTime,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("storage: unrecognized timestamp %q", s)
}
