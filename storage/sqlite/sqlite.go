// Package sqlite persists worlds in a SQLite database. It lives in its own
// package so the driver only ends up in binaries that ask for it.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"agentworld/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS worlds (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT,
	max_turns   INTEGER NOT NULL DEFAULT 0,
	created     TIMESTAMP NOT NULL,
	updated     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	world_id TEXT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
	id       TEXT NOT NULL,
	doc      TEXT NOT NULL,
	PRIMARY KEY (world_id, id)
);

CREATE TABLE IF NOT EXISTS messages (
	world_id TEXT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
	chat_id  TEXT NOT NULL,
	seq      INTEGER NOT NULL,
	doc      TEXT NOT NULL,
	PRIMARY KEY (world_id, chat_id, seq)
);
`

// Store is a core.Store backed by SQLite. Worlds get typed columns; agents
// and messages are stored as JSON documents keyed for ordered retrieval.
type Store struct {
	db *sql.DB
}

var _ core.Store = (*Store)(nil)

// Open opens (creating when missing) the database at path with foreign keys
// on and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveWorld writes the full snapshot in one transaction, replacing the
// world's agents and messages wholesale.
func (s *Store) SaveWorld(ctx context.Context, w *core.World) error {
	snap := w.Clone()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO worlds(id,name,description,max_turns,created,updated) VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description, max_turns=excluded.max_turns, updated=excluded.updated`,
		snap.ID, snap.Name, snap.Description, snap.MaxTurns, snap.Created, snap.Updated)
	if err != nil {
		return fmt.Errorf("upsert world %s: %w", snap.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM agents WHERE world_id=?`, snap.ID); err != nil {
		return err
	}
	for id, a := range snap.Agents {
		doc, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode agent %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO agents(world_id,id,doc) VALUES (?,?,?)`, snap.ID, id, string(doc)); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE world_id=?`, snap.ID); err != nil {
		return err
	}
	for chatID, msgs := range snap.Chats {
		for seq, msg := range msgs {
			doc, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("encode message %s/%d: %w", chatID, seq, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO messages(world_id,chat_id,seq,doc) VALUES (?,?,?,?)`, snap.ID, chatID, seq, string(doc)); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// LoadWorld reconstructs a world from its rows. Unknown ids yield (nil, nil).
func (s *Store) LoadWorld(ctx context.Context, id string) (*core.World, error) {
	w := core.NewWorld("", "")
	var desc sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id,name,description,max_turns,created,updated FROM worlds WHERE id=?`, id).
		Scan(&w.ID, &w.Name, &desc, &w.MaxTurns, &w.Created, &w.Updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load world %s: %w", id, err)
	}
	if desc.Valid {
		w.Description = desc.String
	}

	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM agents WHERE world_id=?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var a core.Agent
		if err := json.Unmarshal([]byte(doc), &a); err != nil {
			return nil, fmt.Errorf("decode agent in world %s: %w", id, err)
		}
		w.Agents[a.ID] = &a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	msgRows, err := s.db.QueryContext(ctx, `SELECT chat_id,doc FROM messages WHERE world_id=? ORDER BY chat_id,seq`, id)
	if err != nil {
		return nil, err
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var chatID, doc string
		if err := msgRows.Scan(&chatID, &doc); err != nil {
			return nil, err
		}
		var msg core.Message
		if err := json.Unmarshal([]byte(doc), &msg); err != nil {
			return nil, fmt.Errorf("decode message in world %s: %w", id, err)
		}
		w.Chats[chatID] = append(w.Chats[chatID], msg)
	}
	if err := msgRows.Err(); err != nil {
		return nil, err
	}

	return w, nil
}

// DeleteWorld removes the world and its dependent rows, reporting whether
// anything was there.
func (s *Store) DeleteWorld(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM worlds WHERE id=?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SaveAgent upserts a single agent row without rewriting the rest of the
// world.
func (s *Store) SaveAgent(ctx context.Context, worldID string, a *core.Agent) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM worlds WHERE id=?`, worldID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("save agent: world %s not found", worldID)
	}
	if err != nil {
		return err
	}
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode agent %s: %w", a.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO agents(world_id,id,doc) VALUES (?,?,?)
		ON CONFLICT(world_id,id) DO UPDATE SET doc=excluded.doc`, worldID, a.ID, string(doc))
	return err
}

// LoadAllAgents returns every agent stored for the world. Unknown worlds
// yield an empty slice.
func (s *Store) LoadAllAgents(ctx context.Context, worldID string) ([]*core.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM agents WHERE world_id=? ORDER BY id`, worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.Agent
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var a core.Agent
		if err := json.Unmarshal([]byte(doc), &a); err != nil {
			return nil, fmt.Errorf("decode agent in world %s: %w", worldID, err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// DeleteAgent removes one agent row, reporting whether it existed.
func (s *Store) DeleteAgent(ctx context.Context, worldID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE world_id=? AND id=?`, worldID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListWorlds returns listing views with agent/chat/message counts computed
// in SQL.
func (s *Store) ListWorlds(ctx context.Context) ([]core.WorldInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT w.id, w.name, COALESCE(w.description,'') AS description, w.created, w.updated,
		(SELECT COUNT(*) FROM agents a WHERE a.world_id=w.id),
		(SELECT COUNT(DISTINCT m.chat_id) FROM messages m WHERE m.world_id=w.id),
		(SELECT COUNT(*) FROM messages m WHERE m.world_id=w.id)
		FROM worlds w ORDER BY w.created`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.WorldInfo
	for rows.Next() {
		var info core.WorldInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Description, &info.Created, &info.Updated,
			&info.AgentCount, &info.ChatCount, &info.MessageCount); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
