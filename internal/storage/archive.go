// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/talks-tui/internal/model"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// DefaultMaxConversations bounds the archive; the oldest are pruned.
const DefaultMaxConversations = 200

// =============================================================================
// TYPES
// =============================================================================

// Conversation is an archived transcript.
type Conversation struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Model     string       `json:"model,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Turns     []model.Turn `json:"turns"`
}

// ConversationMeta is the listing view of a conversation.
type ConversationMeta struct {
	ID        string
	Title     string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
	TurnCount int
}

// FromTranscript snapshots t under the given conversation id. An answer
// still streaming is stored as received so far.
func FromTranscript(id string, t *model.Transcript, modelName string) Conversation {
	turns := t.Turns()
	conv := Conversation{
		ID:        id,
		Title:     t.Title(),
		Model:     modelName,
		UpdatedAt: time.Now(),
		Turns:     turns,
	}
	if len(turns) > 0 {
		conv.CreatedAt = turns[0].CreatedAt
	} else {
		conv.CreatedAt = conv.UpdatedAt
	}
	return conv
}

// =============================================================================
// ARCHIVE
// =============================================================================

// Archive is a SQLite-backed conversation archive.
type Archive struct {
	db               *sql.DB
	MaxConversations int
}

// Open opens or creates the archive at path. ":memory:" gives a private
// in-memory archive.
func Open(path string) (*Archive, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer and each ":memory:"
	// connection would otherwise see its own database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`, schemaVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to record schema version: %w", err)
	}

	return &Archive{db: db, MaxConversations: DefaultMaxConversations}, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Save stores conv, replacing an earlier save with the same ID. Empty
// conversations are skipped and report false.
func (a *Archive) Save(ctx context.Context, conv Conversation) (bool, error) {
	if conv.ID == "" {
		return false, errors.New("conversation has no id")
	}
	if len(conv.Turns) == 0 {
		return false, nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, title, model, created_at, updated_at, turn_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			model = excluded.model,
			updated_at = excluded.updated_at,
			turn_count = excluded.turn_count
	`, conv.ID, conv.Title, conv.Model, conv.CreatedAt.UnixMilli(), conv.UpdatedAt.UnixMilli(), len(conv.Turns))
	if err != nil {
		return false, fmt.Errorf("save conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE conversation_id = ?`, conv.ID); err != nil {
		return false, fmt.Errorf("clear turns: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO turns (conversation_id, seq, id, role, content, reply_to, attachments, thoughts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	for i, t := range conv.Turns {
		atts, err := marshalOrNull(t.Attachments)
		if err != nil {
			return false, err
		}
		thoughts, err := marshalOrNull(t.Thoughts)
		if err != nil {
			return false, err
		}
		if _, err := stmt.ExecContext(ctx, conv.ID, i, t.ID, string(t.Role), t.Content, t.ReplyTo, atts, thoughts, t.CreatedAt.UnixMilli()); err != nil {
			return false, fmt.Errorf("save turn %d: %w", i, err)
		}
	}

	if err := a.prune(ctx, tx); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// prune deletes the oldest conversations beyond MaxConversations.
func (a *Archive) prune(ctx context.Context, tx *sql.Tx) error {
	if a.MaxConversations <= 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		DELETE FROM conversations WHERE id IN (
			SELECT id FROM conversations ORDER BY updated_at DESC LIMIT -1 OFFSET ?
		)
	`, a.MaxConversations)
	if err != nil {
		return fmt.Errorf("prune archive: %w", err)
	}
	return nil
}

// List returns up to limit conversations, most recently updated first. A
// limit of zero or less returns all of them.
func (a *Archive) List(ctx context.Context, limit int) ([]ConversationMeta, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, title, model, created_at, updated_at, turn_count
		FROM conversations ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []ConversationMeta
	for rows.Next() {
		var m ConversationMeta
		var created, updated int64
		if err := rows.Scan(&m.ID, &m.Title, &m.Model, &created, &updated, &m.TurnCount); err != nil {
			return nil, err
		}
		m.CreatedAt = time.UnixMilli(created)
		m.UpdatedAt = time.UnixMilli(updated)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// Get loads a conversation by ID or unique ID prefix.
func (a *Archive) Get(ctx context.Context, idOrPrefix string) (*Conversation, error) {
	id, err := a.resolve(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}

	conv := &Conversation{ID: id}
	var created, updated int64
	err = a.db.QueryRowContext(ctx,
		`SELECT title, model, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.Title, &conv.Model, &created, &updated)
	if err != nil {
		return nil, err
	}
	conv.CreatedAt = time.UnixMilli(created)
	conv.UpdatedAt = time.UnixMilli(updated)

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, role, content, reply_to, attachments, thoughts, created_at
		FROM turns WHERE conversation_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t model.Turn
		var role string
		var atts, thoughts sql.NullString
		var createdAt int64
		if err := rows.Scan(&t.ID, &role, &t.Content, &t.ReplyTo, &atts, &thoughts, &createdAt); err != nil {
			return nil, err
		}
		t.Role = model.Role(role)
		t.CreatedAt = time.UnixMilli(createdAt)
		if atts.Valid {
			if err := json.Unmarshal([]byte(atts.String), &t.Attachments); err != nil {
				return nil, fmt.Errorf("decode attachments of %s: %w", t.ID, err)
			}
		}
		if thoughts.Valid {
			if err := json.Unmarshal([]byte(thoughts.String), &t.Thoughts); err != nil {
				return nil, fmt.Errorf("decode thoughts of %s: %w", t.ID, err)
			}
		}
		conv.Turns = append(conv.Turns, t)
	}
	return conv, rows.Err()
}

func (a *Archive) resolve(ctx context.Context, idOrPrefix string) (string, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return "", ErrNotFound
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id FROM conversations WHERE id = ? OR id LIKE ? ESCAPE '\'
		 ORDER BY id = ? DESC LIMIT 2`,
		idOrPrefix, escapeLike(idOrPrefix)+"%", idOrPrefix)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		if id == idOrPrefix {
			return id, nil
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", ErrNotFound
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("conversation prefix %q is ambiguous", idOrPrefix)
	}
}

// Delete removes a conversation and its turns.
func (a *Archive) Delete(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalOrNull(v any) (sql.NullString, error) {
	switch x := v.(type) {
	case []model.Attachment:
		if len(x) == 0 {
			return sql.NullString{}, nil
		}
	case []model.Thought:
		if len(x) == 0 {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
