package storage

import (
	"context"
	"database/sql"
	"fmt"

	logx "whoprelay/pkg/logx"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS seen_messages (
	channel_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	position   INTEGER NOT NULL,
	PRIMARY KEY (channel_id, message_id)
)`

// sqlStore is shared by the sqlite and postgres drivers; only the
// placeholder syntax differs.
type sqlStore struct {
	db     *sql.DB
	log    logx.Logger
	insert string
}

func newSQLStore(ctx context.Context, db *sql.DB, log logx.Logger, insert string) (*sqlStore, error) {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &sqlStore{db: db, log: log, insert: insert}, nil
}

func (s *sqlStore) Load(ctx context.Context) (State, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT channel_id, message_id FROM seen_messages ORDER BY channel_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query seen messages: %w", err)
	}
	defer rows.Close()

	st := State{}
	for rows.Next() {
		var channelID, messageID string
		if err := rows.Scan(&channelID, &messageID); err != nil {
			return nil, fmt.Errorf("scan seen message: %w", err)
		}
		st[channelID] = append(st[channelID], messageID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen messages: %w", err)
	}
	return st, nil
}

// Save replaces the table content in a single transaction.
func (s *sqlStore) Save(ctx context.Context, st State) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_messages`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear seen messages: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for channelID, ids := range st {
		for pos, id := range ids {
			if _, err := stmt.ExecContext(ctx, channelID, id, pos); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert seen message %s/%s: %w", channelID, id, err)
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Trace("state written", logx.Int("rows", n))
	return nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
