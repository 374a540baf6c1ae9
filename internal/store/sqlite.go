package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/debemdeboas/kable/internal/db"
	"github.com/debemdeboas/kable/internal/util"
	"github.com/debemdeboas/kable/internal/util/compression"
)

type SQLiteRecordStore struct { // implements RecordStore
	db         db.DB
	compressor compression.Compressor
}

func NewSQLiteRecordStore(db db.DB, compressor compression.Compressor) *SQLiteRecordStore {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}
	return &SQLiteRecordStore{
		db:         db,
		compressor: compressor,
	}
}

func (s *SQLiteRecordStore) encode(payload Payload) ([]byte, string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("error encoding payload: %w", err)
	}

	compressed, err := s.compressor.Compress(raw)
	if err != nil {
		return nil, "", fmt.Errorf("error compressing payload: %w", err)
	}

	return compressed, util.ContentHash(compressed), nil
}

func (s *SQLiteRecordStore) decode(compressed []byte) (Payload, error) {
	raw, err := s.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing payload: %w", err)
	}

	payload := Payload{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("error decoding payload: %w", err)
	}
	return payload, nil
}

func (s *SQLiteRecordStore) CreateRecord(ctx context.Context, list string, payload Payload) (RecordID, error) {
	if list == "" {
		return 0, fmt.Errorf("list is required")
	}

	compressed, hash, err := s.encode(payload)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records (list, payload, payload_hash, created_at, modified_at) VALUES (?, ?, ?, ?, ?)`,
		list, compressed, hash, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("error creating record in %s: %w", list, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading record id: %w", err)
	}

	storeLogger.Debug().Str("list", list).Int64("id", id).Msg("Record created")
	return RecordID(id), nil
}

// UpdateRecord merges payload into the stored fields of the record.
func (s *SQLiteRecordStore) UpdateRecord(ctx context.Context, list string, id RecordID, payload Payload) error {
	tx, err := s.db.Get().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting update: %w", err)
	}
	defer tx.Rollback()

	var compressed []byte
	err = tx.QueryRowContext(ctx, `SELECT payload FROM records WHERE list = ? AND id = ?`, list, int64(id)).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%d", ErrRecordNotFound, list, id)
	} else if err != nil {
		return fmt.Errorf("error reading record %s/%d: %w", list, id, err)
	}

	current, err := s.decode(compressed)
	if err != nil {
		return err
	}
	for k, v := range payload {
		current[k] = v
	}

	updated, hash, err := s.encode(current)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET payload = ?, payload_hash = ?, modified_at = ? WHERE list = ? AND id = ?`,
		updated, hash, time.Now().UTC(), list, int64(id),
	); err != nil {
		return fmt.Errorf("error updating record %s/%d: %w", list, id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing update: %w", err)
	}

	storeLogger.Debug().Str("list", list).Int("id", int(id)).Msg("Record updated")
	return nil
}

func (s *SQLiteRecordStore) GetRecord(ctx context.Context, list string, id RecordID) (Payload, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM records WHERE list = ? AND id = ?`, list, int64(id))
	if err != nil {
		return nil, fmt.Errorf("error querying record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s/%d", ErrRecordNotFound, list, id)
	}

	var compressed []byte
	if err := rows.Scan(&compressed); err != nil {
		return nil, fmt.Errorf("error scanning record: %w", err)
	}
	return s.decode(compressed)
}

// ListRecords returns the ids of every record in list in creation order.
func (s *SQLiteRecordStore) ListRecords(ctx context.Context, list string) ([]RecordID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM records WHERE list = ? ORDER BY id`, list)
	if err != nil {
		return nil, fmt.Errorf("error querying records: %w", err)
	}
	defer rows.Close()

	ids := make([]RecordID, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning record id: %w", err)
		}
		ids = append(ids, RecordID(id))
	}
	return ids, rows.Err()
}

func (s *SQLiteRecordStore) GetFieldChoices(ctx context.Context, list, field string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT choice FROM field_choices WHERE list = ? AND field = ? ORDER BY position`,
		list, field,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying choices for %s.%s: %w", list, field, err)
	}
	defer rows.Close()

	choices := make([]string, 0)
	for rows.Next() {
		var choice string
		if err := rows.Scan(&choice); err != nil {
			return nil, fmt.Errorf("error scanning choice: %w", err)
		}
		choices = append(choices, choice)
	}
	return choices, rows.Err()
}

// SeedChoices replaces the choice set of a field. Duplicates keep their first position.
func (s *SQLiteRecordStore) SeedChoices(ctx context.Context, list, field string, choices []string) error {
	tx, err := s.db.Get().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting seed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM field_choices WHERE list = ? AND field = ?`, list, field); err != nil {
		return fmt.Errorf("error clearing choices: %w", err)
	}

	for i, choice := range choices {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO field_choices (list, field, position, choice) VALUES (?, ?, ?, ?)`,
			list, field, i, choice,
		); err != nil {
			return fmt.Errorf("error inserting choice %q: %w", choice, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing choices: %w", err)
	}

	storeLogger.Info().Str("list", list).Str("field", field).Int("count", len(choices)).Msg("Choices seeded")
	return nil
}
