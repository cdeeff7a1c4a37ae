package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/matchledger/internal/models"
)

// HistoryRow is one player's rating change from a ledger event.
type HistoryRow struct {
	MatchID   uuid.UUID
	GroupID   uuid.UUID
	PlayerID  uuid.UUID
	Mode      models.Mode
	Event     string
	OldRating int
	NewRating int
	Change    int
	At        time.Time
}

// HistoryRows flattens events into one row per rated participant, ordered by
// event then player so batches insert deterministically.
func HistoryRows(events []models.LedgerEvent) []HistoryRow {
	var rows []HistoryRow
	for _, ev := range events {
		start := len(rows)
		for playerID, d := range ev.Entry.Deltas {
			rows = append(rows, HistoryRow{
				MatchID:   ev.Entry.MatchID,
				GroupID:   ev.Entry.GroupID,
				PlayerID:  playerID,
				Mode:      ev.Entry.Mode,
				Event:     ev.Type,
				OldRating: d.OldRating,
				NewRating: d.NewRating,
				Change:    d.Change,
				At:        time.UnixMilli(ev.At).UTC(),
			})
		}
		batch := rows[start:]
		sort.Slice(batch, func(i, j int) bool {
			return batch[i].PlayerID.String() < batch[j].PlayerID.String()
		})
	}
	return rows
}

// EnsureHistorySchema creates the rating_history table.
func EnsureHistorySchema(ctx context.Context, pool *pgxpool.Pool) error {
	q := `
		CREATE TABLE IF NOT EXISTS rating_history (
			id          BIGSERIAL PRIMARY KEY,
			match_id    UUID NOT NULL,
			group_id    UUID NOT NULL,
			player_id   UUID NOT NULL,
			rating_mode TEXT NOT NULL,
			event       TEXT NOT NULL,
			old_rating  INTEGER NOT NULL,
			new_rating  INTEGER NOT NULL,
			change      INTEGER NOT NULL,
			at          TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("create rating_history: %w", err)
	}
	return nil
}

// InsertRatingHistory writes every event of a batch in a single transaction.
func InsertRatingHistory(ctx context.Context, pool *pgxpool.Pool, events []models.LedgerEvent) error {
	rows := HistoryRows(events)
	if len(rows) == 0 {
		return nil
	}
	q := `
		INSERT INTO rating_history (match_id, group_id, player_id, rating_mode, event, old_rating, new_rating, change, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, r := range rows {
			if _, err := tx.Exec(ctx, q, r.MatchID, r.GroupID, r.PlayerID, string(r.Mode), r.Event,
				r.OldRating, r.NewRating, r.Change, r.At); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert rating history: %w", err)
	}
	return nil
}
