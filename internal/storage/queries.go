package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pable/codstats/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

// ReplaceMatches swaps the mirrored dataset for records in one transaction.
func (db *DB) ReplaceMatches(ctx context.Context, datasetID string, records []model.MatchRecord) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM matches`); err != nil {
		return fmt.Errorf("clear matches: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM datasets`); err != nil {
		return fmt.Errorf("clear datasets: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets(id, loaded_at, match_count) VALUES (?,?,?)`,
		datasetID, time.Now().UTC().Format(timeLayout), len(records)); err != nil {
		return fmt.Errorf("insert dataset %s: %w", datasetID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO matches(
			dataset_id, seq, operator, game_type, map, match_outcome,
			utc_timestamp, local_time, match_start, match_end, duration_s,
			kills, deaths, hits, shots, headshots, score, skill,
			longest_streak, damage_done, damage_taken
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		_, err = stmt.ExecContext(ctx,
			datasetID, i, r.Operator, r.GameType, r.Map, r.MatchOutcome,
			r.UTCTimestamp.UTC().Format(timeLayout), r.LocalTime.Format(timeLayout),
			r.MatchStart.UTC().Format(timeLayout), r.MatchEnd.UTC().Format(timeLayout),
			int64(r.Duration().Seconds()),
			r.Kills, r.Deaths, r.Hits, r.Shots, r.Headshots, r.Score, r.Skill,
			r.LongestStreak, r.DamageDone, r.DamageTaken,
		)
		if err != nil {
			return fmt.Errorf("insert match %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// DatasetID returns the ID of the mirrored dataset, or "" when empty.
func (db *DB) DatasetID(ctx context.Context) (string, error) {
	var id string
	err := db.conn.QueryRowContext(ctx, `SELECT id FROM datasets LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// MatchCount returns the number of mirrored matches.
func (db *DB) MatchCount(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n)
	return n, err
}

// MapTotal is the summed kills and deaths on one map.
type MapTotal struct {
	Map     string
	Matches int
	Kills   int
	Deaths  int
}

// MapTotals sums kills and deaths per map, ordered by map name.
func (db *DB) MapTotals(ctx context.Context) ([]MapTotal, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT map, COUNT(*), SUM(kills), SUM(deaths)
		FROM matches GROUP BY map ORDER BY map`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MapTotal
	for rows.Next() {
		var m MapTotal
		if err := rows.Scan(&m.Map, &m.Matches, &m.Kills, &m.Deaths); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// QueryRaw runs an arbitrary query and returns column names and every row
// rendered as text. NULLs render as "NULL".
func (db *DB) QueryRaw(ctx context.Context, query string) ([]string, [][]string, error) {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = cellText(v)
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case float64:
		return fmt.Sprintf("%.4g", x)
	case time.Time:
		return x.Format(timeLayout)
	default:
		return fmt.Sprint(x)
	}
}
