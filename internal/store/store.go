// Package store handles persistence of sessions, sight settings and cached stats.
package store

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

	"github.com/verte-zerg/quiver/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// SQLite stores sessions in a local SQLite database.
type SQLite struct {
	db       *sql.DB
	strategy Strategy
}

// Option configures the SQLite backend.
type Option func(*SQLite)

// WithStrategy selects how score matrices are written. Reads accept rows
// written with either strategy.
func WithStrategy(strategy Strategy) Option {
	return func(s *SQLite) {
		s.strategy = strategy
	}
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string, opts ...Option) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("open: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open: create db dir: %w", err)
	}
	dsn := "file:" + path + "?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: sql open: %w", err)
	}
	// A single connection serialises writers inside the process.
	db.SetMaxOpenConns(1)

	store := &SQLite{db: db, strategy: StrategyDocument}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(context.Background()); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Strategy returns the write strategy in use.
func (s *SQLite) Strategy() Strategy {
	return s.strategy
}

const sessionColumns = `id, owner_id, archer_name, archer_surname, bow_type, distance, total_ends,
	arrows_per_end, session_kind, ends_json, x_count, completed, created_at, updated_at, synced`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateSession inserts a new session; ErrConflict if the id exists.
func (s *SQLite) CreateSession(ctx context.Context, sess model.Session) (model.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Session{}, unavailable("create session", err)
	}
	defer rollback(tx)

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, sess.ID).Scan(&exists); err != nil {
		return model.Session{}, unavailable("create session", err)
	}
	if exists > 0 {
		return model.Session{}, fmt.Errorf("create session %s: %w", sess.ID, ErrConflict)
	}

	endsJSON, err := s.encodeEnds(sess)
	if err != nil {
		return model.Session{}, fmt.Errorf("create session %s: %w", sess.ID, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.OwnerID,
		sess.ArcherName,
		sess.ArcherSurname,
		string(sess.BowType),
		sess.Distance,
		sess.TotalEnds,
		sess.ArrowsPerEnd,
		string(sess.Kind),
		endsJSON,
		sess.XCount,
		boolInt(sess.Completed),
		model.UnixMilli(sess.CreatedAt),
		model.UnixMilli(sess.UpdatedAt),
		boolInt(sess.Synced),
	)
	if err != nil {
		return model.Session{}, unavailable("create session", err)
	}
	if s.strategy == StrategyArrowRecords {
		if err := writeArrows(ctx, tx, sess); err != nil {
			return model.Session{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Session{}, unavailable("create session", err)
	}
	return sess.Clone(), nil
}

// PutSession replaces every stored field of an existing session.
func (s *SQLite) PutSession(ctx context.Context, sess model.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("put session", err)
	}
	defer rollback(tx)

	endsJSON, err := s.encodeEnds(sess)
	if err != nil {
		return fmt.Errorf("put session %s: %w", sess.ID, err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET owner_id = ?, archer_name = ?, archer_surname = ?, bow_type = ?, distance = ?,
			total_ends = ?, arrows_per_end = ?, session_kind = ?, ends_json = ?, x_count = ?, completed = ?,
			created_at = ?, updated_at = ?, synced = ?
		 WHERE id = ?`,
		sess.OwnerID,
		sess.ArcherName,
		sess.ArcherSurname,
		string(sess.BowType),
		sess.Distance,
		sess.TotalEnds,
		sess.ArrowsPerEnd,
		string(sess.Kind),
		endsJSON,
		sess.XCount,
		boolInt(sess.Completed),
		model.UnixMilli(sess.CreatedAt),
		model.UnixMilli(sess.UpdatedAt),
		boolInt(sess.Synced),
		sess.ID,
	)
	if err != nil {
		return unavailable("put session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("put session", err)
	}
	if n == 0 {
		return fmt.Errorf("put session %s: %w", sess.ID, ErrNotFound)
	}
	if s.strategy == StrategyArrowRecords {
		if err := writeArrows(ctx, tx, sess); err != nil {
			return err
		}
	} else if _, err := tx.ExecContext(ctx, `DELETE FROM session_arrows WHERE session_id = ?`, sess.ID); err != nil {
		return unavailable("put session", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("put session", err)
	}
	return nil
}

// GetSession loads one session by id.
func (s *SQLite) GetSession(ctx context.Context, id string) (model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, endsJSON, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Session{}, unavailable("get session", err)
	}
	if endsJSON.Valid {
		if err := decodeEnds(&sess, endsJSON.String); err != nil {
			return model.Session{}, err
		}
		return sess, nil
	}
	arrows, err := s.loadArrows(ctx, []string{id})
	if err != nil {
		return model.Session{}, err
	}
	if err := applyArrows(&sess, arrows[id]); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// ListSessionsByOwner returns the owner's sessions, newest created first.
func (s *SQLite) ListSessionsByOwner(ctx context.Context, ownerID string) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, unavailable("list sessions", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.Session
	var recordIDs []string
	for rows.Next() {
		sess, endsJSON, err := scanSession(rows)
		if err != nil {
			return nil, unavailable("list sessions", err)
		}
		if endsJSON.Valid {
			if err := decodeEnds(&sess, endsJSON.String); err != nil {
				return nil, err
			}
		} else {
			recordIDs = append(recordIDs, sess.ID)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list sessions", err)
	}
	if len(recordIDs) == 0 {
		return sessions, nil
	}

	arrows, err := s.loadArrows(ctx, recordIDs)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].Ends != nil {
			continue
		}
		if err := applyArrows(&sessions[i], arrows[sessions[i].ID]); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

// DeleteSession removes a session and its arrow records.
func (s *SQLite) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("delete session", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_arrows WHERE session_id = ?`, id); err != nil {
		return unavailable("delete session", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return unavailable("delete session", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("delete session", err)
	}
	return nil
}

func scanSession(row rowScanner) (model.Session, sql.NullString, error) {
	var sess model.Session
	var bow, kind string
	var endsJSON sql.NullString
	var completed, synced int64
	var createdAt, updatedAt int64
	err := row.Scan(
		&sess.ID,
		&sess.OwnerID,
		&sess.ArcherName,
		&sess.ArcherSurname,
		&bow,
		&sess.Distance,
		&sess.TotalEnds,
		&sess.ArrowsPerEnd,
		&kind,
		&endsJSON,
		&sess.XCount,
		&completed,
		&createdAt,
		&updatedAt,
		&synced,
	)
	if err != nil {
		return model.Session{}, endsJSON, err
	}
	sess.BowType = model.BowType(bow)
	sess.Kind = model.SessionKind(kind)
	sess.Completed = completed != 0
	sess.Synced = synced != 0
	sess.CreatedAt = model.FromUnixMilli(createdAt)
	sess.UpdatedAt = model.FromUnixMilli(updatedAt)
	return sess, endsJSON, nil
}

func (s *SQLite) encodeEnds(sess model.Session) (any, error) {
	if s.strategy == StrategyArrowRecords {
		return nil, nil
	}
	data, err := json.Marshal(sess.Ends)
	if err != nil {
		return nil, fmt.Errorf("encode score matrix: %w", err)
	}
	return string(data), nil
}

func decodeEnds(sess *model.Session, data string) error {
	var ends []model.End
	if err := json.Unmarshal([]byte(data), &ends); err != nil {
		return fmt.Errorf("session %s: decode score matrix: %w", sess.ID, err)
	}
	sess.Ends = ends
	return nil
}

type arrowRecord struct {
	end   int
	arrow int
	value model.ArrowScore
}

func writeArrows(ctx context.Context, tx *sql.Tx, sess model.Session) error {
	if err := validateShape(sess); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_arrows WHERE session_id = ?`, sess.ID); err != nil {
		return unavailable("write arrows", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO session_arrows (session_id, end_index, arrow_index, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return unavailable("write arrows", err)
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for e, end := range sess.Ends {
		for a, value := range end {
			if !value.IsSet() {
				continue
			}
			if _, err := stmt.ExecContext(ctx, sess.ID, e, a, value.String()); err != nil {
				return unavailable("write arrows", err)
			}
		}
	}
	return nil
}

func (s *SQLite) loadArrows(ctx context.Context, sessionIDs []string) (map[string][]arrowRecord, error) {
	placeholders := make([]string, len(sessionIDs))
	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT session_id, end_index, arrow_index, value
		FROM session_arrows
		WHERE session_id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("load arrows", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	result := map[string][]arrowRecord{}
	for rows.Next() {
		var sessionID, token string
		var rec arrowRecord
		if err := rows.Scan(&sessionID, &rec.end, &rec.arrow, &token); err != nil {
			return nil, unavailable("load arrows", err)
		}
		value, err := model.ParseArrowScore(token)
		if err != nil {
			return nil, fmt.Errorf("session %s: arrow %d/%d: %w", sessionID, rec.end, rec.arrow, err)
		}
		rec.value = value
		result[sessionID] = append(result[sessionID], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("load arrows", err)
	}
	return result, nil
}

// applyArrows rebuilds the matrix from arrow records and recomputes the X
// count from them, since the rows are the source of truth in this layout.
func applyArrows(sess *model.Session, records []arrowRecord) error {
	sess.Ends = model.NewEnds(sess.TotalEnds, sess.ArrowsPerEnd)
	for _, rec := range records {
		pos := model.Position{End: rec.end, Arrow: rec.arrow}
		if !sess.InBounds(pos) {
			return fmt.Errorf("session %s: arrow record %d/%d outside %dx%d", sess.ID, rec.end, rec.arrow, sess.TotalEnds, sess.ArrowsPerEnd)
		}
		sess.Ends[rec.end][rec.arrow] = rec.value
	}
	sess.XCount = sess.CountX()
	return nil
}

// CreateSightSetting inserts a sight mark; ErrConflict if the id exists.
func (s *SQLite) CreateSightSetting(ctx context.Context, sight model.SightSetting) (model.SightSetting, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sight_settings WHERE id = ?`, sight.ID).Scan(&exists); err != nil {
		return model.SightSetting{}, unavailable("create sight setting", err)
	}
	if exists > 0 {
		return model.SightSetting{}, fmt.Errorf("create sight setting %s: %w", sight.ID, ErrConflict)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sight_settings (id, owner_id, bow_identifier, distance, sight_mark, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sight.ID,
		sight.OwnerID,
		sight.BowIdentifier,
		sight.Distance,
		sight.SightMark,
		sight.Notes,
		model.UnixMilli(sight.CreatedAt),
		model.UnixMilli(sight.UpdatedAt),
	)
	if err != nil {
		return model.SightSetting{}, unavailable("create sight setting", err)
	}
	return sight, nil
}

// GetSightSetting loads one sight mark by id.
func (s *SQLite) GetSightSetting(ctx context.Context, id string) (model.SightSetting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, bow_identifier, distance, sight_mark, notes, created_at, updated_at
		 FROM sight_settings WHERE id = ?`, id)
	sight, err := scanSight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SightSetting{}, fmt.Errorf("get sight setting %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.SightSetting{}, unavailable("get sight setting", err)
	}
	return sight, nil
}

// PutSightSetting replaces an existing sight mark.
func (s *SQLite) PutSightSetting(ctx context.Context, sight model.SightSetting) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sight_settings SET owner_id = ?, bow_identifier = ?, distance = ?, sight_mark = ?, notes = ?,
			created_at = ?, updated_at = ?
		 WHERE id = ?`,
		sight.OwnerID,
		sight.BowIdentifier,
		sight.Distance,
		sight.SightMark,
		sight.Notes,
		model.UnixMilli(sight.CreatedAt),
		model.UnixMilli(sight.UpdatedAt),
		sight.ID,
	)
	if err != nil {
		return unavailable("put sight setting", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("put sight setting", err)
	}
	if n == 0 {
		return fmt.Errorf("put sight setting %s: %w", sight.ID, ErrNotFound)
	}
	return nil
}

// ListSightSettings returns the owner's marks for a bow, nearest distance first.
func (s *SQLite) ListSightSettings(ctx context.Context, ownerID, bow string) ([]model.SightSetting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, bow_identifier, distance, sight_mark, notes, created_at, updated_at
		 FROM sight_settings
		 WHERE owner_id = ? AND bow_identifier = ?
		 ORDER BY distance ASC, created_at ASC`, ownerID, bow)
	if err != nil {
		return nil, unavailable("list sight settings", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.SightSetting
	for rows.Next() {
		sight, err := scanSight(rows)
		if err != nil {
			return nil, unavailable("list sight settings", err)
		}
		result = append(result, sight)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list sight settings", err)
	}
	return result, nil
}

// DeleteSightSetting removes a sight mark. Missing ids are ignored.
func (s *SQLite) DeleteSightSetting(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sight_settings WHERE id = ?`, id); err != nil {
		return unavailable("delete sight setting", err)
	}
	return nil
}

func scanSight(row rowScanner) (model.SightSetting, error) {
	var sight model.SightSetting
	var createdAt, updatedAt int64
	if err := row.Scan(
		&sight.ID,
		&sight.OwnerID,
		&sight.BowIdentifier,
		&sight.Distance,
		&sight.SightMark,
		&sight.Notes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return model.SightSetting{}, err
	}
	sight.CreatedAt = model.FromUnixMilli(createdAt)
	sight.UpdatedAt = model.FromUnixMilli(updatedAt)
	return sight, nil
}

// LoadStatsCache returns the cached stats payload for an owner.
func (s *SQLite) LoadStatsCache(ctx context.Context, ownerID string) ([]byte, time.Time, bool, error) {
	var computedAt int64
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT computed_at, data FROM stats_cache WHERE owner_id = ?`, ownerID).Scan(&computedAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, unavailable("load stats cache", err)
	}
	return []byte(data), model.FromUnixMilli(computedAt), true, nil
}

// SaveStatsCache upserts the cached stats payload for an owner.
func (s *SQLite) SaveStatsCache(ctx context.Context, ownerID string, payload []byte, computedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stats_cache (owner_id, computed_at, data) VALUES (?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET computed_at = excluded.computed_at, data = excluded.data`,
		ownerID, model.UnixMilli(computedAt), string(payload))
	if err != nil {
		return unavailable("save stats cache", err)
	}
	return nil
}

// DeleteStatsCache drops the cached stats payload for an owner.
func (s *SQLite) DeleteStatsCache(ctx context.Context, ownerID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM stats_cache WHERE owner_id = ?`, ownerID); err != nil {
		return unavailable("delete stats cache", err)
	}
	return nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
