package store

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/verte-zerg/quiver/internal/model"
)

const (
	sessionPrefix = "session/"
	ownerPrefix   = "owner/"
	sightPrefix   = "sight/"
	cachePrefix   = "cache/"
)

// BadgerConfig configures the embedded key-value backend.
type BadgerConfig struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string
	// InMemory keeps all data in RAM. Used by tests.
	InMemory   bool
	SyncWrites bool
	// Logger receives badger's internal log lines. Nil silences them.
	Logger *slog.Logger
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Badger stores sessions as JSON documents in a badger database, with a
// secondary owner index ordered by creation time.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens or creates a badger backend.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("open badger: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("open badger: create dir %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

// Close closes the badger database.
func (b *Badger) Close() error {
	return b.db.Close()
}

func sessionKey(id string) []byte {
	return []byte(sessionPrefix + id)
}

func ownerIndexPrefix(ownerID string) []byte {
	return []byte(ownerPrefix + hex.EncodeToString([]byte(ownerID)) + "/")
}

// ownerIndexKey sorts by creation time, then id, so a reverse scan yields
// newest first.
func ownerIndexKey(s model.Session) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", ownerIndexPrefix(s.OwnerID), model.UnixMilli(s.CreatedAt), s.ID))
}

func getJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// CreateSession writes the session and its owner index key in one transaction.
func (b *Badger) CreateSession(ctx context.Context, s model.Session) (model.Session, error) {
	if err := ctxErr(ctx, "create session"); err != nil {
		return model.Session{}, err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(sessionKey(s.ID)); err == nil {
			return fmt.Errorf("create session %s: %w", s.ID, ErrConflict)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return unavailable("create session", err)
		}
		if err := setJSON(txn, sessionKey(s.ID), s); err != nil {
			return unavailable("create session", err)
		}
		if err := txn.Set(ownerIndexKey(s), nil); err != nil {
			return unavailable("create session", err)
		}
		return nil
	})
	if err != nil {
		return model.Session{}, b.wrap("create session", err)
	}
	return s.Clone(), nil
}

// GetSession loads one session by id.
func (b *Badger) GetSession(ctx context.Context, id string) (model.Session, error) {
	if err := ctxErr(ctx, "get session"); err != nil {
		return model.Session{}, err
	}
	var s model.Session
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, sessionKey(id), &s)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.Session{}, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Session{}, b.wrap("get session", err)
	}
	return s, nil
}

// PutSession replaces an existing session, moving its index key if needed.
func (b *Badger) PutSession(ctx context.Context, s model.Session) error {
	if err := ctxErr(ctx, "put session"); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		var old model.Session
		if err := getJSON(txn, sessionKey(s.ID), &old); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("put session %s: %w", s.ID, ErrNotFound)
			}
			return unavailable("put session", err)
		}
		if oldKey := ownerIndexKey(old); string(oldKey) != string(ownerIndexKey(s)) {
			if err := txn.Delete(oldKey); err != nil {
				return unavailable("put session", err)
			}
			if err := txn.Set(ownerIndexKey(s), nil); err != nil {
				return unavailable("put session", err)
			}
		}
		if err := setJSON(txn, sessionKey(s.ID), s); err != nil {
			return unavailable("put session", err)
		}
		return nil
	})
	return b.wrap("put session", err)
}

// ListSessionsByOwner walks the owner index in reverse, newest created first.
func (b *Badger) ListSessionsByOwner(ctx context.Context, ownerID string) ([]model.Session, error) {
	if err := ctxErr(ctx, "list sessions"); err != nil {
		return nil, err
	}
	var out []model.Session
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := ownerIndexPrefix(ownerID)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte(nil), prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			id := key[strings.LastIndex(key, "/")+1:]
			var s model.Session
			if err := getJSON(txn, sessionKey(id), &s); err != nil {
				return fmt.Errorf("session %s: %w", id, err)
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, b.wrap("list sessions", err)
	}
	return out, nil
}

// DeleteSession removes a session and its index key; unknown ids are ignored.
func (b *Badger) DeleteSession(ctx context.Context, id string) error {
	if err := ctxErr(ctx, "delete session"); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		var old model.Session
		if err := getJSON(txn, sessionKey(id), &old); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		if err := txn.Delete(ownerIndexKey(old)); err != nil {
			return err
		}
		return txn.Delete(sessionKey(id))
	})
	return b.wrap("delete session", err)
}

// CreateSightSetting stores a new sight mark.
func (b *Badger) CreateSightSetting(ctx context.Context, s model.SightSetting) (model.SightSetting, error) {
	if err := ctxErr(ctx, "create sight setting"); err != nil {
		return model.SightSetting{}, err
	}
	key := []byte(sightPrefix + s.ID)
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("create sight setting %s: %w", s.ID, ErrConflict)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, key, s)
	})
	if err != nil {
		return model.SightSetting{}, b.wrap("create sight setting", err)
	}
	return s, nil
}

// GetSightSetting loads one sight mark by id.
func (b *Badger) GetSightSetting(ctx context.Context, id string) (model.SightSetting, error) {
	if err := ctxErr(ctx, "get sight setting"); err != nil {
		return model.SightSetting{}, err
	}
	var s model.SightSetting
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(sightPrefix+id), &s)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.SightSetting{}, fmt.Errorf("get sight setting %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.SightSetting{}, b.wrap("get sight setting", err)
	}
	return s, nil
}

// PutSightSetting replaces an existing sight mark.
func (b *Badger) PutSightSetting(ctx context.Context, s model.SightSetting) error {
	if err := ctxErr(ctx, "put sight setting"); err != nil {
		return err
	}
	key := []byte(sightPrefix + s.ID)
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("put sight setting %s: %w", s.ID, ErrNotFound)
			}
			return err
		}
		return setJSON(txn, key, s)
	})
	return b.wrap("put sight setting", err)
}

// ListSightSettings returns the owner's marks for a bow, nearest first.
func (b *Badger) ListSightSettings(ctx context.Context, ownerID, bow string) ([]model.SightSetting, error) {
	if err := ctxErr(ctx, "list sight settings"); err != nil {
		return nil, err
	}
	var out []model.SightSetting
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sightPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			var s model.SightSetting
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return err
			}
			if s.OwnerID == ownerID && s.BowIdentifier == bow {
				out = append(out, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, b.wrap("list sight settings", err)
	}
	sortByDistance(out)
	return out, nil
}

// DeleteSightSetting removes a sight mark; unknown ids are ignored.
func (b *Badger) DeleteSightSetting(ctx context.Context, id string) error {
	if err := ctxErr(ctx, "delete sight setting"); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sightPrefix + id))
	})
	return b.wrap("delete sight setting", err)
}

// Cache values are an 8-byte big-endian computedAt (epoch ms) followed by the payload.

// LoadStatsCache returns the cached stats payload for an owner.
func (b *Badger) LoadStatsCache(ctx context.Context, ownerID string) ([]byte, time.Time, bool, error) {
	if err := ctxErr(ctx, "load stats cache"); err != nil {
		return nil, time.Time{}, false, err
	}
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cachePrefix + ownerID))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, b.wrap("load stats cache", err)
	}
	if len(raw) < 8 {
		return nil, time.Time{}, false, fmt.Errorf("load stats cache: truncated entry for %s", ownerID)
	}
	computedAt := model.FromUnixMilli(int64(binary.BigEndian.Uint64(raw[:8])))
	return raw[8:], computedAt, true, nil
}

// SaveStatsCache stores the stats payload for an owner.
func (b *Badger) SaveStatsCache(ctx context.Context, ownerID string, payload []byte, computedAt time.Time) error {
	if err := ctxErr(ctx, "save stats cache"); err != nil {
		return err
	}
	value := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(value[:8], uint64(model.UnixMilli(computedAt)))
	copy(value[8:], payload)
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(cachePrefix+ownerID), value)
	})
	return b.wrap("save stats cache", err)
}

// DeleteStatsCache drops the owner's cached payload.
func (b *Badger) DeleteStatsCache(ctx context.Context, ownerID string) error {
	if err := ctxErr(ctx, "delete stats cache"); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(cachePrefix + ownerID))
	})
	return b.wrap("delete stats cache", err)
}

// wrap leaves already-classified errors alone and marks the rest as engine
// failures.
func (b *Badger) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return unavailable(op, err)
}
