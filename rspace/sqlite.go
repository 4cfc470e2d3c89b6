package rspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/chazu/rhovm/pkg/rho"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	kind    INTEGER NOT NULL,
	name    TEXT    NOT NULL,
	variant INTEGER NOT NULL,
	status  INTEGER NOT NULL DEFAULT 0,
	payload BLOB,
	err     TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (kind, name)
);
CREATE TABLE IF NOT EXISTS queue (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	kind    INTEGER NOT NULL,
	name    TEXT    NOT NULL,
	payload BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS queue_by_name ON queue (kind, name, seq);
`

// SQLite is the persistent backend. Entry headers live in the entries
// table; channel elements are rows of the queue table ordered by an
// autoincrement sequence, which gives FIFO order across restarts.
// Values are stored as CBOR. Par cannot be persisted.
//
// The connection pool is limited to one connection, so the store is
// safe for concurrent use, but operations from different callers still
// interleave; use Shared for the usual locking discipline.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ RSpace = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the store at path. ":memory:"
// gives a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	log.Debugf("sqlite rspace opened at %s", path)
	return &SQLite{db: db, path: path}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location given to OpenSQLite.
func (s *SQLite) Path() string {
	return s.path
}

func encodePayload(v rho.Value) ([]byte, error) {
	data, err := rho.MarshalValue(v)
	if errors.Is(err, rho.ErrUnencodable) {
		return nil, fmt.Errorf("%w: %v", ErrNotPersistable, err)
	}
	return data, err
}

// header reads the entry variant at (kind, name); 0 means absent.
func header(q interface {
	QueryRow(string, ...any) *sql.Row
}, kind rho.Kind, name string) (EntryKind, error) {
	var variant EntryKind
	err := q.QueryRow("SELECT variant FROM entries WHERE kind = ? AND name = ?", kind, name).Scan(&variant)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return variant, err
}

func (s *SQLite) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLite) Tell(kind rho.Kind, name string, data rho.Value) error {
	if err := CheckName(kind, name); err != nil {
		return err
	}
	if data == nil {
		data = rho.Nil
	}
	payload, err := encodePayload(data)
	if err != nil {
		return err
	}
	return s.inTx(func(tx *sql.Tx) error {
		variant, err := header(tx, kind, name)
		if err != nil {
			return err
		}
		switch variant {
		case 0:
			if _, err := tx.Exec("INSERT INTO entries (kind, name, variant) VALUES (?, ?, ?)", kind, name, EntryChannel); err != nil {
				return fmt.Errorf("tell %q: %w", name, err)
			}
		case EntryChannel:
		default:
			return typeMismatch("tell", name, variant, EntryChannel)
		}
		if _, err := tx.Exec("INSERT INTO queue (kind, name, payload) VALUES (?, ?, ?)", kind, name, payload); err != nil {
			return fmt.Errorf("tell %q: %w", name, err)
		}
		return nil
	})
}

// front reads the oldest queue element; seq is 0 when the channel is
// absent or empty.
func (s *SQLite) front(tx *sql.Tx, op string, kind rho.Kind, name string) (int64, rho.Value, error) {
	variant, err := header(tx, kind, name)
	if err != nil {
		return 0, nil, err
	}
	switch variant {
	case 0:
		return 0, nil, nil
	case EntryChannel:
	default:
		return 0, nil, typeMismatch(op, name, variant, EntryChannel)
	}
	var (
		seq     int64
		payload []byte
	)
	err = tx.QueryRow("SELECT seq, payload FROM queue WHERE kind = ? AND name = ? ORDER BY seq LIMIT 1", kind, name).Scan(&seq, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("%s %q: %w", op, name, err)
	}
	v, err := rho.UnmarshalValue(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %q: %w", op, name, err)
	}
	return seq, v, nil
}

func (s *SQLite) Ask(kind rho.Kind, name string) (rho.Value, bool, error) {
	if err := CheckName(kind, name); err != nil {
		return nil, false, err
	}
	var out rho.Value
	err := s.inTx(func(tx *sql.Tx) error {
		seq, v, err := s.front(tx, "ask", kind, name)
		if err != nil || seq == 0 {
			return err
		}
		if _, err := tx.Exec("DELETE FROM queue WHERE seq = ?", seq); err != nil {
			return fmt.Errorf("ask %q: %w", name, err)
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (s *SQLite) Peek(kind rho.Kind, name string) (rho.Value, bool, error) {
	if err := CheckName(kind, name); err != nil {
		return nil, false, err
	}
	var out rho.Value
	err := s.inTx(func(tx *sql.Tx) error {
		_, v, err := s.front(tx, "peek", kind, name)
		out = v
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func encodeState(state rho.ProcessState) ([]byte, error) {
	if state.Status != rho.StatusValue {
		return nil, nil
	}
	return encodePayload(state.Result)
}

func (s *SQLite) RegisterProcess(kind rho.Kind, name string, state rho.ProcessState) error {
	if err := CheckName(kind, name); err != nil {
		return err
	}
	payload, err := encodeState(state)
	if err != nil {
		return err
	}
	return s.inTx(func(tx *sql.Tx) error {
		variant, err := header(tx, kind, name)
		if err != nil {
			return err
		}
		if variant != 0 {
			return fmt.Errorf("%w: register process %q: holds a %s", ErrEntryExists, name, variant)
		}
		_, err = tx.Exec("INSERT INTO entries (kind, name, variant, status, payload, err) VALUES (?, ?, ?, ?, ?, ?)",
			kind, name, EntryProcess, state.Status, payload, state.Err)
		return err
	})
}

func (s *SQLite) UpdateProcess(kind rho.Kind, name string, state rho.ProcessState) error {
	if err := CheckName(kind, name); err != nil {
		return err
	}
	payload, err := encodeState(state)
	if err != nil {
		return err
	}
	return s.inTx(func(tx *sql.Tx) error {
		variant, err := header(tx, kind, name)
		if err != nil {
			return err
		}
		switch variant {
		case 0:
			return fmt.Errorf("%w: update process %q", ErrNotFound, name)
		case EntryProcess:
		default:
			return typeMismatch("update process", name, variant, EntryProcess)
		}
		_, err = tx.Exec("UPDATE entries SET status = ?, payload = ?, err = ? WHERE kind = ? AND name = ?",
			state.Status, payload, state.Err, kind, name)
		return err
	})
}

func (s *SQLite) ProcessState(kind rho.Kind, name string) (rho.ProcessState, bool) {
	e, ok := s.Entry(kind, name)
	if !ok {
		return rho.ProcessState{}, false
	}
	pe, isProc := e.(ProcessEntry)
	return pe.State, isProc
}

func (s *SQLite) SetValue(kind rho.Kind, name string, v rho.Value) error {
	if err := CheckName(kind, name); err != nil {
		return err
	}
	if v == nil {
		v = rho.Nil
	}
	payload, err := encodePayload(v)
	if err != nil {
		return err
	}
	return s.inTx(func(tx *sql.Tx) error {
		variant, err := header(tx, kind, name)
		if err != nil {
			return err
		}
		if variant != 0 {
			return fmt.Errorf("%w: set value %q: holds a %s", ErrEntryExists, name, variant)
		}
		_, err = tx.Exec("INSERT INTO entries (kind, name, variant, payload) VALUES (?, ?, ?, ?)",
			kind, name, EntryValue, payload)
		return err
	})
}

func (s *SQLite) Value(kind rho.Kind, name string) (rho.Value, bool) {
	e, ok := s.Entry(kind, name)
	if !ok {
		return nil, false
	}
	ve, isVal := e.(ValueEntry)
	return ve.Value, isVal
}

func (s *SQLite) Entry(kind rho.Kind, name string) (Entry, bool) {
	if CheckName(kind, name) != nil {
		return nil, false
	}
	e, err := s.loadEntry(kind, name)
	if err != nil {
		log.Errorf("sqlite rspace: reading %q: %s", name, err)
		return nil, false
	}
	return e, e != nil
}

func (s *SQLite) loadEntry(kind rho.Kind, name string) (Entry, error) {
	var (
		variant EntryKind
		status  rho.Status
		payload []byte
		errMsg  string
	)
	err := s.db.QueryRow("SELECT variant, status, payload, err FROM entries WHERE kind = ? AND name = ?", kind, name).
		Scan(&variant, &status, &payload, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	switch variant {
	case EntryChannel:
		rows, err := s.db.Query("SELECT payload FROM queue WHERE kind = ? AND name = ? ORDER BY seq", kind, name)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		queue := []rho.Value{}
		for rows.Next() {
			var data []byte
			if err := rows.Scan(&data); err != nil {
				return nil, err
			}
			v, err := rho.UnmarshalValue(data)
			if err != nil {
				return nil, err
			}
			queue = append(queue, v)
		}
		return ChannelEntry{Queue: queue}, rows.Err()
	case EntryProcess:
		state := rho.ProcessState{Status: status, Err: errMsg}
		if status == rho.StatusValue {
			v, err := rho.UnmarshalValue(payload)
			if err != nil {
				return nil, err
			}
			state.Result = v
		}
		return ProcessEntry{State: state}, nil
	case EntryValue:
		v, err := rho.UnmarshalValue(payload)
		if err != nil {
			return nil, err
		}
		return ValueEntry{Value: v}, nil
	default:
		return nil, fmt.Errorf("unknown entry variant %d", variant)
	}
}

func (s *SQLite) IsSolved(kind rho.Kind, name string) bool {
	return IsSolved(s.Entry(kind, name))
}

func (s *SQLite) Reset() error {
	log.Debugf("sqlite rspace reset (%s)", s.path)
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM queue"); err != nil {
			return err
		}
		_, err := tx.Exec("DELETE FROM entries")
		return err
	})
}
