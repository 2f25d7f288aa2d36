package db

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"pinbin/pkg/domain"
	"pinbin/svc/auth"
	"pinbin/svc/util"
)

var ErrCircuitOpen = errors.New("database circuit breaker open")

const (
	circuitClosed   = 0
	circuitOpen     = 1
	circuitHalfOpen = 2
	maxFailures     = 5
	cooldownSeconds = 30
)

const (
	defaultMaxOpenConns = 100
	defaultMaxIdleConns = 10
	defaultQueryTimeout = 5 * time.Second
)

// SQLite is the production Store. WAL journaling with synchronous=FULL gives
// the write-through guarantee: once a mutating call returns nil, the record
// is on disk and survives a crash.
type SQLite struct {
	db            *sql.DB
	hasher        *auth.Hasher
	failures      int32
	circuitState  int32
	circuitOpened int64
	queryTimeout  time.Duration
}

func (s *SQLite) DB() *sql.DB {
	return s.db
}

func NewSQLite(path string, hasher *auth.Hasher) (*SQLite, error) {
	return NewSQLiteWithConfig(path, hasher, defaultMaxOpenConns, defaultMaxIdleConns, defaultQueryTimeout)
}

func NewSQLiteWithConfig(path string, hasher *auth.Hasher, maxOpenConns, maxIdleConns int, queryTimeout time.Duration) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping db")
	}
	s := &SQLite{
		db:           db,
		hasher:       hasher,
		queryTimeout: queryTimeout,
	}
	if err := s.migrate(); err != nil {
		return nil, errors.Wrap(err, "migration failed")
	}
	return s, nil
}

func (s *SQLite) checkCircuit() error {
	state := atomic.LoadInt32(&s.circuitState)
	switch state {
	case circuitClosed:
		return nil
	case circuitOpen:
		opened := atomic.LoadInt64(&s.circuitOpened)
		if time.Now().Unix()-opened >= cooldownSeconds {
			if atomic.CompareAndSwapInt32(&s.circuitState, circuitOpen, circuitHalfOpen) {
				return nil
			}
		}
		return ErrCircuitOpen
	case circuitHalfOpen:
		return nil
	default:
		return nil
	}
}

func (s *SQLite) recordError(err error) {
	if err == nil {
		atomic.StoreInt32(&s.failures, 0)
		atomic.StoreInt32(&s.circuitState, circuitClosed)
		return
	}
	if errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return
	}
	failures := atomic.AddInt32(&s.failures, 1)
	if atomic.LoadInt32(&s.circuitState) == circuitHalfOpen {
		atomic.StoreInt32(&s.circuitState, circuitOpen)
		atomic.StoreInt64(&s.circuitOpened, time.Now().Unix())
		atomic.StoreInt32(&s.failures, 0)
		return
	}
	if failures >= maxFailures && atomic.LoadInt32(&s.circuitState) == circuitClosed {
		atomic.StoreInt32(&s.circuitState, circuitOpen)
		atomic.StoreInt64(&s.circuitOpened, time.Now().Unix())
	}
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return errors.Wrap(err, "enable WAL mode")
	}
	_, err = s.db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		return errors.Wrap(err, "set busy timeout")
	}
	_, err = s.db.Exec("PRAGMA synchronous=FULL")
	if err != nil {
		return errors.Wrap(err, "set synchronous mode")
	}
	_, err = s.db.Exec("PRAGMA foreign_keys=ON")
	if err != nil {
		return errors.Wrap(err, "enable foreign keys")
	}
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		avatar_url TEXT
	);
	CREATE TABLE IF NOT EXISTS pastes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		is_private INTEGER NOT NULL DEFAULT 0,
		password TEXT,
		is_pinned INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pastes_created_at ON pastes(created_at);
	CREATE INDEX IF NOT EXISTS idx_pastes_owner ON pastes(owner_id);
	`
	_, err = s.db.Exec(query)
	return err
}

const userColumns = "id, username, password, is_admin, avatar_url"

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Password, &u.IsAdmin, &u.AvatarURL)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLite) GetUser(ctx context.Context, id int) (*domain.User, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(queryCtx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUserNotFound
	}
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db get user")
	}
	return u, nil
}

func (s *SQLite) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(queryCtx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUserNotFound
	}
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db get user by username")
	}
	return u, nil
}

func (s *SQLite) CreateUser(ctx context.Context, username, plainPassword string) (*domain.User, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	res, err := s.db.ExecContext(queryCtx,
		"INSERT INTO users (username, password, is_admin, avatar_url) VALUES (?, ?, 0, NULL)",
		username, hash,
	)
	if isUniqueViolation(err) {
		return nil, domain.ErrUsernameTaken
	}
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db create user")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "last insert id")
	}
	return &domain.User{
		ID:       int(id),
		Username: username,
		Password: hash,
	}, nil
}

func (s *SQLite) UpdateUser(ctx context.Context, id int, changes domain.UserUpdate) error {
	if err := s.checkCircuit(); err != nil {
		return err
	}
	var password *string
	if changes.Password != nil {
		hash, err := s.hasher.Hash(*changes.Password)
		if err != nil {
			return errors.Wrap(err, "hash password")
		}
		password = &hash
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	// A single statement merges in place, so concurrent updates to different
	// fields cannot overwrite each other with stale snapshots. Missing ids
	// match zero rows and stay a no-op.
	_, err := s.db.ExecContext(queryCtx, `
		UPDATE users SET
			password = COALESCE(?, password),
			is_admin = COALESCE(?, is_admin),
			avatar_url = COALESCE(?, avatar_url)
		WHERE id = ?
	`, password, changes.IsAdmin, changes.AvatarURL, id)
	s.recordError(err)
	return errors.Wrap(err, "db update user")
}

func (s *SQLite) DeleteUser(ctx context.Context, id int) error {
	if err := s.checkCircuit(); err != nil {
		return err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	_, err := s.db.ExecContext(queryCtx, "DELETE FROM users WHERE id = ?", id)
	s.recordError(err)
	return errors.Wrap(err, "db delete user")
}

func (s *SQLite) GetAllUsers(ctx context.Context) ([]domain.User, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(queryCtx, "SELECT "+userColumns+" FROM users ORDER BY id")
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db list users")
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		users = append(users, *u)
	}
	return users, errors.Wrap(rows.Err(), "iterate users")
}

const pasteColumns = "id, url_id, title, content, owner_id, is_private, password, is_pinned, created_at"

func scanPaste(row interface{ Scan(...any) error }) (*domain.Paste, error) {
	var p domain.Paste
	var password sql.NullString
	err := row.Scan(&p.ID, &p.URLID, &p.Title, &p.Content, &p.OwnerID, &p.IsPrivate, &password, &p.IsPinned, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Password = password.String
	return &p, nil
}

func (s *SQLite) CreatePaste(ctx context.Context, params domain.CreatePasteParams, ownerID int) (*domain.Paste, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	urlID, err := util.GenURLID(func(id string) (bool, error) {
		return s.urlIDExists(ctx, id)
	})
	if err != nil {
		return nil, errors.Wrap(err, "mint url id")
	}
	var password sql.NullString
	if params.IsPrivate && params.Password != "" {
		password = sql.NullString{String: params.Password, Valid: true}
	}
	now := time.Now().UTC()
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	res, err := s.db.ExecContext(queryCtx, `
		INSERT INTO pastes (url_id, title, content, owner_id, is_private, password, is_pinned, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`, urlID, params.Title, params.Content, ownerID, params.IsPrivate, password, now)
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db create paste")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "last insert id")
	}
	return &domain.Paste{
		ID:        int(id),
		URLID:     urlID,
		Title:     params.Title,
		Content:   params.Content,
		OwnerID:   ownerID,
		IsPrivate: params.IsPrivate,
		Password:  password.String,
		CreatedAt: now,
	}, nil
}

func (s *SQLite) urlIDExists(ctx context.Context, urlID string) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	var exists int
	err := s.db.QueryRowContext(queryCtx, "SELECT 1 FROM pastes WHERE url_id = ? LIMIT 1", urlID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	s.recordError(err)
	if err != nil {
		return false, errors.Wrap(err, "url id exists check")
	}
	return true, nil
}

func (s *SQLite) GetPaste(ctx context.Context, urlID string) (*domain.Paste, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(queryCtx, "SELECT "+pasteColumns+" FROM pastes WHERE url_id = ?", urlID)
	p, err := scanPaste(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPasteNotFound
	}
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db get paste")
	}
	return p, nil
}

func (s *SQLite) GetPasteByID(ctx context.Context, id int) (*domain.Paste, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(queryCtx, "SELECT "+pasteColumns+" FROM pastes WHERE id = ?", id)
	p, err := scanPaste(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPasteNotFound
	}
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db get paste by id")
	}
	return p, nil
}

func (s *SQLite) queryPastes(ctx context.Context, query string, args ...any) ([]domain.Paste, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(queryCtx, query, args...)
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db query pastes")
	}
	defer rows.Close()
	var pastes []domain.Paste
	for rows.Next() {
		p, err := scanPaste(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan paste")
		}
		pastes = append(pastes, *p)
	}
	return pastes, errors.Wrap(rows.Err(), "iterate pastes")
}

func (s *SQLite) GetUserPastes(ctx context.Context, ownerID int) ([]domain.Paste, error) {
	return s.queryPastes(ctx,
		"SELECT "+pasteColumns+" FROM pastes WHERE owner_id = ? ORDER BY created_at DESC, id DESC", ownerID)
}

func (s *SQLite) GetAllPastes(ctx context.Context) ([]domain.Paste, error) {
	return s.queryPastes(ctx,
		"SELECT "+pasteColumns+" FROM pastes ORDER BY created_at DESC, id DESC")
}

// GetPinnedPastes does not filter on visibility: an admin pinning a private
// paste surfaces it in the pinned listing.
func (s *SQLite) GetPinnedPastes(ctx context.Context) ([]domain.Paste, error) {
	return s.queryPastes(ctx,
		"SELECT "+pasteColumns+" FROM pastes WHERE is_pinned = 1 ORDER BY created_at DESC, id DESC")
}

func (s *SQLite) GetRecentPastes(ctx context.Context, limit int) ([]domain.Paste, error) {
	return s.queryPastes(ctx,
		"SELECT "+pasteColumns+" FROM pastes WHERE is_private = 0 AND is_pinned = 0 ORDER BY created_at DESC, id DESC LIMIT ?", limit)
}

func (s *SQLite) SetPastePinned(ctx context.Context, id int, pinned bool) error {
	if err := s.checkCircuit(); err != nil {
		return err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	_, err := s.db.ExecContext(queryCtx, "UPDATE pastes SET is_pinned = ? WHERE id = ?", pinned, id)
	s.recordError(err)
	return errors.Wrap(err, "db set pinned")
}

func (s *SQLite) DeletePaste(ctx context.Context, id int) error {
	if err := s.checkCircuit(); err != nil {
		return err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	_, err := s.db.ExecContext(queryCtx, "DELETE FROM pastes WHERE id = ?", id)
	s.recordError(err)
	return errors.Wrap(err, "db delete paste")
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
