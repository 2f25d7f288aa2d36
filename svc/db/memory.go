package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"pinbin/pkg/domain"
	"pinbin/svc/auth"
	"pinbin/svc/util"
)

// Memory is an in-memory Store with the same semantics as SQLite, for tests
// and ephemeral deployments. Id counters are incremented under the mutex so
// concurrent creates can never mint the same id.
type Memory struct {
	mu          sync.RWMutex
	hasher      *auth.Hasher
	users       map[int]domain.User
	pastes      map[int]domain.Paste
	nextUserID  int
	nextPasteID int
	usedURLIDs  map[string]bool
}

func NewMemory(hasher *auth.Hasher) *Memory {
	return &Memory{
		hasher:      hasher,
		users:       make(map[int]domain.User),
		pastes:      make(map[int]domain.Paste),
		nextUserID:  1,
		nextPasteID: 1,
		usedURLIDs:  make(map[string]bool),
	}
}

func (m *Memory) GetUser(ctx context.Context, id int) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *Memory) CreateUser(ctx context.Context, username, plainPassword string) (*domain.User, error) {
	hash, err := m.hasher.Hash(plainPassword)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return nil, domain.ErrUsernameTaken
		}
	}
	id := m.nextUserID
	m.nextUserID++
	u := domain.User{ID: id, Username: username, Password: hash}
	m.users[id] = u
	return &u, nil
}

func (m *Memory) UpdateUser(ctx context.Context, id int, changes domain.UserUpdate) error {
	var hash string
	if changes.Password != nil {
		var err error
		hash, err = m.hasher.Hash(*changes.Password)
		if err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	if changes.Password != nil {
		u.Password = hash
	}
	if changes.IsAdmin != nil {
		u.IsAdmin = *changes.IsAdmin
	}
	if changes.AvatarURL != nil {
		u.AvatarURL = changes.AvatarURL
	}
	m.users[id] = u
	return nil
}

func (m *Memory) DeleteUser(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *Memory) GetAllUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *Memory) CreatePaste(ctx context.Context, params domain.CreatePasteParams, ownerID int) (*domain.Paste, error) {
	urlID, err := util.GenURLID(func(id string) (bool, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.usedURLIDs[id], nil
	})
	if err != nil {
		return nil, err
	}
	password := ""
	if params.IsPrivate {
		password = params.Password
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextPasteID
	m.nextPasteID++
	p := domain.Paste{
		ID:        id,
		URLID:     urlID,
		Title:     params.Title,
		Content:   params.Content,
		OwnerID:   ownerID,
		IsPrivate: params.IsPrivate,
		Password:  password,
		CreatedAt: time.Now().UTC(),
	}
	m.pastes[id] = p
	m.usedURLIDs[urlID] = true
	return &p, nil
}

func (m *Memory) GetPaste(ctx context.Context, urlID string) (*domain.Paste, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pastes {
		if p.URLID == urlID {
			return &p, nil
		}
	}
	return nil, domain.ErrPasteNotFound
}

func (m *Memory) GetPasteByID(ctx context.Context, id int) (*domain.Paste, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pastes[id]
	if !ok {
		return nil, domain.ErrPasteNotFound
	}
	return &p, nil
}

func (m *Memory) collect(filter func(domain.Paste) bool) []domain.Paste {
	var pastes []domain.Paste
	for _, p := range m.pastes {
		if filter(p) {
			pastes = append(pastes, p)
		}
	}
	sort.Slice(pastes, func(i, j int) bool {
		if pastes[i].CreatedAt.Equal(pastes[j].CreatedAt) {
			return pastes[i].ID > pastes[j].ID
		}
		return pastes[i].CreatedAt.After(pastes[j].CreatedAt)
	})
	return pastes
}

func (m *Memory) GetUserPastes(ctx context.Context, ownerID int) ([]domain.Paste, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(p domain.Paste) bool { return p.OwnerID == ownerID }), nil
}

func (m *Memory) GetAllPastes(ctx context.Context) ([]domain.Paste, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(domain.Paste) bool { return true }), nil
}

func (m *Memory) GetPinnedPastes(ctx context.Context) ([]domain.Paste, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(p domain.Paste) bool { return p.IsPinned }), nil
}

func (m *Memory) GetRecentPastes(ctx context.Context, limit int) ([]domain.Paste, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pastes := m.collect(func(p domain.Paste) bool { return !p.IsPrivate && !p.IsPinned })
	if len(pastes) > limit {
		pastes = pastes[:limit]
	}
	return pastes, nil
}

func (m *Memory) SetPastePinned(ctx context.Context, id int, pinned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pastes[id]
	if !ok {
		return nil
	}
	p.IsPinned = pinned
	m.pastes[id] = p
	return nil
}

func (m *Memory) DeletePaste(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// url_id stays reserved so a deleted paste's token is never reissued.
	delete(m.pastes, id)
	return nil
}

func (m *Memory) Close() error { return nil }
