package app

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
)

type memUsers struct {
	mu     sync.Mutex
	users  map[domain.UserID]domain.User
	hashes map[domain.UserID]string
}

func newMemUsers(ids ...domain.UserID) *memUsers {
	m := &memUsers{users: make(map[domain.UserID]domain.User), hashes: make(map[domain.UserID]string)}
	for _, id := range ids {
		m.users[id] = domain.User{ID: id, Username: string(id)}
	}
	return m
}

func (m *memUsers) CreateUser(_ context.Context, u *domain.User, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return domain.Conflict("username taken")
		}
	}
	m.users[u.ID] = *u
	m.hashes[u.ID] = hash
	return nil
}

func (m *memUsers) GetUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.NotFound("user not found")
	}
	return &u, nil
}

func (m *memUsers) GetUserByName(_ context.Context, name string) (*domain.User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Username == name {
			return &u, m.hashes[id], nil
		}
	}
	return nil, "", domain.NotFound("user not found")
}

func (m *memUsers) ListUsers(context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUsers) MissingUsers(_ context.Context, ids []domain.UserID) ([]domain.UserID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UserID
	for _, id := range ids {
		if _, ok := m.users[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

type memChannels struct {
	mu       sync.Mutex
	channels map[domain.RoomID]domain.Channel
	fail     error
}

func newMemChannels() *memChannels {
	return &memChannels{channels: make(map[domain.RoomID]domain.Channel)}
}

func (m *memChannels) CreateChannel(_ context.Context, ch *domain.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.channels[ch.ID] = ch.Clone()
	return nil
}

func (m *memChannels) GetChannel(_ context.Context, id domain.RoomID) (*domain.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil, domain.NotFound("channel not found")
	}
	return &ch, nil
}

func (m *memChannels) ChannelsOf(_ context.Context, user domain.UserID) ([]domain.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	var out []domain.Channel
	for _, ch := range m.channels {
		if ch.HasParticipant(user) {
			out = append(out, ch.Clone())
		}
	}
	return out, nil
}

func (m *memChannels) UpdateLastMessage(_ context.Context, id domain.RoomID, last domain.MessageSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if !ok {
		return domain.NotFound("channel not found")
	}
	ch.LastMessage = &last
	m.channels[id] = ch
	return nil
}

var errDown = errors.New("storage down")

type nopSignal struct{}

func (nopSignal) TrySend(core.Frame) error { return nil }
func (nopSignal) Close()                   {}
