package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/d60-Lab/relay-bot/internal/model"
	"github.com/d60-Lab/relay-bot/internal/platform"
	"github.com/d60-Lab/relay-bot/internal/platform/platformtest"
	"github.com/d60-Lab/relay-bot/internal/repository"
)

const (
	operatorID = int64(1001)
	gateGroup  = "@club"
)

// memUsers 测试用目录
type memUsers struct {
	mu   sync.Mutex
	ids  map[int64]*model.User
	fail error
}

func newMemUsers() *memUsers { return &memUsers{ids: make(map[int64]*model.User)} }

func (m *memUsers) Register(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if _, ok := m.ids[u.ID]; !ok {
		m.ids[u.ID] = u
	}
	return nil
}

func (m *memUsers) AllUserIDs(context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	out := make([]int64, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	return out, nil
}

func (m *memUsers) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.ids)), nil
}

func (m *memUsers) has(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ids[id]
	return ok
}

var _ repository.UserRepository = (*memUsers)(nil)

type relayFixture struct {
	client       *platformtest.Fake
	users        *memUsers
	correlations repository.CorrelationRepository
	relay        RelayService
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	f := &relayFixture{
		client:       platformtest.New(),
		users:        newMemUsers(),
		correlations: repository.NewMemoryCorrelationRepository(1000, 0),
	}
	gate := NewMembershipGate(f.client, gateGroup, time.Second)
	f.relay = NewRelayService(f.client, gate, f.users, f.correlations, RelayOptions{
		OperatorID:  operatorID,
		CallTimeout: 200 * time.Millisecond,
	})
	return f
}

func (f *relayFixture) member(id int64) {
	f.client.SetStatus(id, platform.StatusMember)
}

var errNetwork = errors.New("connection reset by peer")
