package credentials

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	tokens  models.Tokens
	user    *models.User
	devices map[int64]models.DeviceKeyPair
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{devices: make(map[int64]models.DeviceKeyPair)}
}

func (s *MemoryStore) Tokens(ctx context.Context) (models.Tokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens, nil
}

func (s *MemoryStore) SaveTokens(ctx context.Context, t models.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = t
	return nil
}

func (s *MemoryStore) CurrentUser(ctx context.Context) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, ErrNoSession
	}
	u := *s.user
	return &u, nil
}

func (s *MemoryStore) SaveLogin(ctx context.Context, r models.AuthResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := r.User
	s.user = &u
	s.tokens = r.Tokens
	return nil
}

func (s *MemoryStore) ClearLogin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.tokens = models.Tokens{}
	return nil
}

func (s *MemoryStore) SaveDeviceKeyPair(ctx context.Context, kp models.DeviceKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.devices {
		if id == kp.DeviceID || existing.UserID == kp.UserID {
			delete(s.devices, id)
		}
	}
	s.devices[kp.DeviceID] = kp
	return nil
}

func (s *MemoryStore) DeviceKeyPairByUserID(ctx context.Context, userID int64) (*models.DeviceKeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, kp := range s.devices {
		if kp.UserID == userID {
			return &kp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) DeviceKeyPairByDeviceID(ctx context.Context, deviceID int64) (*models.DeviceKeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kp, ok := s.devices[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	return &kp, nil
}

func (s *MemoryStore) DeviceKeyPairs(ctx context.Context) ([]models.DeviceKeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DeviceKeyPair, 0, len(s.devices))
	for _, kp := range s.devices {
		out = append(out, kp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (s *MemoryStore) DeleteDeviceKeyPair(ctx context.Context, deviceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, deviceID)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = models.Tokens{}
	s.user = nil
	s.devices = make(map[int64]models.DeviceKeyPair)
	return nil
}
