package services_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"geochat-service/internal/models"
	"geochat-service/internal/repositories"
)

// memStore is an in-memory users and chat_messages pair. Every appended row is
// stamped 10ms after the previous one so ordering never depends on id ties.
type memStore struct {
	mu       sync.Mutex
	users    map[int64]models.User
	messages []models.ChatMessage
	nextID   int64
	clock    time.Time

	countErr error
	leaveErr error
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[int64]models.User),
		clock: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) addUser(id int64, name string, lat, lon *float64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = models.User{ID: id, Name: name, Email: name + "@example.com", Latitude: lat, Longitude: lon, IsActive: active}
}

func coord(v float64) *float64 { return &v }

func (s *memStore) insertLocked(m models.NewMessage) models.ChatMessage {
	s.nextID++
	s.clock = s.clock.Add(10 * time.Millisecond)
	row := models.ChatMessage{ID: s.nextID, UserID: m.UserID, Kind: m.Kind, UserName: m.UserName, Message: m.Message, CreatedAt: s.clock}
	s.messages = append(s.messages, row)
	return row
}

func (s *memStore) Create(_ context.Context, name, email, passwordHash string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return models.User{}, repositories.ErrEmailExists
		}
	}
	id := int64(len(s.users) + 1)
	u := models.User{ID: id, Name: name, Email: email, PasswordHash: passwordHash, IsActive: true}
	s.users[id] = u
	return u, nil
}

func (s *memStore) GetByID(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrUserNotFound
	}
	return u, nil
}

func (s *memStore) GetByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrUserNotFound
}

func (s *memStore) UpdateLocation(_ context.Context, id int64, latitude, longitude float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.Latitude, u.Longitude = &latitude, &longitude
	s.users[id] = u
	return nil
}

func (s *memStore) Activate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.IsActive = true
	s.users[id] = u
	return nil
}

func (s *memStore) Deactivate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.IsActive = false
	u.Latitude, u.Longitude = nil, nil
	s.users[id] = u
	return nil
}

func (s *memStore) ListEligibleExcept(_ context.Context, id int64) ([]models.NearbyUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.NearbyUser
	for _, u := range s.users {
		if u.ID == id || !u.Eligible() {
			continue
		}
		out = append(out, models.NearbyUser{ID: u.ID, Name: u.Name, Email: u.Email, Latitude: *u.Latitude, Longitude: *u.Longitude})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) CountEligibleUsers(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	n := 0
	for _, u := range s.users {
		if u.Eligible() {
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListAll(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Ban(_ context.Context, id int64, reason string) error {
	return s.updateUser(id, func(u *models.User) {
		at := s.clock
		u.IsBanned, u.IsActive = true, false
		u.BanReason, u.BannedAt = &reason, &at
	})
}

func (s *memStore) Unban(_ context.Context, id int64) error {
	return s.updateUser(id, func(u *models.User) {
		u.IsBanned = false
		u.BanReason, u.BannedAt = nil, nil
	})
}

func (s *memStore) GrantAdmin(_ context.Context, id int64) error {
	return s.updateUser(id, func(u *models.User) { u.IsAdmin = true })
}

func (s *memStore) updateUser(id int64, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	fn(&u)
	s.users[id] = u
	return nil
}

func (s *memStore) Append(_ context.Context, msg models.NewMessage) (models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Kind == models.KindLeave && s.leaveErr != nil {
		return models.ChatMessage{}, s.leaveErr
	}
	return s.insertLocked(msg), nil
}

func (s *memStore) AllOrdered(_ context.Context) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.ChatMessage{}, s.messages...)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *memStore) Since(ctx context.Context, since time.Time) ([]models.ChatMessage, error) {
	all, _ := s.AllOrdered(ctx)
	out := []models.ChatMessage{}
	for _, m := range all {
		if !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages), nil
}

func (s *memStore) PurgeAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.messages))
	s.messages = nil
	return n, nil
}

func (s *memStore) LatestJoin(_ context.Context, userID int64) (models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.ChatMessage
	for i := range s.messages {
		m := s.messages[i]
		if m.UserID == userID && m.Kind == models.KindJoin && (latest == nil || latest.Before(m)) {
			latest = &m
		}
	}
	if latest == nil {
		return models.ChatMessage{}, repositories.ErrMessageNotFound
	}
	return *latest, nil
}

func (s *memStore) ReplaceJoin(_ context.Context, userID int64, preceding []models.NewMessage, marker models.NewMessage) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var created []models.ChatMessage
	for _, m := range preceding {
		created = append(created, s.insertLocked(m))
	}
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.UserID == userID && m.Kind == models.KindJoin {
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
	created = append(created, s.insertLocked(marker))
	return created, nil
}

// seedJoin writes a join marker directly, bypassing the service.
func (s *memStore) seedJoin(userID int64, name string) models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(models.NewMessage{UserID: userID, Kind: models.KindJoin, UserName: models.SystemName, Message: name + " se ha unido al chat"})
}

func (s *memStore) kinds() []models.MessageKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MessageKind, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.Kind)
	}
	return out
}

var (
	_ repositories.UserRepository    = (*memStore)(nil)
	_ repositories.MessageRepository = (*memStore)(nil)
)

var errStore = errors.New("store unavailable")
