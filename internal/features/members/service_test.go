package members

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/rewards-engine/internal/common"
)

type memStore struct {
	members map[int64]*Member
	err     error
}

func newMemStore() *memStore {
	return &memStore{members: map[int64]*Member{}}
}

func (s *memStore) Upsert(ctx context.Context, p Profile) (*Member, error) {
	if s.err != nil {
		return nil, s.err
	}
	now := time.Now()
	m, ok := s.members[p.UserID]
	if !ok {
		m = &Member{UserID: p.UserID, CreatedAt: now, UpdatedAt: now}
		s.members[p.UserID] = m
	} else {
		m.UpdatedAt = now.Add(time.Second)
	}
	if p.Username != "" {
		m.Username = p.Username
	}
	if p.FullName != "" {
		m.FullName = p.FullName
	}
	if p.AvatarURL != "" {
		m.AvatarURL = p.AvatarURL
	}
	return m, nil
}

func (s *memStore) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	if s.err != nil {
		return nil, s.err
	}
	m, ok := s.members[userID]
	if !ok {
		return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrUserNotFound)
	}
	return m, nil
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		member   Member
		expected string
	}{
		{"логин", Member{UserID: 1, Username: "alice", FullName: "Alice Smith"}, "alice"},
		{"только имя", Member{UserID: 2, FullName: "Bob Jones"}, "Bob Jones"},
		{"ничего", Member{UserID: 3}, "Player #3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.member.DisplayName())
		})
	}
}

func TestEnsureKeepsExistingProfileFields(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	_, err := svc.Ensure(ctx, Profile{UserID: 7, Username: "alice", AvatarURL: "https://cdn/a.png"})
	require.NoError(t, err)

	m, err := svc.Ensure(ctx, Profile{UserID: 7, FullName: "Alice Smith"})
	require.NoError(t, err)
	assert.Equal(t, "alice", m.Username)
	assert.Equal(t, "Alice Smith", m.FullName)
	assert.Equal(t, "https://cdn/a.png", m.AvatarURL)
}

func TestEnsureRejectsBadUserID(t *testing.T) {
	svc := NewService(newMemStore())
	_, err := svc.Ensure(context.Background(), Profile{UserID: 0})
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestLifetimePoints(t *testing.T) {
	store := newMemStore()
	store.members[5] = &Member{UserID: 5, TotalPoints: 1200}
	svc := NewService(store)

	pts, err := svc.LifetimePoints(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), pts)

	pts, err = svc.LifetimePoints(context.Background(), 99)
	require.NoError(t, err)
	assert.Zero(t, pts)

	store.err = errors.New("db down")
	_, err = svc.LifetimePoints(context.Background(), 5)
	assert.Error(t, err)
}
