package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Kerhoff/GiftboT/internal/models"
)

type personMap map[int64]*models.Person

func (m personMap) GetByID(ctx context.Context, id int64) (*models.Person, error) {
	if id < 0 {
		return nil, errors.New("database is down")
	}
	return m[id], nil
}

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("hunter2hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2hunter2", hash)
	assert.True(t, h.Matches(hash, "hunter2hunter2"))
	assert.False(t, h.Matches(hash, "hunter3hunter3"))
	assert.False(t, h.Matches("not a hash", "hunter2hunter2"))

	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(bcrypt.MaxCost+1).cost)
}

func TestPasswordVerifier(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("correct horse")
	require.NoError(t, err)

	persons := personMap{
		1: {ID: 1, IsActive: true, PasswordHash: &hash},
		2: {ID: 2, IsActive: false, PasswordHash: &hash},
		3: {ID: 3, IsActive: true},
	}
	v := NewPasswordVerifier(persons, h)
	ctx := context.Background()

	tests := []struct {
		name       string
		personID   int64
		credential string
		want       bool
	}{
		{"right password", 1, "correct horse", true},
		{"wrong password", 1, "battery staple", false},
		{"archived person", 2, "correct horse", false},
		{"no credential", 3, "", false},
		{"unknown person", 9, "correct horse", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := v.Verify(ctx, tt.personID, tt.credential)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	_, err = v.Verify(ctx, -1, "correct horse")
	assert.Error(t, err)
}
