package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lthummus/loginguard/internal/db"
	"github.com/lthummus/loginguard/internal/user"
)

var _ db.DB = (*MockDB)(nil)

type MockDB struct {
	mock.Mock
}

// NewMockDB returns a MockDB whose expectations are asserted when t finishes.
func NewMockDB(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockDB {
	m := &MockDB{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockDB) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	ret := m.Called(ctx, username)

	var u *user.User
	if ret.Get(0) != nil {
		u = ret.Get(0).(*user.User)
	}

	return u, ret.Error(1)
}

func (m *MockDB) CreateUser(ctx context.Context, u *user.User) error {
	ret := m.Called(ctx, u)
	return ret.Error(0)
}

func (m *MockDB) UpdatePassword(ctx context.Context, u *user.User) error {
	ret := m.Called(ctx, u)
	return ret.Error(0)
}

func (m *MockDB) CountUsers(ctx context.Context) (int, error) {
	ret := m.Called(ctx)
	return ret.Int(0), ret.Error(1)
}

func (m *MockDB) Close() error {
	ret := m.Called()
	return ret.Error(0)
}
