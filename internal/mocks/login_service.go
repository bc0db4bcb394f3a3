package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lthummus/loginguard/internal/loginlimit"
	"github.com/lthummus/loginguard/internal/user"
)

var _ loginlimit.LoginService = (*MockLoginService)(nil)

type MockLoginService struct {
	mock.Mock
}

// NewMockLoginService returns a MockLoginService whose expectations are asserted when t finishes.
func NewMockLoginService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockLoginService {
	m := &MockLoginService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockLoginService) RegisterAuthenticationFailure(event loginlimit.AuthenticationEvent) {
	m.Called(event)
}

func (m *MockLoginService) RegisterAuthenticationSuccess(event loginlimit.AuthenticationEvent) {
	m.Called(event)
}

func (m *MockLoginService) IsBlocked(u *user.User) bool {
	ret := m.Called(u)
	return ret.Bool(0)
}

func (m *MockLoginService) ReserveAttempt(event loginlimit.AuthenticationEvent) bool {
	ret := m.Called(event)
	return ret.Bool(0)
}

func (m *MockLoginService) AttemptsRemaining(username string) int {
	ret := m.Called(username)
	return ret.Int(0)
}

func (m *MockLoginService) LockoutWindow() time.Duration {
	ret := m.Called()
	return ret.Get(0).(time.Duration)
}
