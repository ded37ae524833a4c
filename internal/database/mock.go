package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) GetAccountByExternalId(externalId string) (Account, error) {
	args := m.Called(externalId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) CreateRoom(params CreateRoomParams) error {
	args := m.Called(params)
	return args.Error(0)
}
func (m *MockChatRepository) ListRooms() ([]Room, error) {
	args := m.Called()
	if rooms, ok := args.Get(0).([]Room); ok {
		return rooms, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) SaveMessage(msg Message) error {
	args := m.Called(msg)
	return args.Error(0)
}
func (m *MockChatRepository) GetRecentMessages(roomName string, limit int) ([]Message, error) {
	args := m.Called(roomName, limit)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) UpsertUserSession(session UserSession) error {
	args := m.Called(session)
	return args.Error(0)
}
func (m *MockChatRepository) DeleteOldData(messageCutoff, sessionCutoff time.Time) (int64, int64, error) {
	args := m.Called(messageCutoff, sessionCutoff)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}
