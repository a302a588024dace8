package seeder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

// MockStore runs units of work against a MockTx
type MockStore struct {
	tx *MockTx
}

func (m *MockStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return fn(ctx, m.tx)
}

// MockTx exposes only the node configuration repository
type MockTx struct {
	domain.Tx
	nodeConfigs *MockNodeConfigRepository
}

func (m *MockTx) NodeConfigs() domain.NodeConfigRepository {
	return m.nodeConfigs
}

// MockNodeConfigRepository is a mock implementation of NodeConfigRepository
type MockNodeConfigRepository struct {
	mock.Mock
}

func (m *MockNodeConfigRepository) Get(ctx context.Context, lock bool) (*domain.NodeConfig, error) {
	args := m.Called(ctx, lock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NodeConfig), args.Error(1)
}

func (m *MockNodeConfigRepository) Save(ctx context.Context, config *domain.NodeConfig) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

func newSeeder() (*NodeSeeder, *MockNodeConfigRepository) {
	repo := new(MockNodeConfigRepository)
	return NewNodeSeeder(&MockStore{tx: &MockTx{nodeConfigs: repo}}), repo
}

func TestNodeSeeder_Seed_ConfigMissing(t *testing.T) {
	ctx := context.Background()
	seeder, mockRepo := newSeeder()

	mockRepo.On("Get", ctx, true).Return(nil, nil)
	mockRepo.On("Save", ctx, mock.MatchedBy(func(config *domain.NodeConfig) bool {
		return config.MinDebtorID == -100 && config.MaxDebtorID == 100
	})).Return(nil)

	created, err := seeder.Seed(ctx, -100, 100)

	assert.NoError(t, err)
	assert.True(t, created)
	mockRepo.AssertExpectations(t)
}

func TestNodeSeeder_Seed_ConfigExists(t *testing.T) {
	ctx := context.Background()
	seeder, mockRepo := newSeeder()

	mockRepo.On("Get", ctx, true).Return(&domain.NodeConfig{MinDebtorID: 1, MaxDebtorID: 2}, nil)

	created, err := seeder.Seed(ctx, -100, 100)

	assert.NoError(t, err)
	assert.False(t, created)
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestNodeSeeder_Seed_Errors(t *testing.T) {
	tests := []struct {
		name    string
		min     int64
		max     int64
		getErr  error
		saveErr error
		errMsg  string
	}{
		{name: "invalid range", min: 10, max: -10, errMsg: "min debtor ID must not exceed max debtor ID"},
		{name: "lookup failure", min: 0, max: 10, getErr: errors.New("connection refused"), errMsg: "failed to seed node configuration"},
		{name: "save failure", min: 0, max: 10, saveErr: errors.New("connection refused"), errMsg: "failed to seed node configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			seeder, mockRepo := newSeeder()
			mockRepo.On("Get", ctx, true).Return(nil, tt.getErr)
			mockRepo.On("Save", ctx, mock.Anything).Return(tt.saveErr)

			created, err := seeder.Seed(ctx, tt.min, tt.max)

			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.False(t, created)
		})
	}
}
