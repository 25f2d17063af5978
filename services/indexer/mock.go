package indexer

import (
	"context"

	"github.com/runestake/settlement/model"
	"github.com/stretchr/testify/mock"
)

// Mock implements the indexer.ClientI interface for testing purposes
type Mock struct {
	mock.Mock
}

func (m *Mock) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	args := m.Called(ctx, checkLiveness)

	return args.Int(0), args.String(1), args.Error(2)
}

func (m *Mock) RuneOutputs(ctx context.Context, address string) ([]model.Utxo, error) {
	args := m.Called(ctx, address)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]model.Utxo), nil
}

func (m *Mock) PlainOutputs(ctx context.Context, address string) ([]model.Utxo, error) {
	args := m.Called(ctx, address)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]model.Utxo), nil
}

func (m *Mock) GetTransaction(ctx context.Context, txID string) (*Transaction, error) {
	args := m.Called(ctx, txID)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Transaction), nil
}

func (m *Mock) TipHeight(ctx context.Context) (uint32, error) {
	args := m.Called(ctx)

	return args.Get(0).(uint32), args.Error(1)
}

func (m *Mock) RecommendedFeeRate(ctx context.Context) (int64, error) {
	args := m.Called(ctx)

	return args.Get(0).(int64), args.Error(1)
}

func (m *Mock) Broadcast(ctx context.Context, txHex string) (string, error) {
	args := m.Called(ctx, txHex)

	return args.String(0), args.Error(1)
}
