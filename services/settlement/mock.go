package settlement

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type Mock struct {
	mock.Mock
}

func (m *Mock) Prepare(ctx context.Context, req *PrepareRequest) (*PrepareResult, error) {
	args := m.Called(ctx, req)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*PrepareResult), nil
}

func (m *Mock) Confirm(ctx context.Context, req *ConfirmRequest) (*ConfirmResult, error) {
	args := m.Called(ctx, req)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*ConfirmResult), nil
}

func (m *Mock) ConfirmPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)

	return args.Int(0), args.Error(1)
}
