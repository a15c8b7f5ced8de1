package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

func call(err error) error {
	_, got := UnaryErrorInterceptor()(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/test"},
		func(context.Context, any) (any, error) { return nil, err })
	return got
}

func TestUnaryErrorInterceptor(t *testing.T) {
	assert.NoError(t, call(nil))

	cases := map[codes.Code]error{
		codes.NotFound:           errorbank.NotFound("order not found"),
		codes.InvalidArgument:    errorbank.Validation("invalid", nil),
		codes.AlreadyExists:      errorbank.Conflict("already started"),
		codes.FailedPrecondition: errorbank.Unprocessable("not in progress"),
		codes.Unknown:            status.Error(codes.Unknown, "passthrough"),
	}
	for want, in := range cases {
		st, ok := status.FromError(call(in))
		assert.True(t, ok)
		assert.Equal(t, want, st.Code(), in.Error())
	}

	st, _ := status.FromError(call(errors.New("plain")))
	assert.Equal(t, codes.Internal, st.Code())
}

func TestUnaryRecoveryInterceptor(t *testing.T) {
	intercept := UnaryRecoveryInterceptor(zap.NewNop())
	info := &grpc.UnaryServerInfo{FullMethod: "/shopfloor.Orders/Get"}

	resp, err := intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("nil order")
	})
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))

	resp, err = intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}
