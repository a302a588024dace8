package grpc

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoggingInterceptor(t *testing.T) {
	tests := []struct {
		name          string
		handler       grpc.UnaryHandler
		expectedCode  codes.Code
		expectedLevel logrus.Level
		expectedMsg   string
	}{
		{
			name: "Success",
			handler: func(ctx context.Context, req interface{}) (interface{}, error) {
				return "success", nil
			},
			expectedCode:  codes.OK,
			expectedLevel: logrus.DebugLevel,
			expectedMsg:   "rpc completed",
		},
		{
			name: "Rejected",
			handler: func(ctx context.Context, req interface{}) (interface{}, error) {
				return nil, status.Error(codes.NotFound, "the debtor does not exist")
			},
			expectedCode:  codes.NotFound,
			expectedLevel: logrus.InfoLevel,
			expectedMsg:   "rpc rejected",
		},
		{
			name: "Failed",
			handler: func(ctx context.Context, req interface{}) (interface{}, error) {
				return nil, status.Error(codes.Internal, "connection refused")
			},
			expectedCode:  codes.Internal,
			expectedLevel: logrus.ErrorLevel,
			expectedMsg:   "rpc failed",
		},
		{
			name: "Panic",
			handler: func(ctx context.Context, req interface{}) (interface{}, error) {
				panic("nil map")
			},
			expectedCode:  codes.Internal,
			expectedLevel: logrus.ErrorLevel,
			expectedMsg:   "rpc failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, hook := test.NewNullLogger()
			log.SetLevel(logrus.DebugLevel)
			interceptor := LoggingInterceptor(log)

			info := &grpc.UnaryServerInfo{
				FullMethod: "/" + ServiceName + "/GetDebtor",
			}

			resp, err := interceptor(context.Background(), "test-request", info, tt.handler)

			assert.Equal(t, tt.expectedCode, status.Code(err))
			if tt.expectedCode == codes.OK {
				assert.Equal(t, "success", resp)
			} else {
				assert.Nil(t, resp)
			}

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, tt.expectedLevel, entry.Level)
			assert.Equal(t, tt.expectedMsg, entry.Message)
			assert.Equal(t, "GetDebtor", entry.Data["method"])
			assert.Equal(t, tt.expectedCode.String(), entry.Data["code"])
		})
	}
}
