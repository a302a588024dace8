package grpc

import (
	"context"
	"path"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/epandurski/swpt-debtors/internal/metrics"
)

// LoggingInterceptor returns a gRPC unary server interceptor that logs every
// call with its status code and duration and records the duration metric.
// A panicking handler is turned into status.Internal.
func LoggingInterceptor(log *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		start := time.Now()
		method := path.Base(info.FullMethod)

		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{"method": method, "panic": r}).Error("handler panicked")
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}

			code := status.Code(err)
			elapsed := time.Since(start)
			metrics.RPCDuration.WithLabelValues(method, code.String()).Observe(elapsed.Seconds())

			entry := log.WithFields(logrus.Fields{
				"method":   method,
				"code":     code.String(),
				"duration": elapsed,
			})
			switch code {
			case codes.OK:
				entry.Debug("rpc completed")
			case codes.Internal, codes.Unknown, codes.Unavailable:
				entry.WithError(err).Error("rpc failed")
			default:
				entry.WithError(err).Info("rpc rejected")
			}
		}()

		return handler(ctx, req)
	}
}
