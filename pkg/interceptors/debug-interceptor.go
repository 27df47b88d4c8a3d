package interceptors

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
)

// DebugInterceptor logs every outgoing call made on a node channel.  It is
// only installed when debug mode is enabled since it logs at the call rate.
type DebugInterceptor struct {
	logger *zap.Logger
}

func NewDebugInterceptor(logger *zap.Logger) *DebugInterceptor {
	return &DebugInterceptor{
		logger: logger,
	}
}

func (di *DebugInterceptor) loggerFunc() logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		zapFields := make([]zap.Field, 0, len(fields)/2)

		iter := logging.Fields(fields).Iterator()
		for iter.Next() {
			key, value := iter.At()

			switch v := value.(type) {
			case string:
				zapFields = append(zapFields, zap.String(key, v))
			case int:
				zapFields = append(zapFields, zap.Int(key, v))
			case bool:
				zapFields = append(zapFields, zap.Bool(key, v))
			case error:
				zapFields = append(zapFields, zap.NamedError(key, v))
			case fmt.Stringer:
				zapFields = append(zapFields, zap.Stringer(key, v))
			default:
				zapFields = append(zapFields, zap.Any(key, v))
			}
		}

		logger := di.logger.WithOptions(zap.AddCallerSkip(1)).With(zapFields...)

		switch lvl {
		case logging.LevelDebug:
			logger.Debug(msg)
		case logging.LevelInfo:
			logger.Info(msg)
		case logging.LevelWarn:
			logger.Warn(msg)
		case logging.LevelError:
			logger.Error(msg)
		default:
			logger.Debug(msg, zap.Int("level", int(lvl)))
		}
	})
}

func (di *DebugInterceptor) options() []logging.Option {
	return []logging.Option{
		logging.WithLogOnEvents(logging.StartCall, logging.FinishCall),
		// everything is debug output here, including failed calls
		logging.WithLevels(func(code codes.Code) logging.Level {
			return logging.LevelDebug
		}),
	}
}

func (di *DebugInterceptor) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return logging.UnaryClientInterceptor(di.loggerFunc(), di.options()...)
}

func (di *DebugInterceptor) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return logging.StreamClientInterceptor(di.loggerFunc(), di.options()...)
}
