package linkget

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	loggerContextKey contextKey = "LINKGET_CTX_KEY_LOGGER"
	tracerContextKey contextKey = "LINKGET_CTX_KEY_TRACER"
)

func RootContext(conf *Configuration) (context.Context, error) {
	return rootContext(conf, os.Stderr)
}

func rootContext(conf *Configuration, logOutput io.Writer) (context.Context, error) {
	logger := logrus.New()
	logger.SetOutput(logOutput)
	if conf.JSONLogging {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if conf.DebugLevelLogging {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// 1回の実行ごとにIDを振ってログに残す
	runID, err := uuid.NewRandom()
	if err != nil {
		return nil, xerrors.Errorf("failed to generate run id: %w", err)
	}

	ctx := ContextWithLogger(context.Background(), logger.WithField("run", runID.String()))

	if conf.TracerProvider != nil {
		tracer, err := conf.TracerProvider(conf)
		if err != nil {
			return nil, xerrors.Errorf("failed to setup context: %w", err)
		}
		ctx = ContextWithTracer(ctx, tracer)
	} else {
		ctx = ContextWithTracer(ctx, NewNullTracer())
	}

	return ctx, nil
}

func SubSystemContext(ctx context.Context, name string) context.Context {
	return ContextWithLogger(ctx, LoggerFromContext(ctx).WithField("subsys", name))
}

func ContextWithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

func ContextWithTracer(ctx context.Context, tracer Tracer) context.Context {
	return context.WithValue(ctx, tracerContextKey, tracer)
}

func LoggerFromContext(ctx context.Context) *logrus.Entry {
	logger, ok := ctx.Value(loggerContextKey).(*logrus.Entry)
	if !ok {
		panic(xerrors.New("can't fetch logger from context"))
	}

	return logger
}

// トレーサーが設定されていないcontextでは何もしないトレーサーを返す
func TracerFromContext(ctx context.Context) Tracer {
	tracer, ok := ctx.Value(tracerContextKey).(Tracer)
	if !ok {
		return NewNullTracer()
	}

	return tracer
}
