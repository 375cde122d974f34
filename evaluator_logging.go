package assign

import (
	"time"

	"go.uber.org/zap"
)

// EvaluatorLogEvent describes one selector evaluation.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Consumer string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// ZapEvaluatorLogger writes evaluations at debug level and failures at warn.
func ZapEvaluatorLogger(logger *zap.Logger) EvaluatorLogger {
	if logger == nil {
		return noopEvaluatorLogger{}
	}
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		fields := []zap.Field{
			zap.String("engine", event.Engine),
			zap.String("expr", event.Expr),
			zap.String("consumer", event.Consumer),
			zap.Duration("duration", event.Duration),
		}
		if event.Err != nil {
			logger.Warn("selector evaluation failed", append(fields, zap.Error(event.Err))...)
			return
		}
		logger.Debug("selector evaluated", fields...)
	})
}

// WithEvaluatorLogger attaches an evaluator logger. Without one, evaluations
// are reported through the service logger.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *serviceConfig) {
		if logger == nil {
			cfg.evaluatorLogger = noopEvaluatorLogger{}
			return
		}
		cfg.evaluatorLogger = logger
	}
}
