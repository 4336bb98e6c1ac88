package telemetry

import "go.uber.org/zap"

// AuditLogger records operator-relevant actions. Consumers treat it as
// fire-and-forget; failures must never propagate into the calling path.
type AuditLogger interface {
	Log(action string, meta map[string]interface{})
}

type zapAuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger builds an audit logger that emits structured audit records on
// the shared zap logger.
func NewAuditLogger(logger *zap.Logger) AuditLogger {
	return &zapAuditLogger{logger: logger.Named("audit")}
}

func (a *zapAuditLogger) Log(action string, meta map[string]interface{}) {
	a.logger.Info(action, zap.Any("meta", meta))
}
