package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogExtraction records the outcome of one extraction strategy
func LogExtraction(l Logger, strategy, url, contentType string, mediaCount int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"strategy":     strategy,
		"url":          url,
		"content_type": contentType,
		"duration":     duration,
	}
	if err != nil {
		l.WithError(err).WarnWithFields("extraction strategy failed", fields)
		return
	}
	fields["media_count"] = mediaCount
	l.DebugWithFields("extraction strategy succeeded", fields)
}

// LogDownload records a media download outcome
func LogDownload(l Logger, jobID, filePath string, size int64, err error) {
	fields := map[string]interface{}{
		"job_id": jobID,
		"file":   filePath,
	}
	if err != nil {
		l.WithError(err).ErrorWithFields("download failed", fields)
		return
	}
	fields["size"] = size
	l.InfoWithFields("download completed", fields)
}

// LogRateLimit logs a politeness wait
func LogRateLimit(l Logger, component string, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"wait":      wait,
		"action":    "rate_limited",
	}).Debug("rate limit reached, waiting")
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, settings map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(settings) > 0 {
		l = l.WithFields(settings)
	}
	l.Info("component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
