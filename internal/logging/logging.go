// Package logging configures logrus and Sentry for the server and exposes
// the structured event and error helpers used by handlers and services.
package logging

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Production bool
	SentryDSN  string
	Release    string
}

// Setup configures the global logger. When a Sentry DSN is given it also
// initialises the Sentry client; the returned func flushes pending events.
func Setup(opts Options) (func(), error) {
	if opts.Production {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetLevel(logrus.DebugLevel)
	}

	if opts.SentryDSN == "" {
		return func() {}, nil
	}

	env := "development"
	if opts.Production {
		env = "production"
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.SentryDSN,
		Environment: env,
		Release:     opts.Release,
	}); err != nil {
		return func() {}, fmt.Errorf("failed to init sentry: %w", err)
	}

	return func() { sentry.Flush(2 * time.Second) }, nil
}

// LogError logs err with context and reports it to Sentry.
func LogError(errorType string, err error, context map[string]interface{}) {
	log := logrus.WithFields(logrus.Fields{
		"error_type": errorType,
		"error":      err.Error(),
	})
	for k, v := range context {
		log = log.WithField(k, v)
	}
	log.Error("Error occurred")

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_type", errorType)
		for k, v := range context {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// LogEvent logs a domain event and records it as a Sentry breadcrumb.
func LogEvent(eventType string, data map[string]interface{}) {
	log := logrus.WithField("event_type", eventType)
	for k, v := range data {
		log = log.WithField(k, v)
	}
	log.Info("Event occurred")

	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "info",
		Category:  eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
}
