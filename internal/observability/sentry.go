package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// CaptureUserError reports a per-athlete failure. Without InitSentry it does nothing.
func CaptureUserError(err error, userKey, stage string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("user", userKey)
		scope.SetTag("stage", stage)
		sentry.CaptureException(err)
	})
}
