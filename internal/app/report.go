package app

import (
	"errors"

	honeybadger "github.com/honeybadger-io/honeybadger-go"
	"github.com/sirupsen/logrus"

	"github.com/bassista/go_refresh/internal/logger"
	"github.com/bassista/go_refresh/internal/task"
)

// Reporter is the task error and reader error sink of the application. It
// always logs and, when an API key is configured, notifies Honeybadger.
type Reporter struct {
	client *honeybadger.Client
	log    *logrus.Entry
}

// NewReporter creates a reporter. An empty apiKey disables Honeybadger.
func NewReporter(apiKey, env string) *Reporter {
	r := &Reporter{log: logger.WithComponent("report")}
	if apiKey == "" {
		r.log.Info("Honeybadger is not active. To enable error reporting, set the HONEYBADGER_API_KEY environment variable.")
		return r
	}
	r.client = honeybadger.New(honeybadger.Configuration{APIKey: apiKey, Env: env})
	r.log.Info("Honeybadger error reporting is enabled for update tasks.")
	return r
}

// Enabled reports whether notices are sent to Honeybadger.
func (r *Reporter) Enabled() bool {
	return r.client != nil
}

func (r *Reporter) TaskError(res task.Result) {
	r.log.WithFields(logrus.Fields{
		"task":   res.Task,
		"status": res.Status.String(),
	}).Error(res.Describe())

	if r.client == nil {
		return
	}
	cause := res.Err
	if cause == nil {
		cause = errors.New(res.Describe())
	}
	r.Notify(cause,
		honeybadger.Context{"task": res.Task, "message": res.Message, "started": res.Started},
		honeybadger.Tags{"update-task"},
	)
}

// Notify sends a notice with honeybadger extras (request, context, tags).
func (r *Reporter) Notify(err any, extra ...any) {
	if r.client == nil {
		return
	}
	if _, nerr := r.client.Notify(err, extra...); nerr != nil {
		r.log.Warnf("honeybadger notify failed: %v", nerr)
	}
}

func (r *Reporter) ReaderError(err error) {
	r.log.Warnf("skipped record: %v", err)
}

// Flush waits for queued notices to be sent.
func (r *Reporter) Flush() {
	if r.client != nil {
		r.client.Flush()
	}
}
