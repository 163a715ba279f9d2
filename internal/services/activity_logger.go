package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/trackwell/issuetracker/internal/metrics"
	"github.com/trackwell/issuetracker/internal/models"
	"github.com/trackwell/issuetracker/pkg/logger"
)

// ActivitySink persists one activity entry.
type ActivitySink interface {
	Append(ctx context.Context, entry *models.ActivityLog) error
}

// StoreSink appends directly through the data store.
type StoreSink struct {
	store Store
}

func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Append(ctx context.Context, entry *models.ActivityLog) error {
	return s.store.AppendActivity(ctx, entry)
}

var errUnknownAction = errors.New("unknown activity action")

// ActivityLogger records the audit trail of issue mutations. Recording is
// secondary to the mutation that triggered it: Record never returns an error
// and never panics, whatever the sink does.
type ActivityLogger struct {
	sink ActivitySink
	log  zerolog.Logger
}

func NewActivityLogger(sink ActivitySink) *ActivityLogger {
	return &ActivityLogger{sink: sink, log: logger.Component("activity")}
}

// Record appends one entry for issueID performed by actorID.
func (l *ActivityLogger) Record(ctx context.Context, issueID uint, actorID string, action models.ActivityAction, details string) {
	entry := &models.ActivityLog{
		IssueID: issueID,
		UserID:  actorID,
		Action:  action,
		Details: details,
	}

	// The primary write is already committed; a client disconnect must not
	// cancel the append.
	ctx = context.WithoutCancel(ctx)

	if err := l.try(ctx, entry); err != nil {
		l.report(entry, err)
		return
	}
	metrics.ActivityWritesTotal.WithLabelValues("success").Inc()
}

func (l *ActivityLogger) try(ctx context.Context, entry *models.ActivityLog) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("activity sink panicked: %v", r)
		}
	}()
	if !entry.Action.Valid() {
		return fmt.Errorf("%w: %q", errUnknownAction, entry.Action)
	}
	return l.sink.Append(ctx, entry)
}

func (l *ActivityLogger) report(entry *models.ActivityLog, err error) {
	metrics.ActivityWritesTotal.WithLabelValues("failure").Inc()

	l.log.Error().
		Err(err).
		Uint("issue_id", entry.IssueID).
		Str("user_id", entry.UserID).
		Str("action", string(entry.Action)).
		Msg("failed to record activity")

	actor := entry.UserID
	LogError("Activity", "Record", "Failed to record issue activity: "+err.Error(), &actor, "", "", map[string]interface{}{
		"issue_id": entry.IssueID,
		"action":   entry.Action,
		"details":  entry.Details,
	})
}
