package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/backoffice/backoffice/internal/jobs"
)

// SessionDisplacedJob mails the owner of a displaced session.
type SessionDisplacedJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSessionDisplacedJob wires dependencies for the notice handler.
func NewSessionDisplacedJob(mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionDisplacedJob {
	return &SessionDisplacedJob{Mailer: mailer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeSessionDisplaced tasks.
func (j *SessionDisplacedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("session displaced: handler not configured")
	}
	var payload SessionDisplacedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("session displaced: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := j.logger().With(slog.String("user_id", payload.UserID))
	if payload.Email == "" {
		logger.Info("no email on file, skipping displaced session notice")
		return nil
	}

	tracker := j.Metrics.Track(TaskTypeSessionDisplaced)
	defer func() { err = tracker.End(err) }()

	at := payload.At
	if at.IsZero() {
		at = time.Now()
	}
	msg := Message{
		To:      payload.Email,
		Subject: "New sign-in to your back-office account",
		Body: fmt.Sprintf("Your account signed in from another device at %s.\n"+
			"The previous session has been closed. If this was not you, change your password.\n",
			at.UTC().Format(time.RFC1123)),
	}
	if err = j.Mailer.Send(ctx, msg); err != nil {
		logger.Error("send displaced session notice", slog.Any("error", err))
		return err
	}
	logger.Info("displaced session notice sent")
	return nil
}

func (j *SessionDisplacedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
