package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the populate subscription.
const (
	JobPopulate    = "populate"
	JobHealthCheck = "health_check"
)

// ErrUnknownJob is returned for a message whose job type is not handled.
var ErrUnknownJob = errors.New("unknown job type")

// PopulateMessage is the body of a populate trigger.
type PopulateMessage struct {
	JobType string `json:"job_type"`
}

// Runner runs one populate pass.
type Runner interface {
	Run(ctx context.Context) (*PopulateResult, error)
}

// PubSubHandler runs the populator whenever a trigger message arrives.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	jobs             *JobHandler
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Populator        Runner
	Source           Source
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Population is single-writer; one message at a time.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 30 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		jobs:             NewJobHandler(cfg.Populator, cfg.Source, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()

		err := h.jobs.Handle(ctx, msg.Data)
		switch {
		case err == nil:
			msg.Ack()
		case errors.Is(err, ErrUnknownJob):
			logger.Warn().Err(err).Msg("dropping message")
			msg.Ack() // redelivery cannot help
		default:
			logger.Error().Err(err).Msg("job failed")
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// JobHandler decodes and runs trigger messages, independent of transport.
type JobHandler struct {
	populator Runner
	source    Source
	logger    zerolog.Logger
}

// NewJobHandler creates a job handler.
func NewJobHandler(populator Runner, source Source, logger zerolog.Logger) *JobHandler {
	return &JobHandler{populator: populator, source: source, logger: logger}
}

// Handle runs the job described by data. An unparseable message or unknown
// job type yields ErrUnknownJob.
func (j *JobHandler) Handle(ctx context.Context, data []byte) error {
	startTime := time.Now()

	var msg PopulateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownJob, err)
	}

	var err error
	switch msg.JobType {
	case JobPopulate:
		err = j.populate(ctx)
	case JobHealthCheck:
		err = j.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
	if err != nil {
		return err
	}

	j.logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return nil
}

func (j *JobHandler) populate(ctx context.Context) error {
	if _, err := j.populator.Run(ctx); err != nil {
		return fmt.Errorf("populate: %w", err)
	}
	return nil
}

// healthCheck verifies the upstream answers its cheapest listing.
func (j *JobHandler) healthCheck(ctx context.Context) error {
	if j.source == nil {
		return errors.New("health check: no source configured")
	}
	groups, err := j.source.FetchGroups(ctx)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	j.logger.Debug().Int("groups", len(groups)).Msg("health check passed")
	return nil
}
