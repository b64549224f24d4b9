// Package eventbridge forwards applied changes to an AWS EventBridge bus
// for auditing.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/application/ports"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Source is the EventBridge source of every published change
const Source = "claim-mapper.collab"

// DetailTypePrefix prefixes the change type in the detail type
const DetailTypePrefix = "collab.change."

// PutEventsAPI is the subset of the EventBridge client the publisher uses
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher implements ports.ChangePublisher
type Publisher struct {
	client       PutEventsAPI
	eventBusName string
	maxTries     uint
	logger       *zap.Logger
}

var _ ports.ChangePublisher = (*Publisher)(nil)

// NewPublisher creates a publisher for the named bus
func NewPublisher(client PutEventsAPI, eventBusName string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		maxTries:     3,
		logger:       logger,
	}
}

// PublishChange sends one change. Throttled or failed entries are retried
// with exponential backoff.
func (p *Publisher) PublishChange(ctx context.Context, change collab.ChangeEvent) error {
	detail, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change %s: %w", change.ID, err)
	}

	ts := change.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	input := &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(DetailTypePrefix + string(change.Type)),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(ts),
			Resources:    []string{fmt.Sprintf("collab:%s:%s", change.EntityType, change.EntityID)},
		}},
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, p.put(ctx, input)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.maxTries))
	if err != nil {
		return fmt.Errorf("failed to publish change %s to EventBridge: %w", change.ID, err)
	}

	p.logger.Debug("Change published to EventBridge",
		zap.String("change_id", change.ID),
		zap.String("type", string(change.Type)),
		zap.String("event_bus", p.eventBusName))
	return nil
}

func (p *Publisher) put(ctx context.Context, input *eventbridge.PutEventsInput) error {
	result, err := p.client.PutEvents(ctx, input)
	if err != nil {
		return err
	}
	if result.FailedEntryCount > 0 {
		for _, entry := range result.Entries {
			if entry.ErrorCode != nil {
				p.logger.Warn("EventBridge rejected entry",
					zap.String("error_code", aws.ToString(entry.ErrorCode)),
					zap.String("error_message", aws.ToString(entry.ErrorMessage)))
			}
		}
		return fmt.Errorf("%d entries failed to publish", result.FailedEntryCount)
	}
	return nil
}
