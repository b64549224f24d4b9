package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/domain/collab"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPutEvents is a mock implementation of PutEventsAPI
type MockPutEvents struct {
	mock.Mock
}

func (m *MockPutEvents) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eventbridge.PutEventsOutput), args.Error(1)
}

func sampleChange() collab.ChangeEvent {
	return collab.ChangeEvent{
		ID:         "ch-1",
		Type:       collab.ChangeCreate,
		EntityType: collab.EntityLink,
		EntityID:   "link_c1_e1_999",
		UserID:     "u1",
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublisher_PublishChange(t *testing.T) {
	client := new(MockPutEvents)
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		if len(in.Entries) != 1 {
			return false
		}
		e := in.Entries[0]
		var detail collab.ChangeEvent
		if json.Unmarshal([]byte(aws.ToString(e.Detail)), &detail) != nil {
			return false
		}
		return aws.ToString(e.DetailType) == "collab.change.create" &&
			aws.ToString(e.EventBusName) == "audit" &&
			aws.ToString(e.Source) == Source &&
			detail.EntityID == "link_c1_e1_999"
	})).Return(&eventbridge.PutEventsOutput{}, nil).Once()

	p := NewPublisher(client, "audit", nil)

	require.NoError(t, p.PublishChange(context.Background(), sampleChange()))
	client.AssertExpectations(t)
}

func TestPublisher_RetriesFailedEntries(t *testing.T) {
	client := new(MockPutEvents)
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("ThrottlingException")}},
	}, nil).Once()
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{}, nil).Once()

	p := NewPublisher(client, "audit", nil)

	require.NoError(t, p.PublishChange(context.Background(), sampleChange()))
	client.AssertNumberOfCalls(t, "PutEvents", 2)
}

func TestPublisher_GivesUp(t *testing.T) {
	client := new(MockPutEvents)
	client.On("PutEvents", mock.Anything, mock.Anything).Return(nil, errors.New("network down"))

	p := NewPublisher(client, "audit", nil)
	err := p.PublishChange(context.Background(), sampleChange())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
	client.AssertNumberOfCalls(t, "PutEvents", 3)
}
