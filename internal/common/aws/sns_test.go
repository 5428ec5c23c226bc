package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublishAPI struct {
	mock.Mock
}

func (m *MockPublishAPI) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*sns.PublishOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestPublishPartialEnrollment(t *testing.T) {
	api := new(MockPublishAPI)
	status := 500

	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		var alert PartialEnrollmentAlert
		if err := json.Unmarshal([]byte(aws.ToString(in.Message)), &alert); err != nil {
			return false
		}
		return aws.ToString(in.TopicArn) == "arn:aws:sns:eu-west-3:123:alerts" &&
			alert.CandidateID == "42" &&
			alert.Email == "j***@example.fr" &&
			*alert.BindingStatus == 500
	})).Return(&sns.PublishOutput{MessageId: aws.String("msg-1")}, nil)

	client := NewSNSClientWithAPI(api, "arn:aws:sns:eu-west-3:123:alerts")
	id, err := client.PublishPartialEnrollment(context.Background(), PartialEnrollmentAlert{
		CandidateID:   "42",
		OccurrenceID:  "occ-7",
		BindingStatus: &status,
		Email:         "j***@example.fr",
		Transport:     "http",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	api.AssertExpectations(t)
}

func TestPublishPartialEnrollment_Error(t *testing.T) {
	api := new(MockPublishAPI)
	api.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := NewSNSClientWithAPI(api, "arn").PublishPartialEnrollment(context.Background(), PartialEnrollmentAlert{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
