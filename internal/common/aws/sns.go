// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// PublishAPI is the subset of the SNS client used here.
type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	client   PublishAPI
	topicARN string
}

func NewSNSClient(ctx context.Context, region, topicARN string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewSNSClientWithAPI(sns.NewFromConfig(cfg), topicARN), nil
}

func NewSNSClientWithAPI(api PublishAPI, topicARN string) *SNSClient {
	return &SNSClient{client: api, topicARN: topicARN}
}

// PartialEnrollmentAlert tells operators that a candidate exists in the ERP
// without being enrolled in the requested occurrence.
type PartialEnrollmentAlert struct {
	CandidateID   string `json:"candidateId"`
	OccurrenceID  string `json:"occurrenceId"`
	BindingStatus *int   `json:"bindingStatus"`
	BindingError  string `json:"bindingError,omitempty"`
	Email         string `json:"email"` // masked
	Transport     string `json:"transport"`
}

// PublishPartialEnrollment sends the alert and returns the SNS message id.
func (s *SNSClient) PublishPartialEnrollment(ctx context.Context, alert PartialEnrollmentAlert) (string, error) {
	body, err := json.Marshal(alert)
	if err != nil {
		return "", fmt.Errorf("failed to marshal alert: %w", err)
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String("Inscription partielle"),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("registration.partial_enrollment"),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish partial enrollment alert: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
