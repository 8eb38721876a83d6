// internal/common/aws/sns.go
package aws

import (
	"context"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// snsAPI is the subset of the SNS client used here.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Alert is one operator notification.
type Alert struct {
	Subject    string
	Message    string
	Attributes map[string]string
}

// SNSPublisher publishes alerts to a single topic.
type SNSPublisher struct {
	client   snsAPI
	topicARN string
}

func NewSNSPublisher(ctx context.Context, region, topicARN string) (*SNSPublisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSNSPublisher(sns.NewFromConfig(cfg), topicARN), nil
}

func newSNSPublisher(client snsAPI, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

// SNS subjects are limited to 100 printable ASCII characters without line breaks.
const maxSubjectLength = 100

// sanitizeSubject maps control characters to spaces and other non-ASCII
// runes to '?', then truncates. The result is safe to cut at any byte.
func sanitizeSubject(subject string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 0x20 && r <= 0x7e:
			return r
		case r < 0x20 || r == 0x7f:
			return ' '
		default:
			return '?'
		}
	}, subject)
	clean = strings.Join(strings.Fields(clean), " ")
	if len(clean) > maxSubjectLength {
		clean = strings.TrimSpace(clean[:maxSubjectLength])
	}
	return clean
}

func (p *SNSPublisher) PublishAlert(ctx context.Context, alert Alert) (string, error) {
	input := &sns.PublishInput{
		TopicArn: awssdk.String(p.topicARN),
		Message:  awssdk.String(alert.Message),
	}
	// An empty subject is rejected; omit it instead.
	if subject := sanitizeSubject(alert.Subject); subject != "" {
		input.Subject = awssdk.String(subject)
	}
	if len(alert.Attributes) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(alert.Attributes))
		for k, v := range alert.Attributes {
			input.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(v),
			}
		}
	}

	out, err := p.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("sns publish: %w", err)
	}
	return awssdk.ToString(out.MessageId), nil
}
