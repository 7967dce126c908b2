package utils

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Publisher hands a sent message over to signal processing.
type Publisher interface {
	Publish(ctx context.Context, body string) (string, error)
}

type sqsPublisher struct {
	client   SQSAPI
	queueURL string
}

func NewSQSPublisher(client SQSAPI, queueURL string) Publisher {
	return &sqsPublisher{client: client, queueURL: queueURL}
}

func (p *sqsPublisher) Publish(ctx context.Context, body string) (string, error) {
	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message to queue: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

type snsPublisher struct {
	client   SNSAPI
	topicARN string
}

func NewSNSPublisher(client SNSAPI, topicARN string) Publisher {
	return &snsPublisher{client: client, topicARN: topicARN}
}

func (p *snsPublisher) Publish(ctx context.Context, body string) (string, error) {
	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish message to topic: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
