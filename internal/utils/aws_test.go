package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

type fakeSNS struct {
	input *sns.PublishInput
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	return &sns.PublishOutput{MessageId: aws.String("msg-2")}, nil
}

func TestPublishers(t *testing.T) {
	ctx := context.Background()

	queue := &fakeSQS{}
	id, err := NewSQSPublisher(queue, "https://sqs/queue").Publish(ctx, `{"to":"5511"}`)
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "https://sqs/queue", aws.ToString(queue.input.QueueUrl))
	assert.Equal(t, `{"to":"5511"}`, aws.ToString(queue.input.MessageBody))

	queue.err = errors.New("access denied")
	_, err = NewSQSPublisher(queue, "https://sqs/queue").Publish(ctx, "{}")
	require.Error(t, err)

	topic := &fakeSNS{}
	id, err = NewSNSPublisher(topic, "arn:aws:sns:topic").Publish(ctx, `{"to":"5511"}`)
	require.NoError(t, err)
	assert.Equal(t, "msg-2", id)
	assert.Equal(t, "arn:aws:sns:topic", aws.ToString(topic.input.TopicArn))
}

type fakeSecrets struct {
	output *secretsmanager.GetSecretValueOutput
	err    error
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return f.output, f.err
}

func TestGetDatabasePassword(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		client   *fakeSecrets
		expected string
		wantErr  bool
	}{
		{
			name:     "secret string",
			client:   &fakeSecrets{output: &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"username":"wmg","password":"s3cr3t"}`)}},
			expected: "s3cr3t",
		},
		{
			name:     "secret binary",
			client:   &fakeSecrets{output: &secretsmanager.GetSecretValueOutput{SecretBinary: []byte("raw-pass")}},
			expected: "raw-pass",
		},
		{
			name:    "no password field",
			client:  &fakeSecrets{output: &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"username":"wmg"}`)}},
			wantErr: true,
		},
		{
			name:    "empty secret",
			client:  &fakeSecrets{output: &secretsmanager.GetSecretValueOutput{}},
			wantErr: true,
		},
		{
			name:    "api error",
			client:  &fakeSecrets{err: errors.New("not authorized")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			password, err := GetDatabasePassword(ctx, tt.client, "arn:secret")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, password)
		})
	}
}
