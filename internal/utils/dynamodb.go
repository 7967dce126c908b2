package utils

import (
	"context"
	"measurement-gateway/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoDbAPI defines the DynamoDB operations needed by the delivery ledger
type DynamoDbAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DeliveryRepository records inbound webhook messages that were already processed
type DeliveryRepository interface {
	// MarkProcessed stores the delivery and returns false if it was stored before.
	MarkProcessed(ctx context.Context, delivery models.WebhookDelivery) (bool, error)
}
