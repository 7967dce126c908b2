package repository

import (
	"context"
	"errors"
	"fmt"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

type DeliveryRepository struct {
	logger    *logrus.Entry
	client    utils.DynamoDbAPI
	tableName string
}

func NewDeliveryRepository(logger *logrus.Entry, client utils.DynamoDbAPI, tableName string) utils.DeliveryRepository {
	return &DeliveryRepository{
		logger:    logger,
		client:    client,
		tableName: tableName,
	}
}

// MarkProcessed writes the delivery unless an item with the same message id
// exists. WhatsApp retries webhooks, so the same message can arrive twice.
func (r *DeliveryRepository) MarkProcessed(ctx context.Context, delivery models.WebhookDelivery) (bool, error) {
	item, err := attributevalue.MarshalMap(delivery)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal webhook delivery")
		return false, fmt.Errorf("failed to marshal webhook delivery: %w", err)
	}
	item["pk"] = &types.AttributeValueMemberS{Value: "message#" + delivery.MessageID}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			r.logger.WithField("messageId", delivery.MessageID).Info("Webhook message already processed")
			return false, nil
		}
		r.logger.WithError(err).Error("Failed to save webhook delivery to DynamoDB")
		return false, fmt.Errorf("failed to save webhook delivery: %w", err)
	}

	return true, nil
}
