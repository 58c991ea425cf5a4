package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/auth-otp-api/internal/domain"
)

// TokenRepo provides typed DynamoDB operations for the tokens table.
type TokenRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTokenRepo(client *dynamodb.Client, tableName string) *TokenRepo {
	return &TokenRepo{client: client, tableName: tableName}
}

func (r *TokenRepo) Put(ctx context.Context, t *domain.Token) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return dbErr("marshal token", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return dbErr("put token", err)
	}
	return nil
}

// GetLiveByAccessToken finds the active, non-deleted token row for
// (user, access token). Used to locate the credential an OTP check retires.
func (r *TokenRepo) GetLiveByAccessToken(ctx context.Context, userID, accessToken string) (*domain.Token, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("access_token-index"),
		KeyConditionExpression: aws.String("access_token = :at"),
		FilterExpression:       aws.String("user_id = :uid AND #ac = :t AND attribute_not_exists(deleted_at)"),
		ExpressionAttributeNames: map[string]string{
			"#ac": fieldActive,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at":  &types.AttributeValueMemberS{Value: accessToken},
			":uid": &types.AttributeValueMemberS{Value: userID},
			":t":   &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, dbErr("query tokens", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("token not found: %w", domain.ErrNotFound)
	}
	var t domain.Token
	if err := attributevalue.UnmarshalMap(out.Items[0], &t); err != nil {
		return nil, dbErr("unmarshal token", err)
	}
	return &t, nil
}

// InvalidateByUser retires every live token row for a user: active flag
// cleared and deleted_at stamped. Run before a replacement pair is stored
// so two "current" token sets never coexist.
func (r *TokenRepo) InvalidateByUser(ctx context.Context, userID string) error {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("#ac = :t"),
		ExpressionAttributeNames: map[string]string{
			"#ac": fieldActive,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
			":t":   &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return dbErr("query tokens", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var firstErr error
	for _, item := range out.Items {
		tidAttr, ok := item["token_id"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if err := r.update(ctx, tidAttr.Value, map[string]interface{}{
			fieldActive:    false,
			fieldDeletedAt: now,
		}); err != nil {
			slog.Warn("failed to invalidate token", "token_id", tidAttr.Value, "user_id", userID, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Retire marks one token row inactive and soft-deleted.
func (r *TokenRepo) Retire(ctx context.Context, tokenID string) error {
	return r.update(ctx, tokenID, map[string]interface{}{
		fieldActive:    false,
		fieldDeletedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *TokenRepo) update(ctx context.Context, tokenID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("token_id", tokenID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		return dbErr("update token", err)
	}
	return nil
}
