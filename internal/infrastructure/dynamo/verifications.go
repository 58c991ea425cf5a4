package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/auth-otp-api/internal/domain"
)

// VerificationRepo provides typed DynamoDB operations for the
// verification-codes table. Rows carry a TTL on expires_at as an eviction
// backstop; state transitions never rely on it.
type VerificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewVerificationRepo(client *dynamodb.Client, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName}
}

func (r *VerificationRepo) Put(ctx context.Context, v *domain.VerificationCode) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return dbErr("marshal verification code", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return dbErr("put verification code", err)
	}
	return nil
}

// GetCurrentByUser returns the user's most recently issued code that has
// not been superseded. Terminal rows (verified, expired, exhausted) are
// included so a repeat check can report the same terminal outcome.
func (r *VerificationRepo) GetCurrentByUser(ctx context.Context, userID string) (*domain.VerificationCode, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-code-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("#st <> :invalidated"),
		ExpressionAttributeNames: map[string]string{
			"#st": fieldState,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid":         &types.AttributeValueMemberS{Value: userID},
			":invalidated": &types.AttributeValueMemberS{Value: string(domain.CodeInvalidated)},
		},
	})
	if err != nil {
		return nil, dbErr("query verification codes", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	var codes []domain.VerificationCode
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &codes); err != nil {
		return nil, dbErr("unmarshal verification codes", err)
	}
	latest := codes[0]
	for _, c := range codes[1:] {
		if c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	return &latest, nil
}

// IncrementAttempts bumps the attempt counter from a known prior value.
// The conditional write makes the read-check-increment cycle atomic: if a
// concurrent check already moved the counter or consumed the code, the
// condition fails and ErrConflict is returned.
func (r *VerificationRepo) IncrementAttempts(ctx context.Context, codeID string, fromAttempts int) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("code_id", codeID),
		UpdateExpression:    aws.String("SET #a = :new, #u = :now"),
		ConditionExpression: aws.String("#a = :old AND #st = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#a":  fieldAttempts,
			"#u":  fieldUpdatedAt,
			"#st": fieldState,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", fromAttempts+1)},
			":old":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", fromAttempts)},
			":now":     &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
			":pending": &types.AttributeValueMemberS{Value: string(domain.CodePending)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("verification code changed concurrently: %w", domain.ErrConflict)
		}
		return dbErr("increment attempts", err)
	}
	return nil
}

// Consume moves a pending code into a terminal state, stamping the audit
// timestamps. attempts carries the post-increment counter. The pending-only
// condition guarantees a code is consumed exactly once even under
// concurrent submissions.
func (r *VerificationRepo) Consume(ctx context.Context, codeID string, state domain.CodeState, attempts int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	expr := "SET #st = :state, #a = :attempts, #d = :now, #u = :now"
	names := map[string]string{
		"#st": fieldState,
		"#a":  fieldAttempts,
		"#d":  fieldDeletedAt,
		"#u":  fieldUpdatedAt,
	}
	values := map[string]types.AttributeValue{
		":state":    &types.AttributeValueMemberS{Value: string(state)},
		":attempts": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", attempts)},
		":now":      &types.AttributeValueMemberS{Value: now},
		":pending":  &types.AttributeValueMemberS{Value: string(domain.CodePending)},
	}
	if state == domain.CodeVerified {
		expr += ", #v = :now"
		names["#v"] = fieldVerifiedAt
	}
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("code_id", codeID),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("#st = :pending"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("verification code already consumed: %w", domain.ErrConflict)
		}
		return dbErr("consume verification code", err)
	}
	return nil
}

// InvalidatePending retires any pending codes a user still holds for a
// purpose. Called before a new code is issued so only one code per purpose
// is ever live.
func (r *VerificationRepo) InvalidatePending(ctx context.Context, userID string, purpose domain.CodePurpose) error {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-code-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("#st = :pending AND purpose = :p"),
		ExpressionAttributeNames: map[string]string{
			"#st": fieldState,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid":     &types.AttributeValueMemberS{Value: userID},
			":pending": &types.AttributeValueMemberS{Value: string(domain.CodePending)},
			":p":       &types.AttributeValueMemberS{Value: string(purpose)},
		},
	})
	if err != nil {
		return dbErr("query verification codes", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var firstErr error
	for _, item := range out.Items {
		cidAttr, ok := item["code_id"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:        aws.String(r.tableName),
			Key:              strKey("code_id", cidAttr.Value),
			UpdateExpression: aws.String("SET #st = :invalidated, #d = :now, #u = :now"),
			ExpressionAttributeNames: map[string]string{
				"#st": fieldState,
				"#d":  fieldDeletedAt,
				"#u":  fieldUpdatedAt,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":invalidated": &types.AttributeValueMemberS{Value: string(domain.CodeInvalidated)},
				":now":         &types.AttributeValueMemberS{Value: now},
			},
		})
		if err != nil {
			slog.Warn("failed to invalidate verification code", "code_id", cidAttr.Value, "user_id", userID, "err", err)
			if firstErr == nil {
				firstErr = dbErr("invalidate verification code", err)
			}
		}
	}
	return firstErr
}
