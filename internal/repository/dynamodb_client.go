package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"intake-agent/internal/domain"
)

const skCase = "CASE"

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client stores finalized intake cases in a single DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// casePK returns the DynamoDB partition key for a case.
func casePK(caseNumber string) string {
	return "CASE#" + caseNumber
}

// CreateCase writes rec once. An existing item under the same case number yields
// domain.ErrCaseExists and is left untouched.
func (c *Client) CreateCase(ctx context.Context, rec domain.CaseRecord) (time.Time, error) {
	if strings.TrimSpace(rec.CaseNumber) == "" {
		return time.Time{}, errors.New("repository: CreateCase: case number is required")
	}
	ts := c.now().UTC()
	rec.Timestamp = ts

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                caseItem(rec),
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return time.Time{}, fmt.Errorf("repository: CreateCase %s: %w", rec.CaseNumber, domain.ErrCaseExists)
		}
		return time.Time{}, fmt.Errorf("repository: CreateCase: %w", err)
	}
	return ts, nil
}

// GetCase reads a case with a strongly consistent read.
func (c *Client) GetCase(ctx context.Context, caseNumber string) (domain.CaseRecord, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: casePK(caseNumber)},
			"SK": &types.AttributeValueMemberS{Value: skCase},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.CaseRecord{}, fmt.Errorf("repository: GetCase get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.CaseRecord{}, fmt.Errorf("repository: GetCase %s: %w", caseNumber, domain.ErrCaseNotFound)
	}

	rec, err := itemToCase(out.Item)
	if err != nil {
		return domain.CaseRecord{}, fmt.Errorf("repository: GetCase unmarshal: %w", err)
	}
	return rec, nil
}

func caseItem(rec domain.CaseRecord) map[string]types.AttributeValue {
	features := make([]types.AttributeValue, 0, len(rec.Report.KeyFeatures))
	for _, f := range rec.Report.KeyFeatures {
		features = append(features, &types.AttributeValueMemberS{Value: f})
	}
	transcript := make([]types.AttributeValue, 0, len(rec.FullTranscript))
	for _, m := range rec.FullTranscript {
		transcript = append(transcript, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"role":    &types.AttributeValueMemberS{Value: m.Role},
			"content": &types.AttributeValueMemberS{Value: m.Content},
		}})
	}

	item := map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: casePK(rec.CaseNumber)},
		"SK":         &types.AttributeValueMemberS{Value: skCase},
		"caseNumber": &types.AttributeValueMemberS{Value: rec.CaseNumber},
		"report": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"projectName":       &types.AttributeValueMemberS{Value: rec.Report.ProjectName},
			"projectSummary":    &types.AttributeValueMemberS{Value: rec.Report.ProjectSummary},
			"keyFeatures":       &types.AttributeValueMemberL{Value: features},
			"estimatedTimeline": &types.AttributeValueMemberS{Value: rec.Report.EstimatedTimeline},
			"interviewDate":     &types.AttributeValueMemberS{Value: rec.Report.InterviewDate},
		}},
		"fullTranscript": &types.AttributeValueMemberL{Value: transcript},
		"timestamp":      &types.AttributeValueMemberS{Value: rec.Timestamp.UTC().Format(time.RFC3339Nano)},
	}
	if rec.IdempotencyKey != "" {
		item["idempotencyKey"] = &types.AttributeValueMemberS{Value: rec.IdempotencyKey}
	}
	return item
}

// itemToCase converts a DynamoDB attribute map to a CaseRecord.
func itemToCase(item map[string]types.AttributeValue) (domain.CaseRecord, error) {
	caseNumber, err := strAttr(item, "caseNumber")
	if err != nil {
		return domain.CaseRecord{}, err
	}
	rawTS, err := strAttr(item, "timestamp")
	if err != nil {
		return domain.CaseRecord{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTS)
	if err != nil {
		return domain.CaseRecord{}, fmt.Errorf("repository: parse timestamp: %w", err)
	}

	reportAttrs, err := mapAttr(item, "report")
	if err != nil {
		return domain.CaseRecord{}, err
	}
	var report domain.Report
	fields := []struct {
		key string
		dst *string
	}{
		{"projectName", &report.ProjectName},
		{"projectSummary", &report.ProjectSummary},
		{"estimatedTimeline", &report.EstimatedTimeline},
		{"interviewDate", &report.InterviewDate},
	}
	for _, f := range fields {
		if *f.dst, err = strAttr(reportAttrs, f.key); err != nil {
			return domain.CaseRecord{}, err
		}
	}
	features, err := listAttr(reportAttrs, "keyFeatures")
	if err != nil {
		return domain.CaseRecord{}, err
	}
	for i, v := range features {
		s, ok := v.(*types.AttributeValueMemberS)
		if !ok {
			return domain.CaseRecord{}, fmt.Errorf("repository: keyFeatures[%d] is not a string", i)
		}
		report.KeyFeatures = append(report.KeyFeatures, s.Value)
	}

	msgs, err := listAttr(item, "fullTranscript")
	if err != nil {
		return domain.CaseRecord{}, err
	}
	transcript := make(domain.Conversation, 0, len(msgs))
	for i, v := range msgs {
		m, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return domain.CaseRecord{}, fmt.Errorf("repository: fullTranscript[%d] is not a map", i)
		}
		role, err := strAttr(m.Value, "role")
		if err != nil {
			return domain.CaseRecord{}, err
		}
		content, err := strAttr(m.Value, "content")
		if err != nil {
			return domain.CaseRecord{}, err
		}
		transcript = append(transcript, domain.ChatMessage{Role: role, Content: content})
	}

	key, _ := strAttr(item, "idempotencyKey") // optional

	return domain.CaseRecord{
		CaseNumber:     caseNumber,
		Report:         report,
		Timestamp:      ts,
		FullTranscript: transcript,
		IdempotencyKey: key,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func mapAttr(item map[string]types.AttributeValue, key string) (map[string]types.AttributeValue, error) {
	v, ok := item[key]
	if !ok {
		return nil, fmt.Errorf("repository: missing attribute %q", key)
	}
	m, ok := v.(*types.AttributeValueMemberM)
	if !ok {
		return nil, fmt.Errorf("repository: attribute %q is not a map", key)
	}
	return m.Value, nil
}

func listAttr(item map[string]types.AttributeValue, key string) ([]types.AttributeValue, error) {
	v, ok := item[key]
	if !ok {
		return nil, fmt.Errorf("repository: missing attribute %q", key)
	}
	l, ok := v.(*types.AttributeValueMemberL)
	if !ok {
		return nil, fmt.Errorf("repository: attribute %q is not a list", key)
	}
	return l.Value, nil
}
