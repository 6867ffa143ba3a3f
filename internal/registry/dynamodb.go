package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/fieldmark/fieldmark/internal/config"
	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

const dynamoTimeFormat = "2006-01-02T15:04:05.000Z"

// DynamoDBStore implements the Store interface on Amazon DynamoDB using a
// single-table layout. Location records, code pointers, and retired-code
// markers are distinguished by partition-key prefix so every lookup the
// minter and resolver need is an exact-key read.
type DynamoDBStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoDBStore creates a DynamoDBStore for the configured table.
// Credentials are resolved via the standard AWS credential chain.
func NewDynamoDBStore(cfg *config.DynamoDBConfig) (*DynamoDBStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("dynamodb config is required")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}

	return &DynamoDBStore{
		client:    dynamodb.NewFromConfig(awsCfg),
		tableName: cfg.Table,
	}, nil
}

func pkLocation(id string) string { return "LOC#" + id }

func pkCode(code string) string { return "CODE#" + code }

func pkRetired(code string) string { return "RETIRED#" + code }

const skItem = "#ITEM"

func (s *DynamoDBStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	return err
}

func (s *DynamoDBStore) Close() error { return nil }

func (s *DynamoDBStore) key(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: skItem},
	}
}

func locationItem(loc *LocationRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":         &types.AttributeValueMemberS{Value: pkLocation(loc.ID)},
		"sk":         &types.AttributeValueMemberS{Value: skItem},
		"type":       &types.AttributeValueMemberS{Value: "location"},
		"id":         &types.AttributeValueMemberS{Value: loc.ID},
		"code":       &types.AttributeValueMemberS{Value: loc.Code},
		"name":       &types.AttributeValueMemberS{Value: loc.Name},
		"site":       &types.AttributeValueMemberS{Value: loc.Site},
		"active":     &types.AttributeValueMemberBOOL{Value: loc.Active},
		"created_at": &types.AttributeValueMemberS{Value: loc.CreatedAt.UTC().Format(dynamoTimeFormat)},
		"updated_at": &types.AttributeValueMemberS{Value: loc.UpdatedAt.UTC().Format(dynamoTimeFormat)},
	}
}

func itemString(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func itemBool(item map[string]types.AttributeValue, name string) bool {
	if v, ok := item[name].(*types.AttributeValueMemberBOOL); ok {
		return v.Value
	}
	return false
}

func itemLocation(item map[string]types.AttributeValue) *LocationRecord {
	loc := &LocationRecord{
		ID:     itemString(item, "id"),
		Code:   itemString(item, "code"),
		Name:   itemString(item, "name"),
		Site:   itemString(item, "site"),
		Active: itemBool(item, "active"),
	}
	if t, err := time.Parse(dynamoTimeFormat, itemString(item, "created_at")); err == nil {
		loc.CreatedAt = t
	}
	if t, err := time.Parse(dynamoTimeFormat, itemString(item, "updated_at")); err == nil {
		loc.UpdatedAt = t
	}
	return loc
}

func (s *DynamoDBStore) CreateLocation(ctx context.Context, loc *LocationRecord) error {
	now := time.Now().UTC()
	cp := *loc
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	cp.Active = true

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                locationItem(&cp),
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		if strings.Contains(err.Error(), "ConditionalCheckFailedException") {
			return fmerr.ErrLocationExists.WithMessage("location %q already exists", loc.ID)
		}
		return fmt.Errorf("putting location item: %w", err)
	}

	if cp.Code != "" {
		if err := s.putCodePointer(ctx, cp.Code, cp.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *DynamoDBStore) putCodePointer(ctx context.Context, code, locationID string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"pk":          &types.AttributeValueMemberS{Value: pkCode(code)},
			"sk":          &types.AttributeValueMemberS{Value: skItem},
			"type":        &types.AttributeValueMemberS{Value: "code"},
			"location_id": &types.AttributeValueMemberS{Value: locationID},
		},
	})
	if err != nil {
		return fmt.Errorf("putting code pointer: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) getItem(ctx context.Context, pk string) (map[string]types.AttributeValue, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(pk),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return out.Item, nil
}

func (s *DynamoDBStore) GetLocation(ctx context.Context, id string) (*LocationRecord, error) {
	item, err := s.getItem(ctx, pkLocation(id))
	if err != nil {
		return nil, fmt.Errorf("getting location item: %w", err)
	}
	if item == nil {
		return nil, fmerr.ErrLocationNotFound.WithMessage("location %q not found", id)
	}
	return itemLocation(item), nil
}

func (s *DynamoDBStore) ListLocations(ctx context.Context) ([]LocationRecord, error) {
	var out []LocationRecord
	var startKey map[string]types.AttributeValue
	for {
		resp, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.tableName),
			FilterExpression: aws.String("#t = :loc"),
			ExpressionAttributeNames: map[string]string{
				"#t": "type",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":loc": &types.AttributeValueMemberS{Value: "location"},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scanning locations: %w", err)
		}
		for _, item := range resp.Items {
			out = append(out, *itemLocation(item))
		}
		if resp.LastEvaluatedKey == nil {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *DynamoDBStore) DeleteLocation(ctx context.Context, id string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              s.key(pkLocation(id)),
		UpdateExpression: aws.String("SET active = :f, updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":f":   &types.AttributeValueMemberBOOL{Value: false},
			":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(dynamoTimeFormat)},
		},
		ConditionExpression: aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		if strings.Contains(err.Error(), "ConditionalCheckFailedException") {
			return fmerr.ErrLocationNotFound.WithMessage("location %q not found", id)
		}
		return fmt.Errorf("deactivating location: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	for _, pk := range []string{pkRetired(code), pkCode(code)} {
		item, err := s.getItem(ctx, pk)
		if err != nil {
			return false, fmt.Errorf("checking code existence: %w", err)
		}
		if item != nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *DynamoDBStore) FindByCode(ctx context.Context, code string) (*LocationRecord, error) {
	ptr, err := s.getItem(ctx, pkCode(code))
	if err != nil {
		return nil, fmt.Errorf("getting code pointer: %w", err)
	}
	if ptr == nil {
		return nil, fmerr.ErrCodeNotFound.WithMessage("code %q not bound", code)
	}

	loc, err := s.GetLocation(ctx, itemString(ptr, "location_id"))
	if err != nil {
		return nil, fmerr.ErrCodeNotFound.WithMessage("code %q not bound", code)
	}
	if !loc.Active {
		return nil, fmerr.ErrCodeNotFound.WithMessage("code %q not bound", code)
	}
	return loc, nil
}

func (s *DynamoDBStore) ListRetiredCodes(ctx context.Context) ([]string, error) {
	var out []string
	var startKey map[string]types.AttributeValue
	for {
		resp, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.tableName),
			FilterExpression: aws.String("#t = :retired"),
			ExpressionAttributeNames: map[string]string{
				"#t": "type",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":retired": &types.AttributeValueMemberS{Value: "retired"},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scanning retired codes: %w", err)
		}
		for _, item := range resp.Items {
			out = append(out, itemString(item, "code"))
		}
		if resp.LastEvaluatedKey == nil {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	sort.Strings(out)
	return out, nil
}

func (s *DynamoDBStore) RetireCode(ctx context.Context, code string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"pk":         &types.AttributeValueMemberS{Value: pkRetired(code)},
			"sk":         &types.AttributeValueMemberS{Value: skItem},
			"type":       &types.AttributeValueMemberS{Value: "retired"},
			"code":       &types.AttributeValueMemberS{Value: code},
			"retired_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(dynamoTimeFormat)},
		},
	})
	if err != nil {
		return fmt.Errorf("retiring code: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) BindCode(ctx context.Context, locationID, code string) error {
	loc, err := s.GetLocation(ctx, locationID)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(dynamoTimeFormat)
	if old := loc.Code; old != "" {
		_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.tableName),
			Item: map[string]types.AttributeValue{
				"pk":         &types.AttributeValueMemberS{Value: pkRetired(old)},
				"sk":         &types.AttributeValueMemberS{Value: skItem},
				"type":       &types.AttributeValueMemberS{Value: "retired"},
				"code":       &types.AttributeValueMemberS{Value: old},
				"retired_at": &types.AttributeValueMemberS{Value: now},
			},
		})
		if err != nil {
			return fmt.Errorf("retiring old code: %w", err)
		}
		if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key:       s.key(pkCode(old)),
		}); err != nil {
			return fmt.Errorf("removing old code pointer: %w", err)
		}
	}

	if err := s.putCodePointer(ctx, code, locationID); err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              s.key(pkLocation(locationID)),
		UpdateExpression: aws.String("SET code = :c, updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c":   &types.AttributeValueMemberS{Value: code},
			":now": &types.AttributeValueMemberS{Value: now},
		},
	})
	if err != nil {
		return fmt.Errorf("binding new code: %w", err)
	}
	return nil
}
