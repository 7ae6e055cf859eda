package document

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
	"github.com/nimburion/keyset/pkg/repository"
)

// ErrBackwardUnsupported is returned for Before tokens; DynamoDB only resumes
// a query from its last evaluated key.
var ErrBackwardUnsupported = errors.New("dynamodb pages can only be read forward")

// DynamoQueryAPI is the subset of *dynamodb.Client used for paging.
type DynamoQueryAPI interface {
	Query(ctx context.Context, params *awsdynamodb.QueryInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.QueryOutput, error)
}

// DynamoStartKey converts cursor values into an ExclusiveStartKey.
func DynamoStartKey(values codec.Values) (map[string]types.AttributeValue, error) {
	if len(values) == 0 {
		return nil, nil
	}
	key := make(map[string]types.AttributeValue, len(values))
	for f, v := range values {
		av, err := toAttributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f, err)
		}
		key[string(f)] = av
	}
	return key, nil
}

func toAttributeValue(v any) (types.AttributeValue, error) {
	switch x := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case string:
		return &types.AttributeValueMemberS{Value: x}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: x}, nil
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(x, 10)}, nil
	case float64:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(x, 'g', -1, 64)}, nil
	case time.Time:
		return &types.AttributeValueMemberS{Value: x.UTC().Format(time.RFC3339Nano)}, nil
	default:
		return nil, fmt.Errorf("%w: %T", codec.ErrUnsupportedValue, v)
	}
}

// ValuesFromDynamoKey converts a LastEvaluatedKey into cursor values.
// Numbers become int64 when integral and float64 otherwise.
func ValuesFromDynamoKey(key map[string]types.AttributeValue) (codec.Values, error) {
	values := make(codec.Values, len(key))
	for name, av := range key {
		v, err := fromAttributeValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		values[cursor.Field(name)] = v
	}
	return values, nil
}

func fromAttributeValue(av types.AttributeValue) (any, error) {
	switch x := av.(type) {
	case *types.AttributeValueMemberS:
		return x.Value, nil
	case *types.AttributeValueMemberN:
		if i, err := strconv.ParseInt(x.Value, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(x.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", x.Value, err)
		}
		return f, nil
	case *types.AttributeValueMemberBOOL:
		return x.Value, nil
	case *types.AttributeValueMemberNULL:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %T", codec.ErrUnsupportedValue, av)
	}
}

// DynamoQuery describes the key condition of a paged query. Names and
// Values are passed through as expression attribute names and values.
type DynamoQuery struct {
	Table        string
	Index        string
	KeyCondition string
	Names        map[string]string
	Values       map[string]types.AttributeValue
	// KeyFields are the key attributes of the table or index, which are
	// exactly the attributes of a LastEvaluatedKey.
	KeyFields cursor.Spec
	// Descending reads the sort key in descending order.
	Descending bool
}

// DynamoPager reads a query page by page, carrying LastEvaluatedKey in the
// cursor token.
type DynamoPager struct {
	client DynamoQueryAPI
	codec  *codec.Codec
	format codec.Format
}

// NewDynamoPager creates a new DynamoPager instance.
func NewDynamoPager(client DynamoQueryAPI, c *codec.Codec, format codec.Format) (*DynamoPager, error) {
	if client == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if c == nil {
		return nil, errors.New("cursor codec is required")
	}
	return &DynamoPager{client: client, codec: c, format: format}, nil
}

// FindPage runs one query page. A DynamoDB page may be short even when more
// items follow; HasNext reflects the presence of a LastEvaluatedKey.
func (p *DynamoPager) FindPage(ctx context.Context, q DynamoQuery, limit int, after codec.Token) (*repository.Page[map[string]types.AttributeValue], error) {
	if q.Table == "" || q.KeyCondition == "" {
		return nil, errors.New("table and key condition are required")
	}
	if limit <= 0 {
		limit = repository.DefaultLimit
	}

	input := &awsdynamodb.QueryInput{
		TableName:                 aws.String(q.Table),
		KeyConditionExpression:    aws.String(q.KeyCondition),
		ExpressionAttributeNames:  q.Names,
		ExpressionAttributeValues: q.Values,
		Limit:                     aws.Int32(int32(min(limit, repository.MaxLimit))),
		ScanIndexForward:          aws.Bool(!q.Descending),
	}
	if q.Index != "" {
		input.IndexName = aws.String(q.Index)
	}

	if !after.IsEmpty() {
		values, err := p.codec.DecodeFor(after, codec.FormatAuto, q.KeyFields)
		if err != nil {
			return nil, err
		}
		if input.ExclusiveStartKey, err = DynamoStartKey(values); err != nil {
			return nil, err
		}
	}

	out, err := p.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}

	page := &repository.Page[map[string]types.AttributeValue]{
		Items:        out.Items,
		HasNext:      len(out.LastEvaluatedKey) > 0,
		HasPrev:      !after.IsEmpty(),
		CursorFields: q.KeyFields,
	}
	if page.Items == nil {
		page.Items = []map[string]types.AttributeValue{}
	}
	if page.HasNext {
		values, err := ValuesFromDynamoKey(out.LastEvaluatedKey)
		if err != nil {
			return nil, err
		}
		if page.NextCursor, err = p.codec.Encode(values, p.format); err != nil {
			return nil, fmt.Errorf("failed to encode next cursor: %w", err)
		}
	}
	return page, nil
}

// FindPageRequest adapts a repository.PageRequest. DynamoDB orders by the
// key, so Order and CursorFields are ignored; Before is rejected.
func (p *DynamoPager) FindPageRequest(ctx context.Context, q DynamoQuery, req repository.PageRequest) (*repository.Page[map[string]types.AttributeValue], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !req.Before.IsEmpty() {
		return nil, ErrBackwardUnsupported
	}
	return p.FindPage(ctx, q, req.Limit, req.After)
}
