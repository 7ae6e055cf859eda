package document

import (
	"context"
	"errors"
	"testing"
	"time"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
	"github.com/nimburion/keyset/pkg/repository"
)

type fakeDynamo struct {
	out    *awsdynamodb.QueryOutput
	err    error
	inputs []*awsdynamodb.QueryInput
}

func (f *fakeDynamo) Query(_ context.Context, in *awsdynamodb.QueryInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.QueryOutput, error) {
	f.inputs = append(f.inputs, in)
	return f.out, f.err
}

func TestDynamoStartKey_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 5, time.UTC)
	key, err := DynamoStartKey(codec.Values{
		"pk":    "user#1",
		"sk":    int64(42),
		"score": 1.25,
		"flag":  true,
		"gone":  nil,
		"at":    ts,
	})
	if err != nil {
		t.Fatalf("DynamoStartKey() error = %v", err)
	}
	if n, ok := key["sk"].(*types.AttributeValueMemberN); !ok || n.Value != "42" {
		t.Errorf("sk = %#v", key["sk"])
	}
	if s, ok := key["at"].(*types.AttributeValueMemberS); !ok || s.Value != "2024-01-01T00:00:00.000000005Z" {
		t.Errorf("at = %#v", key["at"])
	}

	values, err := ValuesFromDynamoKey(key)
	if err != nil {
		t.Fatalf("ValuesFromDynamoKey() error = %v", err)
	}
	if values["pk"] != "user#1" || values["sk"] != int64(42) || values["score"] != 1.25 || values["flag"] != true || values["gone"] != nil {
		t.Errorf("values = %v", values)
	}
}

func TestDynamoKey_Unsupported(t *testing.T) {
	if _, err := DynamoStartKey(codec.Values{"x": []int{1}}); !errors.Is(err, codec.ErrUnsupportedValue) {
		t.Errorf("expected ErrUnsupportedValue, got %v", err)
	}
	_, err := ValuesFromDynamoKey(map[string]types.AttributeValue{"b": &types.AttributeValueMemberB{Value: []byte{1}}})
	if !errors.Is(err, codec.ErrUnsupportedValue) {
		t.Errorf("expected ErrUnsupportedValue, got %v", err)
	}
	if _, err := ValuesFromDynamoKey(map[string]types.AttributeValue{"n": &types.AttributeValueMemberN{Value: "abc"}}); err == nil {
		t.Error("expected error for invalid number")
	}
}

func TestDynamoPager_FindPage(t *testing.T) {
	fake := &fakeDynamo{out: &awsdynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			{"pk": &types.AttributeValueMemberS{Value: "t1"}, "sk": &types.AttributeValueMemberN{Value: "1"}},
		},
		LastEvaluatedKey: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: "t1"},
			"sk": &types.AttributeValueMemberN{Value: "1"},
		},
	}}
	c := codec.New()
	pager, err := NewDynamoPager(fake, c, codec.FormatText)
	if err != nil {
		t.Fatalf("NewDynamoPager() error = %v", err)
	}
	q := DynamoQuery{
		Table:        "events",
		KeyCondition: "pk = :pk",
		Values:       map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: "t1"}},
		KeyFields:    cursor.Spec{cursor.Asc("pk"), cursor.Asc("sk")},
		Descending:   true,
	}

	page, err := pager.FindPage(context.Background(), q, 1, "")
	if err != nil {
		t.Fatalf("FindPage() error = %v", err)
	}
	if !page.HasNext || page.HasPrev || len(page.Items) != 1 {
		t.Errorf("unexpected page: %+v", page)
	}
	in := fake.inputs[0]
	if *in.TableName != "events" || *in.Limit != 1 || *in.ScanIndexForward || in.ExclusiveStartKey != nil {
		t.Errorf("unexpected first input: %+v", in)
	}

	fake.out = &awsdynamodb.QueryOutput{}
	next, err := pager.FindPage(context.Background(), q, 1, page.NextCursor)
	if err != nil {
		t.Fatalf("FindPage(next) error = %v", err)
	}
	if next.HasNext || !next.HasPrev || next.Items == nil {
		t.Errorf("unexpected next page: %+v", next)
	}
	start := fake.inputs[1].ExclusiveStartKey
	if n, ok := start["sk"].(*types.AttributeValueMemberN); !ok || n.Value != "1" {
		t.Errorf("ExclusiveStartKey = %#v", start)
	}
}

func TestDynamoPager_Errors(t *testing.T) {
	c := codec.New()
	fake := &fakeDynamo{err: errors.New("throttled")}
	pager, _ := NewDynamoPager(fake, c, codec.FormatCompact)
	q := DynamoQuery{Table: "events", KeyCondition: "pk = :pk", KeyFields: cursor.Spec{cursor.Asc("pk")}}

	if _, err := pager.FindPage(context.Background(), q, 10, ""); err == nil {
		t.Error("expected query error")
	}
	if _, err := pager.FindPage(context.Background(), DynamoQuery{}, 10, ""); err == nil {
		t.Error("expected error for missing table")
	}
	if _, err := pager.FindPage(context.Background(), q, 10, "@@"); !errors.Is(err, codec.ErrInvalidCursor) {
		t.Errorf("expected ErrInvalidCursor, got %v", err)
	}
	if _, err := pager.FindPageRequest(context.Background(), q, repository.PageRequest{Before: "x"}); !errors.Is(err, ErrBackwardUnsupported) {
		t.Errorf("expected ErrBackwardUnsupported, got %v", err)
	}
	if _, err := NewDynamoPager(nil, c, codec.FormatCompact); err == nil {
		t.Error("expected error for nil client")
	}
}
