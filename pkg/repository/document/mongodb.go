package document

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
	"github.com/nimburion/keyset/pkg/observability/logger"
	"github.com/nimburion/keyset/pkg/repository"
)

// MongoFinder runs a filtered, sorted and limited find on a collection.
type MongoFinder interface {
	Find(ctx context.Context, collection string, filter, sort bson.D, limit int64) ([]bson.M, error)
}

// MongoDatabaseFinder adapts a *mongo.Database to MongoFinder.
type MongoDatabaseFinder struct {
	db *mongo.Database
}

// NewMongoDatabaseFinder creates a new MongoDatabaseFinder instance.
func NewMongoDatabaseFinder(db *mongo.Database) (*MongoDatabaseFinder, error) {
	if db == nil {
		return nil, errors.New("mongodb database is required")
	}
	return &MongoDatabaseFinder{db: db}, nil
}

// Find implements MongoFinder.
func (f *MongoDatabaseFinder) Find(ctx context.Context, collection string, filter, sort bson.D, limit int64) ([]bson.M, error) {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := f.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []bson.M{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MongoKeysetFilter builds the filter selecting documents strictly after the
// boundary values under spec, or strictly before them when before is set:
//
//	{$or: [{a: {$gt: va}}, {a: va, b: {$lt: vb}}, ...]}
func MongoKeysetFilter(spec cursor.Spec, values codec.Values, before bool) (bson.D, error) {
	if len(spec) == 0 {
		return bson.D{}, nil
	}
	for _, fs := range spec {
		if _, ok := values[fs.Field]; !ok {
			return nil, fmt.Errorf("%w: %q", codec.ErrMissingValue, fs.Field)
		}
	}

	disjuncts := make(bson.A, 0, len(spec))
	for k, fs := range spec {
		clause := make(bson.D, 0, k+1)
		for _, prev := range spec[:k] {
			clause = append(clause, bson.E{Key: string(prev.Field), Value: values[prev.Field]})
		}
		clause = append(clause, bson.E{
			Key:   string(fs.Field),
			Value: bson.D{{Key: mongoComparator(fs.Direction, before), Value: values[fs.Field]}},
		})
		disjuncts = append(disjuncts, clause)
	}
	return bson.D{{Key: "$or", Value: disjuncts}}, nil
}

func mongoComparator(dir cursor.Direction, before bool) string {
	forward := dir != cursor.Descending
	if before {
		forward = !forward
	}
	if forward {
		return "$gt"
	}
	return "$lt"
}

// MongoSort renders spec as a sort document, flipped when reverse is set.
func MongoSort(spec cursor.Spec, reverse bool) bson.D {
	sort := make(bson.D, len(spec))
	for i, fs := range spec {
		dir := fs.Direction
		if reverse {
			dir = dir.Reverse()
		}
		order := 1
		if dir == cursor.Descending {
			order = -1
		}
		sort[i] = bson.E{Key: string(fs.Field), Value: order}
	}
	return sort
}

// MongoRow exposes a decoded document as a codec.Row. BSON dates become
// time.Time, object ids their hex form and timestamps an int64. Paging on
// object ids or timestamps needs WithObjectIDFields or WithTimestampFields.
type MongoRow bson.M

// Value implements codec.Row.
func (r MongoRow) Value(field cursor.Field) (any, bool) {
	v, ok := r[string(field)]
	if !ok {
		return nil, false
	}
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time().UTC(), true
	case primitive.ObjectID:
		return x.Hex(), true
	case primitive.Timestamp:
		return int64(x.T)<<32 | int64(x.I), true
	}
	return v, true
}

// MongoKeysetRepository reads pages of a collection by keyset.
type MongoKeysetRepository struct {
	finder     MongoFinder
	collection string
	resolver   *cursor.Resolver
	codec      *codec.Codec
	restore    map[cursor.Field]func(any) (any, error)
	format     codec.Format
	limit      int
	maxLimit   int
	log        logger.Logger
}

// MongoOption configures a MongoKeysetRepository.
type MongoOption func(*MongoKeysetRepository)

// WithObjectIDFields marks fields holding object ids. Their cursor values
// travel as hex strings and are turned back into ids when filtering.
func WithObjectIDFields(fields ...cursor.Field) MongoOption {
	return func(r *MongoKeysetRepository) {
		for _, f := range fields {
			r.restore[f] = restoreObjectID
		}
	}
}

// WithTimestampFields marks fields holding BSON timestamps. Their cursor
// values travel as int64 (seconds in the high 32 bits) and are turned back
// into timestamps when filtering; BSON never orders an int64 against a
// timestamp by value.
func WithTimestampFields(fields ...cursor.Field) MongoOption {
	return func(r *MongoKeysetRepository) {
		for _, f := range fields {
			r.restore[f] = restoreTimestamp
		}
	}
}

// WithMongoLimits sets the default and maximum page size.
func WithMongoLimits(defaultLimit, maxLimit int) MongoOption {
	return func(r *MongoKeysetRepository) {
		if defaultLimit > 0 {
			r.limit = defaultLimit
		}
		if maxLimit > 0 {
			r.maxLimit = maxLimit
		}
	}
}

// WithMongoTokenFormat sets the format of issued tokens.
func WithMongoTokenFormat(format codec.Format) MongoOption {
	return func(r *MongoKeysetRepository) {
		r.format = format
	}
}

// WithMongoLogger sets the logger.
func WithMongoLogger(log logger.Logger) MongoOption {
	return func(r *MongoKeysetRepository) {
		if log != nil {
			r.log = log
		}
	}
}

// NewMongoKeysetRepository creates a MongoKeysetRepository. Resolvers for
// collections keyed by _id are usually built with cursor.NewValidator("_id").
func NewMongoKeysetRepository(finder MongoFinder, collection string, resolver *cursor.Resolver, c *codec.Codec, opts ...MongoOption) (*MongoKeysetRepository, error) {
	switch {
	case finder == nil:
		return nil, errors.New("mongo finder is required")
	case collection == "":
		return nil, errors.New("collection name is required")
	case resolver == nil:
		return nil, errors.New("cursor resolver is required")
	case c == nil:
		return nil, errors.New("cursor codec is required")
	}
	r := &MongoKeysetRepository{
		finder:     finder,
		collection: collection,
		resolver:   resolver,
		codec:      c,
		restore:    map[cursor.Field]func(any) (any, error){},
		format:     codec.FormatAuto,
		limit:      repository.DefaultLimit,
		maxLimit:   repository.MaxLimit,
		log:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// FindPage retrieves one page of documents. It follows the same rules as
// repository.KeysetRepository.FindPage.
func (r *MongoKeysetRepository) FindPage(ctx context.Context, req repository.PageRequest) (*repository.Page[bson.M], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	spec, err := r.resolver.Resolve(req.Order, req.CursorFields)
	if err != nil {
		return nil, err
	}

	before := !req.Before.IsEmpty()
	token := req.After
	if before {
		token = req.Before
	}

	filter := make(bson.D, 0, len(req.Filter)+1)
	for _, k := range sortedKeys(req.Filter) {
		filter = append(filter, bson.E{Key: k, Value: req.Filter[k]})
	}
	if !token.IsEmpty() {
		values, err := r.codec.DecodeFor(token, codec.FormatAuto, spec)
		if err != nil {
			r.log.WithContext(ctx).Warn("rejected pagination cursor", "collection", r.collection, "error", err)
			return nil, err
		}
		if err := r.restoreValues(values); err != nil {
			return nil, err
		}
		keyset, err := MongoKeysetFilter(spec, values, before)
		if err != nil {
			return nil, err
		}
		filter = append(filter, keyset...)
	}

	limit := r.normalizeLimit(req.Limit)
	docs, err := r.finder.Find(ctx, r.collection, filter, MongoSort(spec, before), int64(limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}

	more := len(docs) > limit
	if more {
		docs = docs[:limit]
	}
	if before {
		slices.Reverse(docs)
	}

	page := &repository.Page[bson.M]{Items: docs, CursorFields: spec}
	if before {
		page.HasPrev = more
		page.HasNext = len(docs) > 0
	} else {
		page.HasNext = more
		page.HasPrev = !req.After.IsEmpty() && len(docs) > 0
	}

	start, end, err := codec.FromRows(r.codec, docs, func(d bson.M) codec.Row { return MongoRow(d) }, spec, r.format)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page cursors: %w", err)
	}
	if page.HasNext {
		page.NextCursor = end
	}
	if page.HasPrev {
		page.PrevCursor = start
	}
	return page, nil
}

func (r *MongoKeysetRepository) restoreValues(values codec.Values) error {
	for f, restore := range r.restore {
		v, ok := values[f]
		if !ok || v == nil {
			continue
		}
		restored, err := restore(v)
		if err != nil {
			return &codec.InvalidCursorError{Format: codec.FormatAuto, Reason: codec.ReasonPayload, Err: fmt.Errorf("field %q: %w", f, err)}
		}
		values[f] = restored
	}
	return nil
}

func restoreObjectID(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("object id must be a hex string, got %T", v)
	}
	return primitive.ObjectIDFromHex(s)
}

func restoreTimestamp(v any) (any, error) {
	n, ok := v.(int64)
	if !ok || n < 0 {
		return nil, fmt.Errorf("timestamp must be a non-negative int64, got %v", v)
	}
	return primitive.Timestamp{T: uint32(n >> 32), I: uint32(n)}, nil
}

func (r *MongoKeysetRepository) normalizeLimit(limit int) int {
	if limit <= 0 {
		limit = r.limit
	}
	return min(limit, r.maxLimit)
}
