package driver

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fedsql/fedsql/internal/sql/types"
)

// MongoDriver serves a MongoDB database. Tables map to collections and
// push-down filters become find() documents.
type MongoDriver struct {
	name   string
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDriver connects to a MongoDB database.
func NewMongoDriver(ctx context.Context, name, uri, database string) (*MongoDriver, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return &MongoDriver{
		name:   name,
		client: client,
		db:     client.Database(database),
	}, nil
}

// Name returns the source name.
func (d *MongoDriver) Name() string { return d.name }

// Kind returns "mongo".
func (d *MongoDriver) Kind() string { return "mongo" }

// Fetch runs a find() against the collection named by the query.
func (d *MongoDriver) Fetch(ctx context.Context, query *RemoteQuery) (*types.RowBatch, error) {
	coll := d.db.Collection(query.Table)

	opts := options.Find()
	if query.Limit > 0 {
		opts.SetLimit(int64(query.Limit))
	}
	if len(query.Columns) > 0 {
		projection := bson.M{"_id": 0}
		for _, col := range query.Columns {
			if col == "_id" {
				delete(projection, "_id")
				continue
			}
			projection[col] = 1
		}
		opts.SetProjection(projection)
	}

	cursor, err := coll.Find(ctx, buildMongoFilter(query.Filters), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []map[string]types.Value
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		row := make(map[string]types.Value, len(doc))
		for k, v := range doc {
			row[k] = types.FromAny(v)
		}
		docs = append(docs, row)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	columns := query.Columns
	if len(columns) == 0 {
		columns = docColumns(docs)
	}
	return docsToBatch(columns, docs), nil
}

// buildMongoFilter converts pushed-down conjuncts into a find()
// filter document.
func buildMongoFilter(filters []Filter) bson.M {
	filter := bson.M{}
	for _, f := range filters {
		var cond any
		switch f.Op {
		case OpEq:
			cond = bson.M{"$eq": f.Value.Any()}
		case OpNe:
			cond = bson.M{"$ne": f.Value.Any()}
		case OpLt:
			cond = bson.M{"$lt": f.Value.Any()}
		case OpLe:
			cond = bson.M{"$lte": f.Value.Any()}
		case OpGt:
			cond = bson.M{"$gt": f.Value.Any()}
		case OpGe:
			cond = bson.M{"$gte": f.Value.Any()}
		case OpIsNull:
			cond = bson.M{"$eq": nil}
		case OpIsNotNull:
			cond = bson.M{"$ne": nil}
		default:
			continue
		}

		if existing, ok := filter[f.Column]; ok {
			// Multiple conjuncts on one column merge into one
			// operator document.
			merged := existing.(bson.M)
			for k, v := range cond.(bson.M) {
				merged[k] = v
			}
			filter[f.Column] = merged
			continue
		}
		filter[f.Column] = cond
	}
	return filter
}

// docColumns derives a stable column order from decoded documents:
// sorted union of keys, _id excluded.
func docColumns(docs []map[string]types.Value) []string {
	seen := make(map[string]bool)
	for _, doc := range docs {
		for k := range doc {
			if k != "_id" {
				seen[k] = true
			}
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

func docsToBatch(columns []string, docs []map[string]types.Value) *types.RowBatch {
	schema := types.Schema{}
	for _, col := range columns {
		schema.Columns = append(schema.Columns, types.Column{Name: col})
	}
	batch := types.NewRowBatch(schema)

	for _, doc := range docs {
		row := make(types.Row, len(columns))
		for i, col := range columns {
			if v, ok := doc[col]; ok {
				row[i] = v
			} else {
				row[i] = types.Null()
			}
		}
		batch.Append(row)
	}
	return batch
}

// Ping verifies the deployment is reachable.
func (d *MongoDriver) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, nil)
}

// Close disconnects from the deployment.
func (d *MongoDriver) Close() error {
	return d.client.Disconnect(context.Background())
}
