package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDriver runs find specs against a MongoDB database. A mongodb
// datasource's query text is a JSON document, not SQL:
//
//	{"collection": "users", "filter": {"age": {"$gte": ":min_age"}}, "limit": 10}
//
// String values of the form ":name" are placeholders and substitute the
// declared parameter of that name.
type MongoDriver struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDriver connects and pings the deployment.
func NewMongoDriver(ctx context.Context, uri, database string) (*MongoDriver, error) {
	if database == "" {
		return nil, fmt.Errorf("mongodb datasource needs a database option")
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging: %w", err)
	}
	return &MongoDriver{client: client, db: client.Database(database)}, nil
}

type mongoSpec struct {
	Collection string         `json:"collection"`
	Filter     map[string]any `json:"filter"`
	Sort       map[string]any `json:"sort"`
	Limit      int64          `json:"limit"`
	Projection map[string]any `json:"projection"`
}

// Query parses the spec, substitutes placeholders, and runs the find.
func (d *MongoDriver) Query(ctx context.Context, stmt string, params map[string]any) ([]map[string]any, error) {
	return d.find(ctx, stmt, params)
}

// Tx runs fn inside a MongoDB session transaction. The isolation
// argument is ignored; MongoDB transactions are snapshot-isolated.
func (d *MongoDriver) Tx(ctx context.Context, isolation string, fn func(Driver) error) error {
	session, err := d.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(&mongoTxDriver{d: d, sc: sc})
	})
	return err
}

// Ping checks the primary.
func (d *MongoDriver) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (d *MongoDriver) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}

type mongoTxDriver struct {
	d  *MongoDriver
	sc mongo.SessionContext
}

func (t *mongoTxDriver) Query(ctx context.Context, stmt string, params map[string]any) ([]map[string]any, error) {
	return t.d.find(t.sc, stmt, params)
}

func (t *mongoTxDriver) Tx(ctx context.Context, isolation string, fn func(Driver) error) error {
	return fmt.Errorf("datasource: nested transactions are not supported")
}

func (t *mongoTxDriver) Ping(ctx context.Context) error { return nil }
func (t *mongoTxDriver) Close() error                   { return nil }

func (d *MongoDriver) find(ctx context.Context, stmt string, params map[string]any) ([]map[string]any, error) {
	spec, err := parseMongoSpec(stmt, params)
	if err != nil {
		return nil, err
	}

	opts := options.Find()
	if spec.Limit > 0 {
		opts.SetLimit(spec.Limit)
	}
	if len(spec.Sort) > 0 {
		sort := bson.D{}
		for field, dir := range spec.Sort {
			sort = append(sort, bson.E{Key: field, Value: dir})
		}
		opts.SetSort(sort)
	}
	if len(spec.Projection) > 0 {
		opts.SetProjection(bson.M(spec.Projection))
	}

	filter := bson.M(spec.Filter)
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := d.db.Collection(spec.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("finding in %q: %w", spec.Collection, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding documents: %w", err)
	}

	rows := make([]map[string]any, len(docs))
	for i, doc := range docs {
		rows[i] = normalizeBSONValue(doc).(map[string]any)
	}
	return rows, nil
}

// parseMongoSpec decodes the query text and substitutes :name
// placeholder strings with their parameter values.
func parseMongoSpec(stmt string, params map[string]any) (*mongoSpec, error) {
	var spec mongoSpec
	if err := json.Unmarshal([]byte(stmt), &spec); err != nil {
		return nil, fmt.Errorf("datasource: mongodb query is not a valid JSON spec: %w", err)
	}
	if spec.Collection == "" {
		return nil, fmt.Errorf("datasource: mongodb query spec needs a collection")
	}
	substituted, err := substitutePlaceholders(spec.Filter, params)
	if err != nil {
		return nil, err
	}
	if substituted != nil {
		spec.Filter = substituted.(map[string]any)
	}
	return &spec, nil
}

func substitutePlaceholders(v any, params map[string]any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			sub, err := substitutePlaceholders(item, params)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			sub, err := substitutePlaceholders(item, params)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	case string:
		if strings.HasPrefix(t, ":") && len(t) > 1 && !strings.HasPrefix(t, "::") {
			name := t[1:]
			value, ok := params[name]
			if !ok {
				return nil, fmt.Errorf("datasource: no value for placeholder :%s", name)
			}
			return value, nil
		}
		return t, nil
	case nil:
		return nil, nil
	default:
		return v, nil
	}
}

// normalizeBSONValue maps BSON types onto the binding value model.
func normalizeBSONValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalizeBSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalizeBSONValue(item)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeBSONValue(item)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time()
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
