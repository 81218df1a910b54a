// Package mongoremote is a mirror.Remote backed by MongoDB collections.
package mongoremote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/mirror"
	"github.com/roomchat/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Remote struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ mirror.Remote = (*Remote)(nil)

// Connect dials uri and pings the primary, retrying up to retries times.
func Connect(ctx context.Context, uri, dbName string, retries int, interval time.Duration) (*Remote, error) {
	opts := options.Client().ApplyURI(uri)
	var err error
	for i := 0; i <= retries; i++ {
		var client *mongo.Client
		client, err = mongo.Connect(ctx, opts)
		if err == nil {
			if err = client.Ping(ctx, readpref.Primary()); err == nil {
				return &Remote{client: client, db: client.Database(dbName)}, nil
			}
			_ = client.Disconnect(ctx)
		}
		logger.Errorf("mongo mirror attempt %d/%d failed: %v", i+1, retries+1, err)
		if i < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return nil, fmt.Errorf("mongoremote.Connect: %w", err)
}

func (r *Remote) coll(table string) (*mongo.Collection, error) {
	if err := mirror.ValidTable(table); err != nil {
		return nil, err
	}
	return r.db.Collection(table), nil
}

func (r *Remote) Insert(ctx context.Context, table string, row mirror.Row) (string, error) {
	defer logger.DeferLogDuration("mongoremote.Insert", time.Now())()
	c, err := r.coll(table)
	if err != nil {
		return "", err
	}
	doc := bson.M{}
	for k, v := range row {
		if k != mirror.FieldID {
			doc[k] = v
		}
	}

	if v, ok := row[mirror.FieldID]; ok && v != nil {
		id := fmt.Sprint(v)
		doc[mirror.FieldID] = v
		_, err := c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$setOnInsert": doc}, options.Update().SetUpsert(true))
		if err != nil {
			return "", fmt.Errorf("mongoremote.Insert %s: %w", table, err)
		}
		return id, nil
	}

	res, err := c.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("mongoremote.Insert %s: %w", table, err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

// filterByID matches ObjectID keys as well as the explicit string keys of users and rooms.
func filterByID(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"_id": id}
}

func (r *Remote) Update(ctx context.Context, table, id string, fields mirror.Row) error {
	defer logger.DeferLogDuration("mongoremote.Update", time.Now())()
	c, err := r.coll(table)
	if err != nil {
		return err
	}
	res, err := c.UpdateOne(ctx, filterByID(id), bson.M{"$set": bson.M(fields)})
	if err != nil {
		return fmt.Errorf("mongoremote.Update %s: %w", table, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mongoremote.Update %s/%s: %w", table, id, model.ErrNotFound)
	}
	return nil
}

func (r *Remote) Select(ctx context.Context, table string) ([]mirror.Record, error) {
	defer logger.DeferLogDuration("mongoremote.Select", time.Now())()
	c, err := r.coll(table)
	if err != nil {
		return nil, err
	}
	cur, err := c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongoremote.Select %s: %w", table, err)
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongoremote.Select %s decode: %w", table, err)
	}
	out := make([]mirror.Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toRecord(doc))
	}
	return out, nil
}

func toRecord(doc bson.M) mirror.Record {
	rec := mirror.Record{Row: mirror.Row{}}
	switch id := doc["_id"].(type) {
	case primitive.ObjectID:
		rec.ID = id.Hex()
	default:
		rec.ID = fmt.Sprint(id)
	}
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		rec.Row[k] = normalize(v)
	}
	return rec
}

// normalize turns driver container types into plain Go values.
func normalize(v any) any {
	switch x := v.(type) {
	case primitive.A:
		out := make([]any, len(x))
		for i := range x {
			out[i] = normalize(x[i])
		}
		return out
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.M:
		return map[string]any(x)
	default:
		return v
	}
}

func (r *Remote) Close(ctx context.Context) error {
	if err := r.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("mongoremote.Close: %w", err)
	}
	return nil
}
