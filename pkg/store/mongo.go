package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/incidentlab/topograph/pkg/errors"
	"github.com/incidentlab/topograph/pkg/incident"
)

// Defaults for [MongoConfig].
const (
	DefaultMongoDatabase   = "aiops"
	DefaultMongoCollection = "incident_snapshots"
	defaultMongoTimeout    = 10 * time.Second
)

// MongoConfig configures [NewMongoSource].
type MongoConfig struct {
	URI        string
	Database   string
	Collection string

	// Timeout bounds connecting and each query. Zero uses 10s.
	Timeout time.Duration
}

// MongoSource reads snapshot documents of the form
//
//	{"_id": <snapshot id>, "content": {<snapshot content>}}
//
// The snapshot id is matched as a string and, when it is numeric, as an
// integer too.
type MongoSource struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

// snapshotDocument is the stored shape of a snapshot.
type snapshotDocument struct {
	ID      any      `bson:"_id"`
	Content bson.Raw `bson:"content"`
}

// NewMongoSource connects to MongoDB and verifies the connection.
func NewMongoSource(ctx context.Context, cfg MongoConfig) (*MongoSource, error) {
	if cfg.URI == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "mongo uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultMongoDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultMongoCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultMongoTimeout
	}

	opts := options.Client().ApplyURI(cfg.URI).SetConnectTimeout(cfg.Timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to mongo")
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping mongo")
	}
	return &MongoSource{
		client:  client,
		coll:    client.Database(cfg.Database).Collection(cfg.Collection),
		timeout: cfg.Timeout,
	}, nil
}

// Open reads the snapshot document with the given id.
func (s *MongoSource) Open(ctx context.Context, id string) (*incident.Content, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc snapshotDocument
	err := s.coll.FindOne(ctx, idFilter(id)).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "snapshot %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "find snapshot %s", id)
	}
	c, err := contentFromRaw(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", id, err)
	}
	return c, nil
}

// Put stores c under id, replacing any existing document.
func (s *MongoSource) Put(ctx context.Context, id string, c *incident.Content) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := rawFromContent(c)
	if err != nil {
		return err
	}
	_, err = s.coll.ReplaceOne(ctx,
		bson.M{"_id": id},
		bson.M{"_id": id, "content": raw},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "store snapshot %s", id)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoSource) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func idFilter(id string) bson.M {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, n}}}
	}
	return bson.M{"_id": id}
}

// contentFromRaw converts a BSON content document through relaxed extended
// JSON, which renders numbers as plain JSON numbers, into snapshot content.
func contentFromRaw(raw bson.Raw) (*incident.Content, error) {
	if len(raw) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "document has no content")
	}
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "convert content")
	}
	var c incident.Content
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode content")
	}
	return &c, nil
}

func rawFromContent(c *incident.Content) (bson.Raw, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode content")
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "convert content")
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "marshal content")
	}
	return raw, nil
}
