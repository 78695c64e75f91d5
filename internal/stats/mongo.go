package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oicur0t/logstat/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoOptions configures the MongoDB snapshot mirror
type MongoOptions struct {
	URI                string
	Database           string
	Collection         string
	CertificateKeyFile string
	MaxPoolSize        int
	Timeout            time.Duration
	// Source identifies the scanned log; it is the document _id
	Source string
}

// MongoSink keeps one document per log source holding the latest snapshot.
// Each write replaces the document, so no history builds up.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	source     string
	timeout    time.Duration
	logger     *zap.Logger
}

type serverDocument struct {
	Server   string `bson:"server"`
	Errors   int    `bson:"errors"`
	Warnings int    `bson:"warnings"`
}

type snapshotDocument struct {
	ID           string           `bson:"_id"`
	Servers      []serverDocument `bson:"servers"`
	TakenAt      time.Time        `bson:"taken_at"`
	LinesRead    int              `bson:"lines_read"`
	LinesMatched int              `bson:"lines_matched"`
	LinesCounted int              `bson:"lines_counted"`
}

// NewMongoSink connects to MongoDB and verifies the connection
func NewMongoSink(ctx context.Context, opts MongoOptions, logger *zap.Logger) (*MongoSink, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	uri := opts.URI
	clientOpts := options.Client().ApplyURI(uri)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(uint64(opts.MaxPoolSize))
	}

	// X.509 authentication when a client certificate is configured
	if opts.CertificateKeyFile != "" {
		if strings.Contains(uri, "?") {
			uri = uri + "&tlsCertificateKeyFile=" + opts.CertificateKeyFile
		} else {
			uri = uri + "?tlsCertificateKeyFile=" + opts.CertificateKeyFile
		}
		clientOpts.SetAuth(options.Credential{
			AuthMechanism: "MONGODB-X509",
		})
		clientOpts.ApplyURI(uri)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB",
		zap.String("database", opts.Database),
		zap.String("collection", opts.Collection))

	return &MongoSink{
		client:     client,
		collection: client.Database(opts.Database).Collection(opts.Collection),
		source:     opts.Source,
		timeout:    opts.Timeout,
		logger:     logger,
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

// Write upserts the snapshot document for this sink's source
func (s *MongoSink) Write(ctx context.Context, snapshot models.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := newSnapshotDocument(s.source, snapshot)
	_, err := s.collection.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: doc.ID}},
		doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return &PersistError{Sink: s.Name(), Target: s.collection.Name(), Err: err}
	}

	s.logger.Debug("Snapshot mirrored",
		zap.String("collection", s.collection.Name()),
		zap.Int("servers", len(doc.Servers)))
	return nil
}

// Close closes the MongoDB connection
func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// newSnapshotDocument flattens stats into a sorted array so server names
// never have to be valid field names.
func newSnapshotDocument(source string, snapshot models.Snapshot) snapshotDocument {
	servers := make([]serverDocument, 0, len(snapshot.Stats))
	for _, name := range snapshot.Stats.Servers() {
		c := snapshot.Stats[name]
		servers = append(servers, serverDocument{
			Server:   name,
			Errors:   c.Errors,
			Warnings: c.Warnings,
		})
	}

	return snapshotDocument{
		ID:           source,
		Servers:      servers,
		TakenAt:      snapshot.TakenAt,
		LinesRead:    snapshot.LinesRead,
		LinesMatched: snapshot.LinesMatched,
		LinesCounted: snapshot.LinesCounted,
	}
}
