package database

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"activity-logs/internal/config"
	"activity-logs/internal/models"
	"activity-logs/internal/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoArtifactStore keeps one document per date in a MongoDB collection
type MongoArtifactStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// artifactDocument is the stored form of a generated log
type artifactDocument struct {
	Date      string    `bson:"_id"`
	Payload   []byte    `bson:"payload"`
	Size      int       `bson:"size"`
	WrittenAt time.Time `bson:"writtenAt"`
}

// NewMongoArtifactStore connects to MongoDB and prepares the artifact collection
func NewMongoArtifactStore(cfg config.MongoDBConfig) (*MongoArtifactStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uri, logURI := buildMongoURI(cfg)
	log.Printf("Attempting to connect to MongoDB at %s", logURI)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB at %s: %w", logURI, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB at %s: %w", logURI, err)
	}

	collection := client.Database(cfg.Database).Collection(cfg.Collection)

	// Retention scans by write time
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "writtenAt", Value: 1}},
	})
	if err != nil {
		log.Printf("WARNING: MongoDB index creation: %v", err)
	}

	log.Printf("Successfully connected to MongoDB (database: %s, collection: %s)", cfg.Database, cfg.Collection)
	return &MongoArtifactStore{client: client, collection: collection}, nil
}

// buildMongoURI returns the connection URI and a variant safe to log
func buildMongoURI(cfg config.MongoDBConfig) (uri string, logURI string) {
	if cfg.URI != "" {
		parsed, err := url.Parse(cfg.URI)
		if err != nil {
			return cfg.URI, "<unparseable MONGODB_URI>"
		}
		return cfg.URI, parsed.Redacted()
	}

	authSource := cfg.AuthSource
	if authSource == "" {
		authSource = "admin"
	}

	if cfg.Username != "" && cfg.Password != "" {
		userInfo := url.UserPassword(cfg.Username, cfg.Password)
		uri = fmt.Sprintf("mongodb://%s@%s:%s/%s?authSource=%s",
			userInfo.String(), cfg.Host, cfg.Port, cfg.Database, url.QueryEscape(authSource))
		logURI = fmt.Sprintf("mongodb://%s:***@%s:%s/%s?authSource=%s",
			url.User(cfg.Username).String(), cfg.Host, cfg.Port, cfg.Database, url.QueryEscape(authSource))
		return uri, logURI
	}

	uri = fmt.Sprintf("mongodb://%s:%s/%s", cfg.Host, cfg.Port, cfg.Database)
	return uri, uri
}

// Write replaces the document for date in a single ReplaceOne upsert
func (s *MongoArtifactStore) Write(ctx context.Context, date string, payload []byte) error {
	doc := artifactDocument{
		Date:      date,
		Payload:   payload,
		Size:      len(payload),
		WrittenAt: time.Now().UTC(),
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": date}, doc, opts); err != nil {
		return fmt.Errorf("failed to store log in MongoDB: %w", err)
	}
	return nil
}

func (s *MongoArtifactStore) Read(ctx context.Context, date string) (*models.Artifact, error) {
	var doc artifactDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": date}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, services.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to read log from MongoDB: %w", err)
	}
	return &models.Artifact{Date: doc.Date, Payload: doc.Payload, WrittenAt: doc.WrittenAt}, nil
}

func (s *MongoArtifactStore) Delete(ctx context.Context, date string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": date}); err != nil {
		return fmt.Errorf("failed to delete log from MongoDB: %w", err)
	}
	return nil
}

func (s *MongoArtifactStore) List(ctx context.Context) ([]models.Artifact, error) {
	opts := options.Find().
		SetProjection(bson.M{"payload": 0}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs in MongoDB: %w", err)
	}
	defer cursor.Close(ctx)

	var list []models.Artifact
	for cursor.Next(ctx) {
		var doc artifactDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode log document: %w", err)
		}
		list = append(list, models.Artifact{Date: doc.Date, WrittenAt: doc.WrittenAt})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate log documents: %w", err)
	}
	return list, nil
}

// Close disconnects from MongoDB
func (s *MongoArtifactStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
