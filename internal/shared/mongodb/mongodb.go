package mongodb

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoClient wraps the MongoDB client
type MongoClient struct {
	client   *mongo.Client
	database *mongo.Database
}

// validateMongoURI rejects URIs that are empty, malformed, or not mongo schemes
func validateMongoURI(uri string) error {
	if uri == "" {
		return errors.New("mongodb URI cannot be empty")
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return errors.New("mongodb URI is malformed")
	}
	if parsed.Scheme != "mongodb" && parsed.Scheme != "mongodb+srv" {
		return errors.New("mongodb URI must use mongodb:// or mongodb+srv:// scheme")
	}
	if parsed.Host == "" {
		return errors.New("mongodb URI is missing a host")
	}
	if strings.Contains(uri, " ") {
		return errors.New("mongodb URI contains whitespace")
	}
	return nil
}

// NewMongoClient creates a new MongoDB client
func NewMongoClient(uri, database string) (*MongoClient, error) {
	if err := validateMongoURI(uri); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the database
	if err = client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return &MongoClient{
		client:   client,
		database: client.Database(database),
	}, nil
}

// Collection returns a collection handle
func (c *MongoClient) Collection(name string) *mongo.Collection {
	return c.database.Collection(name)
}

// CreateIndexes creates the given indexes on a collection
func (c *MongoClient) CreateIndexes(ctx context.Context, collection string, indexes []mongo.IndexModel) error {
	_, err := c.Collection(collection).Indexes().CreateMany(ctx, indexes)
	return err
}

// Ping verifies the connection is still alive
func (c *MongoClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// Disconnect closes the MongoDB connection
func (c *MongoClient) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Database returns the database handle
func (c *MongoClient) Database() *mongo.Database {
	return c.database
}
