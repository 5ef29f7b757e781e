package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// emailIndexedCollections are the account collections whose email field
// must be unique. Connections reference accounts by email, so a
// duplicate would make every email-keyed lookup ambiguous.
var emailIndexedCollections = []string{"users", "caregivers"}

// Open connects to MongoDB and verifies the connection.
func Open(uri, authSource, dbName string) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().ApplyURI(uri)
	if authSource != "" && opts.Auth != nil {
		opts.Auth.AuthSource = authSource
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	// Ping with timeout so a misconfigured URI fails at startup, not on the
	// first request.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	db := client.Database(dbName)
	if err := ensureIndexes(db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return client, db, nil
}

// ensureIndexes builds the unique email indexes at startup. The
// duplicate-email checks in the repositories only fire when these
// indexes exist; CreateOne is a no-op when they already do.
func ensureIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, name := range emailIndexedCollections {
		if _, err := db.Collection(name).Indexes().CreateOne(ctx, uniqueEmailIndex()); err != nil {
			return err
		}
	}
	return nil
}

func uniqueEmailIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
}

// Close disconnects the client, bounded so shutdown never hangs on a
// dead server.
func Close(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}
