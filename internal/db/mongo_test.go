package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectMongo_BadURI(t *testing.T) {
	client, err := ConnectMongo(context.Background(), "mongodb://bad:uri")
	if err == nil {
		t.Error("expected error for bad URI, got nil")
	}
	if client != nil {
		t.Error("expected nil client on error")
	}
}

func TestMongoStore_NilCollection(t *testing.T) {
	s := &MongoStore{Collection: nil}
	ctx := context.Background()

	_, err := s.Get(ctx, "vehicles")
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, s.Set(ctx, "vehicles", []byte("[]")), ErrStorage)
	assert.ErrorIs(t, s.Remove(ctx, "vehicles"), ErrStorage)
	assert.NoError(t, s.Close(ctx))
}

// Integration test (requires running MongoDB)
func TestMongoStore_Integration(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client, err := ConnectMongo(ctx, uri)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	defer client.Disconnect(context.Background())

	coll := client.Database("test_garage").Collection("kv")
	require.NoError(t, coll.Drop(ctx))

	exerciseStore(t, &MongoStore{Collection: coll})
}
