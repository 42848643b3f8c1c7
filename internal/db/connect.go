// Package db is the persistence gateway: MongoDB connection lifecycle,
// reconnect-on-failure, index management, and the session store operations
// built on top.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrUnavailable means the database connection is down and one reconnect
// attempt did not bring it back.
var ErrUnavailable = errors.New("database unavailable")

const (
	// serverSelectionTimeout bounds how long a stalled cluster can block an
	// operation before it fails with ErrUnavailable.
	serverSelectionTimeout = 5 * time.Second
	maxPoolSize            = 100
	minPoolSize            = 10

	sessionsCollection = "persona_threads"
	timersCollection   = "timers"
)

// Manager owns the MongoDB client and collections. All reads and writes of
// session documents go through it.
type Manager struct {
	uri      string
	database string

	mu       sync.Mutex
	client   *mongo.Client
	sessions *mongo.Collection
	timers   *mongo.Collection
	indexed  bool
}

// New creates an unconnected Manager. Call Connect before use; store
// operations on a disconnected Manager fail with ErrUnavailable.
func New(uri, database string) *Manager {
	return &Manager{uri: uri, database: database}
}

// Connect dials MongoDB, verifies the connection with a ping, and creates
// indexes on the first successful connect. Safe to call again after a failure;
// concurrent reconnect attempts may race and are idempotent.
func (m *Manager) Connect(ctx context.Context) error {
	if m.uri == "" {
		return fmt.Errorf("db: connect: no URI configured: %w", ErrUnavailable)
	}

	client, err := mongo.Connect(options.Client().
		ApplyURI(m.uri).
		SetServerSelectionTimeout(serverSelectionTimeout).
		SetMaxPoolSize(maxPoolSize).
		SetMinPoolSize(minPoolSize).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)))
	if err != nil {
		return fmt.Errorf("db: connect: %v: %w", err, ErrUnavailable)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return fmt.Errorf("db: ping: %v: %w", err, ErrUnavailable)
	}

	dbase := client.Database(m.database)

	m.mu.Lock()
	old := m.client
	m.client = client
	m.sessions = dbase.Collection(sessionsCollection)
	m.timers = dbase.Collection(timersCollection)
	needIndexes := !m.indexed
	m.mu.Unlock()

	if old != nil {
		old.Disconnect(context.Background())
	}

	if needIndexes {
		m.createIndexes(ctx)
	}

	log.Printf("db: connected to %s", m.database)
	return nil
}

// createIndexes builds the query indexes the store relies on. Failure is
// logged, not fatal: every index is an optimization over a collection scan.
func (m *Manager) createIndexes(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.mu.Unlock()

	_, err := sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_by", Value: 1}}},
		{Keys: bson.D{{Key: "guild_id", Value: 1}}},
		{Keys: bson.D{{Key: "channel_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		log.Printf("db: create indexes: %v", err)
		return
	}

	m.mu.Lock()
	m.indexed = true
	m.mu.Unlock()
}

// Available reports whether the database answers a ping, attempting one
// reconnect if it does not.
func (m *Manager) Available(ctx context.Context) bool {
	return m.ensureConnected(ctx) == nil
}

// ensureConnected pings the server and, if that fails or no client exists
// yet, makes exactly one reconnect attempt before giving up.
func (m *Manager) ensureConnected(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client != nil {
		if err := client.Ping(ctx, nil); err == nil {
			return nil
		}
		log.Printf("db: connection lost, attempting reconnect")
	}

	if err := m.Connect(ctx); err != nil {
		return err
	}
	return nil
}

// collection returns the named collection under the lock.
func (m *Manager) collection(name string) *mongo.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch name {
	case timersCollection:
		return m.timers
	default:
		return m.sessions
	}
}

// Close disconnects the client.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.sessions = nil
	m.timers = nil
	m.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("db: close: %w", err)
	}
	log.Printf("db: closed connection")
	return nil
}
