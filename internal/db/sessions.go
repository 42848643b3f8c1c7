package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/zulandar/masquerade/internal/models"
)

// GetSession retrieves a session document by thread ID. Returns (nil, nil)
// when no session exists for the thread.
func (m *Manager) GetSession(ctx context.Context, threadID string) (*models.Session, error) {
	if err := m.ensureConnected(ctx); err != nil {
		return nil, err
	}

	var sess models.Session
	err := m.collection(sessionsCollection).FindOne(ctx, bson.M{"_id": threadID}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db: get session %s: %w", threadID, err)
	}
	return &sess, nil
}

// CreateSession inserts a new session document. A duplicate-key conflict is
// treated as success: the thread already has a session and creation is
// idempotent.
func (m *Manager) CreateSession(ctx context.Context, sess *models.Session) error {
	if err := m.ensureConnected(ctx); err != nil {
		return err
	}

	_, err := m.collection(sessionsCollection).InsertOne(ctx, sess)
	if mongo.IsDuplicateKeyError(err) {
		log.Printf("db: session %s already exists", sess.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("db: create session %s: %w", sess.ID, err)
	}
	return nil
}

// appendExchangeUpdate builds the single update document that appends one
// user/model exchange and trims history to the most recent entries. Doing
// both in one $push keeps the append atomic: there is no read-modify-write
// window for concurrent appends to interleave in.
func appendExchangeUpdate(userMsg, modelMsg string) bson.M {
	return bson.M{
		"$push": bson.M{
			"history": bson.M{
				"$each": []models.Fragment{
					models.NewFragment(models.RoleUser, userMsg),
					models.NewFragment(models.RoleModel, modelMsg),
				},
				"$slice": -models.MaxHistoryEntries,
			},
		},
	}
}

// AppendExchange atomically appends a user message and the model's reply to
// the session's history, keeping only the most recent 24 entries.
func (m *Manager) AppendExchange(ctx context.Context, threadID, userMsg, modelMsg string) error {
	if err := m.ensureConnected(ctx); err != nil {
		return err
	}

	res, err := m.collection(sessionsCollection).UpdateOne(ctx,
		bson.M{"_id": threadID},
		appendExchangeUpdate(userMsg, modelMsg))
	if err != nil {
		return fmt.Errorf("db: append exchange to %s: %w", threadID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("db: append exchange to %s: session not found", threadID)
	}
	return nil
}

// DeleteSession removes a session document. Returns whether a document was
// actually deleted.
func (m *Manager) DeleteSession(ctx context.Context, threadID string) (bool, error) {
	if err := m.ensureConnected(ctx); err != nil {
		return false, err
	}

	res, err := m.collection(sessionsCollection).DeleteOne(ctx, bson.M{"_id": threadID})
	if err != nil {
		return false, fmt.Errorf("db: delete session %s: %w", threadID, err)
	}
	return res.DeletedCount > 0, nil
}

// CountByOwner returns the number of sessions created by the given user.
// This is the authoritative count for the per-user session cap.
func (m *Manager) CountByOwner(ctx context.Context, userID string) (int, error) {
	if err := m.ensureConnected(ctx); err != nil {
		return 0, err
	}

	n, err := m.collection(sessionsCollection).CountDocuments(ctx, bson.M{"created_by": userID})
	if err != nil {
		return 0, fmt.Errorf("db: count sessions for %s: %w", userID, err)
	}
	return int(n), nil
}

// CountActive returns the total number of session documents.
func (m *Manager) CountActive(ctx context.Context) (int, error) {
	if err := m.ensureConnected(ctx); err != nil {
		return 0, err
	}

	n, err := m.collection(sessionsCollection).EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("db: count active sessions: %w", err)
	}
	return int(n), nil
}
