package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/zulandar/masquerade/internal/models"
)

// bloodTimerID keys the single blood-timer document.
const bloodTimerID = "blood_timer"

// GetTimer retrieves the blood-timer document, or (nil, nil) if none is set.
func (m *Manager) GetTimer(ctx context.Context) (*models.BloodTimer, error) {
	if err := m.ensureConnected(ctx); err != nil {
		return nil, err
	}

	var t models.BloodTimer
	err := m.collection(timersCollection).FindOne(ctx, bson.M{"_id": bloodTimerID}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db: get timer: %w", err)
	}
	return &t, nil
}

// SaveTimer upserts the blood-timer document.
func (m *Manager) SaveTimer(ctx context.Context, t *models.BloodTimer) error {
	if err := m.ensureConnected(ctx); err != nil {
		return err
	}

	t.ID = bloodTimerID
	_, err := m.collection(timersCollection).ReplaceOne(ctx,
		bson.M{"_id": bloodTimerID}, t, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("db: save timer: %w", err)
	}
	return nil
}
