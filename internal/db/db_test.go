package db

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/zulandar/masquerade/internal/models"
)

func TestAppendExchangeUpdate_Shape(t *testing.T) {
	update := appendExchangeUpdate("hello", "greetings, mortal")

	push, ok := update["$push"].(bson.M)
	if !ok {
		t.Fatalf("update has no $push: %v", update)
	}
	hist, ok := push["history"].(bson.M)
	if !ok {
		t.Fatalf("$push has no history: %v", push)
	}

	each, ok := hist["$each"].([]models.Fragment)
	if !ok {
		t.Fatalf("history has no $each: %v", hist)
	}
	if len(each) != 2 {
		t.Fatalf("len($each) = %d, want 2", len(each))
	}
	if each[0].Role != models.RoleUser || each[0].Text() != "hello" {
		t.Errorf("first entry = %s %q, want user %q", each[0].Role, each[0].Text(), "hello")
	}
	if each[1].Role != models.RoleModel || each[1].Text() != "greetings, mortal" {
		t.Errorf("second entry = %s %q, want model %q", each[1].Role, each[1].Text(), "greetings, mortal")
	}

	// The trailing-window trim rides on the same update, so an append can
	// never leave more than MaxHistoryEntries at rest.
	slice, ok := hist["$slice"].(int)
	if !ok {
		t.Fatalf("history has no int $slice: %v", hist)
	}
	if slice != -models.MaxHistoryEntries {
		t.Errorf("$slice = %d, want %d", slice, -models.MaxHistoryEntries)
	}
}

func TestUnconnectedManagerFailsUnavailable(t *testing.T) {
	m := New("", "persona_bot")
	ctx := context.Background()

	if m.Available(ctx) {
		t.Error("Available() = true for manager with no URI")
	}

	if _, err := m.GetSession(ctx, "t1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("GetSession error = %v, want ErrUnavailable", err)
	}
	if err := m.CreateSession(ctx, &models.Session{ID: "t1"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("CreateSession error = %v, want ErrUnavailable", err)
	}
	if err := m.AppendExchange(ctx, "t1", "u", "m"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("AppendExchange error = %v, want ErrUnavailable", err)
	}
	if _, err := m.DeleteSession(ctx, "t1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("DeleteSession error = %v, want ErrUnavailable", err)
	}
	if _, err := m.CountByOwner(ctx, "u1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("CountByOwner error = %v, want ErrUnavailable", err)
	}
	if _, err := m.CountActive(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("CountActive error = %v, want ErrUnavailable", err)
	}
	if _, err := m.GetTimer(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("GetTimer error = %v, want ErrUnavailable", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	m := New("mongodb://localhost:27017/", "persona_bot")
	if err := m.Close(context.Background()); err != nil {
		t.Errorf("Close on unconnected manager: %v", err)
	}
	if err := m.Close(context.Background()); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
