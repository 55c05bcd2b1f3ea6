package services

import (
	"context"
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateScaffold(t *testing.T) {
	svc := NewScaffoldService(newFakeScaffoldRepo())

	scaffold, err := svc.CreateScaffold(context.Background(), CreateScaffoldInput{
		DayOfWeek: "wednesday",
		TimeOfDay: "19:00",
		Courts:    2,
		OwnerID:   ownerID(55),
	})
	if err != nil {
		t.Fatalf("CreateScaffold() error = %v", err)
	}
	if scaffold.ID == 0 {
		t.Error("scaffold id not assigned")
	}
	if !scaffold.Active {
		t.Error("new scaffold must be active")
	}
}

func TestCreateScaffoldValidation(t *testing.T) {
	svc := NewScaffoldService(newFakeScaffoldRepo())
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateScaffoldInput
	}{
		{"bad day", CreateScaffoldInput{DayOfWeek: "someday", TimeOfDay: "19:00", Courts: 1}},
		{"bad time", CreateScaffoldInput{DayOfWeek: "monday", TimeOfDay: "25:00", Courts: 1}},
		{"zero courts", CreateScaffoldInput{DayOfWeek: "monday", TimeOfDay: "19:00", Courts: 0}},
		{"bad deadline", CreateScaffoldInput{
			DayOfWeek: "monday", TimeOfDay: "19:00", Courts: 1,
			AnnounceDeadline: strPtr("-1d"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateScaffold(ctx, tt.in); !errors.Is(err, ErrInvalidScaffold) {
				t.Errorf("CreateScaffold() error = %v, want ErrInvalidScaffold", err)
			}
		})
	}
}

func TestUpdateScaffoldPartial(t *testing.T) {
	svc := NewScaffoldService(newFakeScaffoldRepo())
	ctx := context.Background()

	created, err := svc.CreateScaffold(ctx, CreateScaffoldInput{
		DayOfWeek: "wednesday", TimeOfDay: "19:00", Courts: 2,
	})
	if err != nil {
		t.Fatalf("CreateScaffold() error = %v", err)
	}

	updated, err := svc.UpdateScaffold(ctx, created.ID, UpdateScaffoldInput{
		TimeOfDay: strPtr("20:30"),
	})
	if err != nil {
		t.Fatalf("UpdateScaffold() error = %v", err)
	}
	if updated.TimeOfDay != "20:30" {
		t.Errorf("time of day = %q, want 20:30", updated.TimeOfDay)
	}
	if updated.DayOfWeek != "wednesday" || updated.Courts != 2 {
		t.Errorf("untouched fields changed: %+v", updated)
	}

	// Невалидное значение отклоняется и ничего не меняет.
	if _, err := svc.UpdateScaffold(ctx, created.ID, UpdateScaffoldInput{Courts: intPtr(0)}); !errors.Is(err, ErrInvalidScaffold) {
		t.Errorf("UpdateScaffold(courts=0) error = %v, want ErrInvalidScaffold", err)
	}
	got, _ := svc.GetScaffold(ctx, created.ID)
	if got.Courts != 2 {
		t.Errorf("courts = %d after rejected update, want 2", got.Courts)
	}
}

func TestToggleActive(t *testing.T) {
	svc := NewScaffoldService(newFakeScaffoldRepo())
	ctx := context.Background()

	created, err := svc.CreateScaffold(ctx, CreateScaffoldInput{
		DayOfWeek: "friday", TimeOfDay: "18:00", Courts: 1,
	})
	if err != nil {
		t.Fatalf("CreateScaffold() error = %v", err)
	}

	active, err := svc.ToggleActive(ctx, created.ID)
	if err != nil {
		t.Fatalf("ToggleActive() error = %v", err)
	}
	if active {
		t.Error("first toggle of an active scaffold must deactivate it")
	}
	active, err = svc.ToggleActive(ctx, created.ID)
	if err != nil {
		t.Fatalf("ToggleActive() error = %v", err)
	}
	if !active {
		t.Error("second toggle must reactivate")
	}
}

func TestScaffoldSoftDeleteAndRestore(t *testing.T) {
	repo := newFakeScaffoldRepo()
	svc := NewScaffoldService(repo)
	ctx := context.Background()

	created, err := svc.CreateScaffold(ctx, CreateScaffoldInput{
		DayOfWeek: "sunday", TimeOfDay: "10:00", Courts: 1,
	})
	if err != nil {
		t.Fatalf("CreateScaffold() error = %v", err)
	}

	if err := svc.SoftDeleteScaffold(ctx, created.ID); err != nil {
		t.Fatalf("SoftDeleteScaffold() error = %v", err)
	}
	listed, _ := svc.ListScaffolds(ctx, false)
	if len(listed) != 0 {
		t.Errorf("soft-deleted scaffold still listed: %+v", listed)
	}
	listed, _ = svc.ListScaffolds(ctx, true)
	if len(listed) != 1 {
		t.Error("soft-deleted scaffold missing from the full listing")
	}
	active, _ := repo.ListActive(ctx)
	if len(active) != 0 {
		t.Error("soft-deleted scaffold still participates in spawning")
	}

	if err := svc.RestoreScaffold(ctx, created.ID); err != nil {
		t.Fatalf("RestoreScaffold() error = %v", err)
	}
	listed, _ = svc.ListScaffolds(ctx, false)
	if len(listed) != 1 {
		t.Error("restored scaffold not listed")
	}
}

func TestScaffoldNotFound(t *testing.T) {
	svc := NewScaffoldService(newFakeScaffoldRepo())
	ctx := context.Background()

	if _, err := svc.GetScaffold(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetScaffold(404) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.ToggleActive(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("ToggleActive(404) error = %v, want ErrNotFound", err)
	}
	if err := svc.TransferOwner(ctx, 404, 55); !errors.Is(err, ErrNotFound) {
		t.Errorf("TransferOwner(404) error = %v, want ErrNotFound", err)
	}
}
