package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"swarm-backend/internal/models"
	"swarm-backend/internal/repository/memory"
)

func TestUserServiceCreateAndValidate(t *testing.T) {
	store := memory.New()
	svc := NewUserService(store.Users(), "test-secret")
	ctx := context.Background()

	user, token, err := svc.CreateUser(ctx, "  Ada ")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Name != "Ada" || user.AvatarSeed == "" || user.XP != 0 || user.InSwarm() {
		t.Errorf("user = %+v", user)
	}

	userID, err := svc.ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if userID != user.ID {
		t.Errorf("token user = %s, want %s", userID, user.ID)
	}

	other := NewUserService(store.Users(), "other-secret")
	if _, err := other.ValidateJWT(token); err == nil {
		t.Error("token accepted with the wrong secret")
	}
	if _, err := svc.ValidateJWT("not-a-token"); err == nil {
		t.Error("garbage token accepted")
	}

	if _, _, err := svc.CreateUser(ctx, strings.Repeat("n", 51)); !errors.Is(err, models.ErrInvalidName) {
		t.Errorf("long name err = %v", err)
	}
}

func TestUserServicePushToken(t *testing.T) {
	store := memory.New()
	svc := NewUserService(store.Users(), "test-secret")
	ctx := context.Background()

	user, _, err := svc.CreateUser(ctx, "Ada")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.UpdatePushToken(ctx, user.ID, " abc "); err != nil {
		t.Fatalf("UpdatePushToken: %v", err)
	}
	got, _ := svc.GetUser(ctx, user.ID)
	if got.PushToken == nil || *got.PushToken != "abc" {
		t.Errorf("push token = %v", got.PushToken)
	}

	if err := svc.UpdatePushToken(ctx, user.ID, ""); err != nil {
		t.Fatalf("UpdatePushToken: %v", err)
	}
	got, _ = svc.GetUser(ctx, user.ID)
	if got.PushToken != nil {
		t.Errorf("push token not cleared: %v", *got.PushToken)
	}

	if err := svc.UpdatePushToken(ctx, "missing", "abc"); !errors.Is(err, models.ErrUserNotFound) {
		t.Errorf("missing user err = %v", err)
	}
}
