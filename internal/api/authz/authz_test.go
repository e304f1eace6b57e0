package authz

import (
	"context"
	"errors"
	"testing"
)

func TestUserFromContext(t *testing.T) {
	if got := UserFromContext(nil); got != nil {
		t.Errorf("expected nil for nil context, got %+v", got)
	}
	if got := UserFromContext(context.Background()); got != nil {
		t.Errorf("expected nil for empty context, got %+v", got)
	}

	user := &AuthUser{ID: 42, MembershipTier: "premium"}
	ctx := ContextWithUser(context.Background(), user)
	got := UserFromContext(ctx)
	if got == nil || got.ID != 42 || got.MembershipTier != "premium" {
		t.Errorf("expected stored user back, got %+v", got)
	}
}

func TestRequireUser(t *testing.T) {
	if _, err := RequireUser(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}

	ctx := ContextWithUser(context.Background(), &AuthUser{ID: 7})
	user, err := RequireUser(ctx)
	if err != nil || user.ID != 7 {
		t.Errorf("expected user 7, got %+v, %v", user, err)
	}
}

func TestRequireAdmin(t *testing.T) {
	if err := RequireAdmin(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}

	member := ContextWithUser(context.Background(), &AuthUser{ID: 7})
	if err := RequireAdmin(member); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	admin := ContextWithUser(context.Background(), &AuthUser{ID: 8, IsAdmin: true})
	if err := RequireAdmin(admin); err != nil {
		t.Errorf("expected admin allowed, got %v", err)
	}
}

func TestIsAdmin(t *testing.T) {
	if IsAdmin(nil) {
		t.Error("nil user should not be admin")
	}
	if IsAdmin(&AuthUser{ID: 1}) {
		t.Error("member should not be admin")
	}
	if !IsAdmin(&AuthUser{ID: 1, IsAdmin: true}) {
		t.Error("admin flag should report true")
	}
}
