package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAuthService_RegisterAndAuthenticate(t *testing.T) {
	users := newMemUserStore()
	svc := newTestAuthService(users)
	ctx := context.Background()

	u, err := svc.Register(ctx, "Ana", "ana@x.com", "pw12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == 0 || !u.IsActive {
		t.Fatalf("expected an active user with an id, got %+v", u)
	}
	if string(u.PasswordHash) == "pw12345" {
		t.Fatalf("password stored in clear text")
	}

	res, err := svc.Authenticate(ctx, "ana@x.com", "pw12345", "192.0.2.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Token == "" || res.User.Email != "ana@x.com" {
		t.Fatalf("unexpected login result %+v", res)
	}

	claims, err := svc.ValidateToken(res.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.UserID != u.ID || claims.Email != "ana@x.com" || claims.Name != "Ana" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestAuthService_Authenticate_UniformFailure(t *testing.T) {
	users := newMemUserStore()
	svc := newTestAuthService(users)
	ctx := context.Background()

	u, err := svc.Register(ctx, "Bo", "bo@x.com", "secret1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "bo@x.com", "wrong-password", "192.0.2.1"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("wrong password: expected errInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@x.com", "secret1", "192.0.2.1"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("unknown email: expected errInvalidCredentials, got %v", err)
	}

	users.deactivate(u.ID)
	if _, err := svc.Authenticate(ctx, "bo@x.com", "secret1", "192.0.2.1"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("inactive user: expected errInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	svc := newTestAuthService(newMemUserStore())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Ana", "ana@x.com", "pw12345"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Register(ctx, "Other Ana", "ana@x.com", "pw67890"); !errors.Is(err, errDuplicateEmail) {
		t.Fatalf("expected errDuplicateEmail, got %v", err)
	}
}

func TestAuthService_Register_ConcurrentSameEmail(t *testing.T) {
	svc := newTestAuthService(newMemUserStore())
	ctx := context.Background()

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, "Race", "race@x.com", "pw12345")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, errDuplicateEmail):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", n-1, successes, conflicts)
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	svc := newTestAuthService(newMemUserStore())
	ctx := context.Background()

	u, _ := svc.Register(ctx, "Ana", "ana@x.com", "pw12345")

	if _, err := svc.ChangePassword(ctx, u.ID, "not-it", "newpass1"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected errInvalidCredentials, got %v", err)
	}
	if _, err := svc.ChangePassword(ctx, 999, "pw12345", "newpass1"); !errors.Is(err, errRecordNotFound) {
		t.Fatalf("expected errRecordNotFound for unknown user, got %v", err)
	}

	changed, err := svc.ChangePassword(ctx, u.ID, "pw12345", "newpass1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed.UpdatedAt == nil {
		t.Fatalf("expected updated timestamp to be set")
	}

	if _, err := svc.Authenticate(ctx, "ana@x.com", "pw12345", "192.0.2.1"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ana@x.com", "newpass1", "192.0.2.1"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestAuthService_Profile_InactiveUserIsNotFound(t *testing.T) {
	users := newMemUserStore()
	svc := newTestAuthService(users)
	ctx := context.Background()

	u, _ := svc.Register(ctx, "Ana", "ana@x.com", "pw12345")
	got, err := svc.Profile(ctx, u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Email != "ana@x.com" {
		t.Fatalf("unexpected profile %+v", got)
	}

	users.deactivate(u.ID)
	if _, err := svc.Profile(ctx, u.ID); !errors.Is(err, errRecordNotFound) {
		t.Fatalf("expected errRecordNotFound, got %v", err)
	}
}

func TestAuthService_StoreFailureIsNotInvalidCredentials(t *testing.T) {
	users := newMemUserStore()
	svc := newTestAuthService(users)
	users.err = errStoreDown

	_, err := svc.Authenticate(context.Background(), "ana@x.com", "pw12345", "192.0.2.1")
	if err == nil || errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected an internal error, got %v", err)
	}
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestAuthService_LoginThrottle(t *testing.T) {
	svc := newTestAuthService(newMemUserStore())
	svc.throttle = newLoginThrottle(2, time.Minute)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Ana", "ana@x.com", "pw12345"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Authenticate(ctx, "ana@x.com", "bad-guess", "192.0.2.1"); !errors.Is(err, errInvalidCredentials) {
			t.Fatalf("attempt %d: expected errInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := svc.Authenticate(ctx, "ana@x.com", "pw12345", "192.0.2.1"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected the throttled address to be rejected even with the right password, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ana@x.com", "pw12345", "198.51.100.7"); err != nil {
		t.Fatalf("guesses from another address must not lock the owner out, got %v", err)
	}
}
