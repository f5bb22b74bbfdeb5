package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"lorekeeper/api/internal/docstore"
)

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	d := NewDirectory(docstore.NewMemory())
	ctx := context.Background()

	if err := d.CreateUser(ctx, User{ID: "user-1", Email: " Mira@Example.com ", DisplayName: "Mira", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Addresses are normalized before the uniqueness check.
	if err := d.CreateUser(ctx, User{ID: "user-2", Email: "mira@example.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := d.GetUserByID(ctx, "user-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("losing signup must not create an account, got %v", err)
	}

	user, err := d.GetUserByEmail(ctx, "mira@example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("expected user-1, got %s", user.ID)
	}
}

func TestConcurrentSignupsClaimEmailOnce(t *testing.T) {
	d := NewDirectory(docstore.NewMemory())
	ctx := context.Background()

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- d.CreateUser(ctx, User{ID: fmt.Sprintf("user-%d", i), Email: "theo@example.com"})
		}(i)
	}
	wg.Wait()
	close(errs)

	landed := 0
	for err := range errs {
		switch {
		case err == nil:
			landed++
		case errors.Is(err, ErrEmailTaken):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if landed != 1 {
		t.Fatalf("exactly one signup should land, got %d", landed)
	}
}
