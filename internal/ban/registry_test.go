package ban

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func registries(t *testing.T) map[string]Registry {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return map[string]Registry{
		"memory": NewMemoryRegistry(),
		"redis":  NewRedisRegistry(client),
	}
}

func TestBanLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, registry := range registries(t) {
		t.Run(name, func(t *testing.T) {
			banned, err := registry.IsBanned(ctx, "fp-1")
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if banned {
				t.Fatal("expected fresh fingerprint to be unbanned")
			}

			if err := registry.Ban(ctx, "fp-1"); err != nil {
				t.Fatalf("ban: %v", err)
			}
			if err := registry.Ban(ctx, "fp-1"); err != nil {
				t.Fatalf("double ban: %v", err)
			}

			banned, err = registry.IsBanned(ctx, "fp-1")
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if !banned {
				t.Fatal("expected fingerprint to be banned")
			}

			if banned, _ := registry.IsBanned(ctx, "fp-2"); banned {
				t.Fatal("unrelated fingerprint must stay unbanned")
			}

			if err := registry.Unban(ctx, "fp-1"); err != nil {
				t.Fatalf("unban: %v", err)
			}
			if banned, _ := registry.IsBanned(ctx, "fp-1"); banned {
				t.Fatal("expected fingerprint to be unbanned after removal")
			}

			if err := registry.Unban(ctx, "fp-1"); err != nil {
				t.Fatalf("unban absent: %v", err)
			}
		})
	}
}
