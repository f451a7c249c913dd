package db

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tmhi/discord-bot/tmhi"
)

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\n  CREATE INDEX i ON a(x);\n;\n")
	want := []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a(x)"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("splitStatements mismatch (-want +got):\n%s", diff)
	}
}

func TestEmbeddedMigrationsPaired(t *testing.T) {
	ups, _ := fs.Glob(migrationsFS, "migrations/*.up.sql")
	downs, _ := fs.Glob(migrationsFS, "migrations/*.down.sql")
	if len(ups) == 0 || len(ups) != len(downs) {
		t.Fatalf("up/down migrations unpaired: %d up, %d down", len(ups), len(downs))
	}
}

func TestConnectRejectsEmptyDSN(t *testing.T) {
	if _, err := Connect(context.Background(), "", PoolConfig{}); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

// The cross-guild check runs before any I/O, so a gateway without a pool
// must reject without touching the database.
func TestGrantRejectsCrossGuild(t *testing.T) {
	g := NewGateway(nil)
	ctx := context.Background()
	role := tmhi.Role{ID: "r1", GuildID: "guild-a"}
	perm := tmhi.NewPermission("CREATE_POLLS", "guild-b", "", "")

	if err := g.GrantRolePermission(ctx, role, perm, ""); !errors.Is(err, ErrCrossGuild) {
		t.Fatalf("GrantRolePermission err = %v, want ErrCrossGuild", err)
	}
	if _, err := g.RevokeRolePermission(ctx, role, perm); !errors.Is(err, ErrCrossGuild) {
		t.Fatalf("RevokeRolePermission err = %v, want ErrCrossGuild", err)
	}
	if err := g.GrantMemberPermission(ctx, "guild-a", "m1", perm, ""); !errors.Is(err, ErrCrossGuild) {
		t.Fatalf("GrantMemberPermission err = %v, want ErrCrossGuild", err)
	}
	if _, err := g.RevokeMemberPermission(ctx, "guild-a", "m1", perm); !errors.Is(err, ErrCrossGuild) {
		t.Fatalf("RevokeMemberPermission err = %v, want ErrCrossGuild", err)
	}
}
