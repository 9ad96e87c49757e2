package main

import (
	"context"
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/bottles-tavern/internal/domain"
	"github.com/tbourn/bottles-tavern/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:seed_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

const seedYAML = `
users:
  - address: "0xABC"
    whiskey: 3
stories:
  - author: "0xabc"
    title: "The Last Round"
    content: "It was late when the stranger began to talk about the sea."
  - author: "0xdef"
    content: "A coin for the fiddler, a song for the road."
    pay: true
`

func TestSeed_LoadsUsersAndStories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	res, err := seed(ctx, db, strings.NewReader(seedYAML))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if res.Users != 2 || res.Stories != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	u, err := repo.GetUser(ctx, db, "0xabc")
	if err != nil || u.WhiskeyPoints != 3 {
		t.Fatalf("user = %+v, %v", u, err)
	}
	pending, err := repo.ListPaymentPending(ctx, db)
	if err != nil || len(pending) != 1 || pending[0].AuthorAddress != "0xdef" {
		t.Fatalf("pending = %+v, %v", pending, err)
	}

	// Re-running keeps users and appends stories.
	res, err = seed(ctx, db, strings.NewReader(seedYAML))
	if err != nil || res.Users != 0 || res.Stories != 2 {
		t.Fatalf("second seed = %+v, %v", res, err)
	}
}

func TestSeed_RejectsBadInput(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cases := map[string]string{
		"unknown field":   "users:\n  - address: \"0xa\"\n    nickname: bob\n",
		"missing content": "stories:\n  - author: \"0xa\"\n",
		"negative points": "users:\n  - address: \"0xa\"\n    whiskey: -1\n",
		"not yaml":        "users: [",
	}
	for name, in := range cases {
		if _, err := seed(ctx, db, strings.NewReader(in)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	var n int64
	db.Model(&domain.Story{}).Count(&n)
	if n != 0 {
		t.Fatalf("failed seeds left %d stories", n)
	}
}

func TestSeed_EmptyFile(t *testing.T) {
	res, err := seed(context.Background(), newTestDB(t), strings.NewReader(""))
	if err != nil || res != (seedResult{}) {
		t.Fatalf("empty seed = %+v, %v", res, err)
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate", "seed"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %s missing: %v", name, err)
		}
	}
}
