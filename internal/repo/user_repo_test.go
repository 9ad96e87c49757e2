package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/bottles-tavern/internal/domain"
)

func TestCreateUserIfAbsent_OnlyOnce(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()

	created, err := CreateUserIfAbsent(ctx, db, "0xa")
	if err != nil || !created {
		t.Fatalf("first create = %v, %v; want true, nil", created, err)
	}
	if err := ResetWhiskey(ctx, db, "0xa", 4); err != nil {
		t.Fatalf("reset: %v", err)
	}
	created, err = CreateUserIfAbsent(ctx, db, "0xa")
	if err != nil || created {
		t.Fatalf("second create = %v, %v; want false, nil", created, err)
	}

	u, err := GetUser(ctx, db, "0xa")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.WhiskeyPoints != 4 || !u.IsNewUser || len(u.LikedStoryIDs) != 0 {
		t.Fatalf("existing user must be left untouched: %+v", u)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t, allModels()...)
	if _, err := GetUser(context.Background(), db, "0xnobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetStorySets_AndIntimacy(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()
	if _, err := CreateUserIfAbsent(ctx, db, "0xa"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := SetLikedStories(ctx, db, "0xa", domain.StorySet{"s1", "s2"}); err != nil {
		t.Fatalf("SetLikedStories: %v", err)
	}
	if err := SetReceivedStories(ctx, db, "0xa", domain.StorySet{"s3"}); err != nil {
		t.Fatalf("SetReceivedStories: %v", err)
	}
	if err := SetIntimacy(ctx, db, "0xa", 42); err != nil {
		t.Fatalf("SetIntimacy: %v", err)
	}
	if err := ClearNewUser(ctx, db, "0xa"); err != nil {
		t.Fatalf("ClearNewUser: %v", err)
	}

	u, _ := GetUser(ctx, db, "0xa")
	if !u.LikedStoryIDs.Contains("s2") || !u.ReceivedStoryIDs.Contains("s3") || u.Intimacy != 42 || u.IsNewUser {
		t.Fatalf("unexpected user: %+v", u)
	}

	if err := SetIntimacy(ctx, db, "0xmissing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestDebitCreditWhiskey(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()
	if _, err := CreateUserIfAbsent(ctx, db, "0xa"); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := DebitWhiskey(ctx, db, "0xa")
	if err != nil || ok {
		t.Fatalf("debit at zero = %v, %v; want false, nil", ok, err)
	}

	if err := CreditWhiskey(ctx, db, "0xa"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	ok, err = DebitWhiskey(ctx, db, "0xa")
	if err != nil || !ok {
		t.Fatalf("debit at one = %v, %v; want true, nil", ok, err)
	}
	u, _ := GetUser(ctx, db, "0xa")
	if u.WhiskeyPoints != 0 {
		t.Fatalf("expected balance 0, got %d", u.WhiskeyPoints)
	}

	if err := CreditWhiskey(ctx, db, "0xmissing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("credit of unknown user should be ErrNotFound, got %v", err)
	}
}

func TestResetWhiskey_Overwrites(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()
	if _, err := CreateUserIfAbsent(ctx, db, "0xa"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ResetWhiskey(ctx, db, "0xa", 10); err != nil {
		t.Fatalf("reset: %v", err)
	}
	for i := 0; i < 7; i++ {
		_ = CreditWhiskey(ctx, db, "0xa")
	}
	if err := ResetWhiskey(ctx, db, "0xa", 10); err != nil {
		t.Fatalf("reset again: %v", err)
	}
	u, _ := GetUser(ctx, db, "0xa")
	if u.WhiskeyPoints != 10 {
		t.Fatalf("expected 10 after reset, got %d", u.WhiskeyPoints)
	}

	if err := ResetWhiskey(ctx, db, "0xmissing", 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reset of unknown user should be ErrNotFound, got %v", err)
	}
}
