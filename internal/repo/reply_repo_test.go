package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/bottles-tavern/internal/domain"
)

func TestReplies_InboxAndReadState(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()
	s, err := CreateStory(ctx, db, "0xa", "", "content", domain.PaymentFree)
	if err != nil {
		t.Fatalf("story: %v", err)
	}

	r1, err := CreateReply(ctx, db, s.ID, "0xb", "0xa", "first")
	if err != nil {
		t.Fatalf("reply 1: %v", err)
	}
	if _, err := CreateReply(ctx, db, s.ID, "0xa", "0xb", "answer"); err != nil {
		t.Fatalf("reply 2: %v", err)
	}
	if !r1.Unread {
		t.Fatalf("new replies start unread")
	}

	inbox, err := ListRepliesTo(ctx, db, "0xa", false)
	if err != nil || len(inbox) != 1 || inbox[0].ID != r1.ID {
		t.Fatalf("ListRepliesTo = %+v, %v", inbox, err)
	}

	// Only the recipient can flip the read flag.
	if err := SetReplyUnread(ctx, db, r1.ID, "0xb", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-recipient, got %v", err)
	}
	if err := SetReplyUnread(ctx, db, r1.ID, "0xa", false); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, err := ListRepliesTo(ctx, db, "0xa", true)
	if err != nil || len(unread) != 0 {
		t.Fatalf("expected no unread replies, got %+v, %v", unread, err)
	}
	if err := SetReplyUnread(ctx, db, r1.ID, "0xa", true); err != nil {
		t.Fatalf("mark unread: %v", err)
	}
	got, _ := GetReply(ctx, db, r1.ID)
	if !got.Unread {
		t.Fatalf("expected reply to be unread again")
	}

	thread, err := ListRepliesForStory(ctx, db, s.ID)
	if err != nil || len(thread) != 2 {
		t.Fatalf("ListRepliesForStory = %d, %v", len(thread), err)
	}
	if _, err := GetReply(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
