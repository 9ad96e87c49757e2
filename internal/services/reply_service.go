package services

import (
	"context"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/bottles-tavern/internal/domain"
	"github.com/tbourn/bottles-tavern/internal/repo"
)

// ReplyService manages replies to stories and the reply inbox.
type ReplyService struct {
	*Core

	// MaxContentRunes caps reply length; 0 disables the check.
	MaxContentRunes int
}

// NewReplyService constructs a ReplyService.
func NewReplyService(core *Core) *ReplyService {
	return &ReplyService{Core: core, MaxContentRunes: 2000}
}

// ReplyStory answers a story; the reply lands in its author's inbox.
func (s *ReplyService) ReplyStory(ctx context.Context, address, storyID, content string) (*domain.Reply, error) {
	return s.reply(ctx, "ReplyStory", address, storyID, content, "")
}

// ReplyUser answers another reader within a story's thread.
func (s *ReplyService) ReplyUser(ctx context.Context, address, storyID, content, toAddress string) (*domain.Reply, error) {
	to, err := normalizeAddress(toAddress)
	if err != nil {
		return nil, invalid("to_address", "must be a non-empty address")
	}
	return s.reply(ctx, "ReplyUser", address, storyID, content, to)
}

func (s *ReplyService) reply(ctx context.Context, op, address, storyID, content, to string) (*domain.Reply, error) {
	tr := otel.Tracer("services/ReplyService")
	ctx, span := tr.Start(ctx, op, trace.WithAttributes(attribute.String("story.id", storyID)))
	defer span.End()

	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	content = normalizeText(content)
	if content == "" {
		return nil, invalid("content", "must not be empty")
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, invalid("content", "too long (maximum %d characters)", s.MaxContentRunes)
	}

	story, err := repo.GetStory(ctx, s.DB, storyID)
	if err != nil {
		return nil, notFound(err, ErrStoryNotFound)
	}
	if to == "" {
		to = story.AuthorAddress
	}
	return repo.CreateReply(ctx, s.DB, story.ID, address, to, content)
}

// Inbox lists replies addressed to address, newest first.
func (s *ReplyService) Inbox(ctx context.Context, address string, unreadOnly bool) ([]domain.Reply, error) {
	ctx, span := otel.Tracer("services/ReplyService").Start(ctx, "Inbox",
		trace.WithAttributes(attribute.Bool("unread_only", unreadOnly)))
	defer span.End()

	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return repo.ListRepliesTo(ctx, s.DB, address, unreadOnly)
}

// RepliesForStory lists a story's replies oldest first.
func (s *ReplyService) RepliesForStory(ctx context.Context, storyID string) ([]domain.Reply, error) {
	if _, err := repo.GetStory(ctx, s.DB, storyID); err != nil {
		return nil, notFound(err, ErrStoryNotFound)
	}
	return repo.ListRepliesForStory(ctx, s.DB, storyID)
}

// MarkRead flags a reply addressed to address as read.
func (s *ReplyService) MarkRead(ctx context.Context, address, replyID string) error {
	return s.setUnread(ctx, address, replyID, false)
}

// MarkUnread flags a reply addressed to address as unread.
func (s *ReplyService) MarkUnread(ctx context.Context, address, replyID string) error {
	return s.setUnread(ctx, address, replyID, true)
}

func (s *ReplyService) setUnread(ctx context.Context, address, replyID string, unread bool) error {
	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}
	return notFound(repo.SetReplyUnread(ctx, s.DB, replyID, address, unread), ErrReplyNotFound)
}
