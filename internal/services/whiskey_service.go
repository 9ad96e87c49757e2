package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/bottles-tavern/internal/domain"
	"github.com/tbourn/bottles-tavern/internal/repo"
)

// WhiskeyReceipt describes a committed whiskey transfer.
type WhiskeyReceipt struct {
	StoryID       string `json:"story_id"`
	FromAddress   string `json:"from_address"`
	ToAddress     string `json:"to_address"`
	SenderBalance int    `json:"sender_balance"`
	SentToday     int    `json:"sent_today"`
	StoryPoints   int    `json:"story_points"`
}

// WhiskeyService moves whiskey points from readers to story authors.
type WhiskeyService struct {
	*Core
}

// NewWhiskeyService constructs a WhiskeyService on top of core.
func NewWhiskeyService(core *Core) *WhiskeyService {
	return &WhiskeyService{Core: core}
}

// SendWhiskey moves one point from address to the author of storyID and
// counts it on the story. Debit, credit, story tally and the sender's daily
// counter commit together or not at all. Sending to one's own story is
// allowed.
func (s *WhiskeyService) SendWhiskey(ctx context.Context, address, storyID string) (*WhiskeyReceipt, error) {
	tr := otel.Tracer("services/WhiskeyService")
	ctx, span := tr.Start(ctx, "SendWhiskey", trace.WithAttributes(attribute.String("story.id", storyID)))
	defer span.End()

	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if storyID == "" {
		return nil, invalid("story_id", "must not be empty")
	}

	unlock := s.lock(address)
	defer unlock()

	date := s.today()
	var rc WhiskeyReceipt
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		story, err := repo.GetStory(ctx, tx, storyID)
		if err != nil {
			return notFound(err, ErrStoryNotFound)
		}
		if err := s.ensureUserDay(ctx, tx, address, date); err != nil {
			return err
		}
		st, err := repo.GetDay(ctx, tx, address, date)
		if err != nil {
			return err
		}
		if err := s.Policy.Check(domain.ActionWhiskey, st); err != nil {
			return err
		}
		sender, err := repo.GetUser(ctx, tx, address)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if sender.WhiskeyPoints <= 0 {
			return ErrInsufficientPoints
		}

		ok, err := repo.IncrementIfBelow(ctx, tx, address, date, domain.ActionWhiskey, s.Policy.MaxWhiskey)
		if err != nil {
			return err
		}
		if !ok {
			return s.Policy.denied(domain.ActionWhiskey)
		}
		ok, err = repo.DebitWhiskey(ctx, tx, address)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInsufficientPoints
		}
		if err := repo.CreditWhiskey(ctx, tx, story.AuthorAddress); err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if err := repo.IncrementStoryWhiskey(ctx, tx, story.ID); err != nil {
			return notFound(err, ErrStoryNotFound)
		}

		after, err := repo.GetUser(ctx, tx, address)
		if err != nil {
			return err
		}
		day, err := repo.GetDay(ctx, tx, address, date)
		if err != nil {
			return err
		}
		rc = WhiskeyReceipt{
			StoryID:       story.ID,
			FromAddress:   address,
			ToAddress:     story.AuthorAddress,
			SenderBalance: after.WhiskeyPoints,
			SentToday:     day.WhiskeySentCount,
			StoryPoints:   story.WhiskeyPoints + 1,
		}
		return nil
	})
	if err != nil {
		return nil, observeQuota(err)
	}
	whiskeyTransfers.Inc()
	return &rc, nil
}

// Balance returns the whiskey balance of address after applying today's
// grant.
func (s *WhiskeyService) Balance(ctx context.Context, address string) (int, error) {
	address, err := normalizeAddress(address)
	if err != nil {
		return 0, err
	}
	unlock := s.lock(address)
	defer unlock()

	var points int
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureUserDay(ctx, tx, address, s.today()); err != nil {
			return err
		}
		u, err := repo.GetUser(ctx, tx, address)
		if err != nil {
			return err
		}
		points = u.WhiskeyPoints
		return nil
	})
	return points, err
}
