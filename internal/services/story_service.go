// Package services – StoryService
//
// This file implements StoryService: publishing under the daily publish
// quota, and distributing stories to readers under the daily fetch quota.
//
// Distribution draws stories uniformly from the whole pool and rejects the
// ones the reader already liked or already got today. Each accepted story
// is committed on its own (counter, received set, delivery row), so a
// failure part-way keeps what was delivered. Once the quota is used up the
// daily fetch keeps returning the same stories.
//
// Observability: public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/bottles-tavern/internal/domain"
	"github.com/tbourn/bottles-tavern/internal/repo"
	"github.com/tbourn/bottles-tavern/internal/utils"
)

// StoryService publishes and distributes stories.
type StoryService struct {
	*Core

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// MaxContentRunes rejects longer stories; 0 disables the check.
	MaxContentRunes int
}

// NewStoryService constructs a StoryService with default size guards.
func NewStoryService(core *Core) *StoryService {
	return &StoryService{Core: core, TitleMaxLen: 255, MaxContentRunes: 5000}
}

// Publish stores a new story for address. Content shorter than MinWord runes
// (after NFC normalization and trimming) is rejected without touching the
// quota.
func (s *StoryService) Publish(ctx context.Context, address, title, content string, isPay bool) (*domain.Story, error) {
	tr := otel.Tracer("services/StoryService")
	ctx, span := tr.Start(ctx, "Publish", trace.WithAttributes(attribute.Bool("story.pay", isPay)))
	defer span.End()

	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	content = normalizeText(content)
	n := utf8.RuneCountInString(content)
	if n < s.Limits.MinWord {
		return nil, invalid("content", "too short (minimum %d characters)", s.Limits.MinWord)
	}
	if s.MaxContentRunes > 0 && n > s.MaxContentRunes {
		return nil, invalid("content", "too long (maximum %d characters)", s.MaxContentRunes)
	}
	title = clipRunes(normalizeText(title), s.TitleMaxLen)
	payment := domain.PaymentFree
	if isPay {
		payment = domain.PaymentPending
	}

	unlock := s.lock(address)
	defer unlock()

	date := s.today()
	var story *domain.Story
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureUserDay(ctx, tx, address, date); err != nil {
			return err
		}
		st, err := repo.GetDay(ctx, tx, address, date)
		if err != nil {
			return err
		}
		if err := s.Policy.Check(domain.ActionPublish, st); err != nil {
			return err
		}
		ok, err := repo.IncrementIfBelow(ctx, tx, address, date, domain.ActionPublish, s.Policy.MaxPublish)
		if err != nil {
			return err
		}
		if !ok {
			return s.Policy.denied(domain.ActionPublish)
		}
		story, err = repo.CreateStory(ctx, tx, address, title, content, payment)
		return err
	})
	if err != nil {
		return nil, observeQuota(err)
	}
	span.SetAttributes(attribute.String("story.id", story.ID))
	return story, nil
}

// FetchDailyStories tops up today's deliveries of address to MaxFetch and
// returns every story delivered today.
//
// It fails with ErrStoryPoolEmpty when there is nothing to draw from. When
// FetchAttempts draws in a row are rejected it returns the stories delivered
// so far together with ErrStoryPoolExhausted.
func (s *StoryService) FetchDailyStories(ctx context.Context, address string) ([]domain.Story, error) {
	tr := otel.Tracer("services/StoryService")
	ctx, span := tr.Start(ctx, "FetchDailyStories")
	defer span.End()

	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	unlock := s.lock(address)
	defer unlock()

	date := s.today()
	st, err := s.openDay(ctx, address, date)
	if err != nil {
		return nil, err
	}

	want := s.Policy.MaxFetch - st.ReceivedCount
	var drawErr error
	if want > 0 {
		_, drawErr = s.deliver(ctx, address, date, want)
		span.SetAttributes(attribute.Int("stories.wanted", want))
	}
	if drawErr != nil && !errors.Is(drawErr, ErrStoryPoolExhausted) {
		return nil, drawErr
	}

	ids, err := repo.DeliveredStoryIDs(ctx, s.DB, address, date)
	if err != nil {
		return nil, err
	}
	stories, err := repo.ListStoriesByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	return stories, drawErr
}

// FetchRandomStory delivers a single story to address, counting against
// the daily fetch quota.
func (s *StoryService) FetchRandomStory(ctx context.Context, address string) (*domain.Story, error) {
	tr := otel.Tracer("services/StoryService")
	ctx, span := tr.Start(ctx, "FetchRandomStory")
	defer span.End()

	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	unlock := s.lock(address)
	defer unlock()

	date := s.today()
	st, err := s.openDay(ctx, address, date)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.Check(domain.ActionFetch, st); err != nil {
		return nil, observeQuota(err)
	}
	got, err := s.deliver(ctx, address, date, 1)
	if err != nil {
		return nil, observeQuota(err)
	}
	return &got[0], nil
}

// openDay makes sure the profile and today's row exist and returns the row.
func (s *StoryService) openDay(ctx context.Context, address, date string) (*domain.UserState, error) {
	var st *domain.UserState
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureUserDay(ctx, tx, address, date); err != nil {
			return err
		}
		var err error
		st, err = repo.GetDay(ctx, tx, address, date)
		return err
	})
	return st, err
}

// deliver draws and commits up to want stories. It stops early with
// ErrStoryPoolExhausted after FetchAttempts consecutive rejected draws, or
// with a *QuotaExceededError when the fetch counter is already at its limit.
// The caller must hold the address lock.
func (s *StoryService) deliver(ctx context.Context, address, date string, want int) ([]domain.Story, error) {
	u, err := repo.GetUser(ctx, s.DB, address)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	n, err := repo.CountStories(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrStoryPoolEmpty
	}
	already, err := repo.DeliveredStoryIDs(ctx, s.DB, address, date)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(already)+want)
	for _, id := range already {
		seen[id] = struct{}{}
	}

	maxAttempts := s.Limits.FetchAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	out := make([]domain.Story, 0, want)
	received := u.ReceivedStoryIDs
	rejected := 0
	for len(out) < want {
		if rejected >= maxAttempts {
			return out, ErrStoryPoolExhausted
		}
		story, err := repo.RandomStory(ctx, s.DB)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return out, ErrStoryPoolEmpty
			}
			return out, err
		}
		if _, dup := seen[story.ID]; dup || u.LikedStoryIDs.Contains(story.ID) {
			rejected++
			continue
		}

		next, _ := received.With(story.ID)
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := repo.IncrementIfBelow(ctx, tx, address, date, domain.ActionFetch, s.Policy.MaxFetch)
			if err != nil {
				return err
			}
			if !ok {
				return s.Policy.denied(domain.ActionFetch)
			}
			if err := repo.RecordDelivery(ctx, tx, address, date, story.ID); err != nil {
				return err
			}
			return repo.SetReceivedStories(ctx, tx, address, next)
		})
		if err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				seen[story.ID] = struct{}{}
				rejected++
				continue
			}
			return out, err
		}

		received = next
		seen[story.ID] = struct{}{}
		rejected = 0
		out = append(out, *story)
		storiesDistributed.Inc()
	}
	return out, nil
}

// GetStory returns a story by id.
func (s *StoryService) GetStory(ctx context.Context, id string) (*domain.Story, error) {
	st, err := repo.GetStory(ctx, s.DB, id)
	if err != nil {
		return nil, notFound(err, ErrStoryNotFound)
	}
	return st, nil
}

// StoriesByAuthor returns a page of the stories written by address and the
// total count. Page bounds are clamped.
func (s *StoryService) StoriesByAuthor(ctx context.Context, address string, page, pageSize int) ([]domain.Story, int64, error) {
	tr := otel.Tracer("services/StoryService")
	ctx, span := tr.Start(ctx, "StoriesByAuthor",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	address, err := normalizeAddress(address)
	if err != nil {
		return nil, 0, err
	}
	page, pageSize = utils.ClampPage(page, pageSize)
	total, err := repo.CountStoriesByAuthor(ctx, s.DB, address)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Story{}, 0, nil
	}
	items, err := repo.ListStoriesByAuthorPage(ctx, s.DB, address, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// PaymentPendingStories lists pay-to-earn stories awaiting settlement.
func (s *StoryService) PaymentPendingStories(ctx context.Context) ([]domain.Story, error) {
	return repo.ListPaymentPending(ctx, s.DB)
}

// BindContract attaches an on-chain contract address to a story written by
// address.
func (s *StoryService) BindContract(ctx context.Context, address, storyID, contract string) (*domain.Story, error) {
	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	contract, err = normalizeAddress(contract)
	if err != nil {
		return nil, invalid("contract_address", "must be a non-empty address")
	}
	var out *domain.Story
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := repo.GetStory(ctx, tx, storyID)
		if err != nil {
			return notFound(err, ErrStoryNotFound)
		}
		if st.AuthorAddress != address {
			return ErrNotStoryAuthor
		}
		if err := repo.SetStoryContract(ctx, tx, storyID, contract); err != nil {
			return notFound(err, ErrStoryNotFound)
		}
		out, err = repo.GetStory(ctx, tx, storyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StoryByContract returns the story bound to contract.
func (s *StoryService) StoryByContract(ctx context.Context, contract string) (*domain.Story, error) {
	contract, err := normalizeAddress(contract)
	if err != nil {
		return nil, invalid("contract_address", "must be a non-empty address")
	}
	st, err := repo.GetStoryByContract(ctx, s.DB, contract)
	if err != nil {
		return nil, notFound(err, ErrStoryNotFound)
	}
	return st, nil
}

// DeleteStory removes a story. Only its author may do so.
func (s *StoryService) DeleteStory(ctx context.Context, address, storyID string) error {
	tr := otel.Tracer("services/StoryService")
	ctx, span := tr.Start(ctx, "DeleteStory", trace.WithAttributes(attribute.String("story.id", storyID)))
	defer span.End()

	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := repo.GetStory(ctx, tx, storyID)
		if err != nil {
			return notFound(err, ErrStoryNotFound)
		}
		if st.AuthorAddress != address {
			return ErrNotStoryAuthor
		}
		return notFound(repo.DeleteStory(ctx, tx, storyID, address), ErrStoryNotFound)
	})
}
