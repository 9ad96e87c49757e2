package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tbourn/bottles-tavern/internal/domain"
	"github.com/tbourn/bottles-tavern/internal/repo"
)

const longTale = "The bosun swore the cask was older than the ship itself."

func TestPublish_ShortContentDoesNotCount(t *testing.T) {
	core := newTestCore(t)
	svc := NewStoryService(core)
	ctx := context.Background()

	_, err := svc.Publish(ctx, "0xa", "t", "  too short ", false)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "content" {
		t.Fatalf("expected content ValidationError, got %v", err)
	}
	st, err := NewUserService(core).DailyState(ctx, "0xa")
	if err != nil {
		t.Fatalf("DailyState: %v", err)
	}
	if st.PublishedCount != 0 {
		t.Fatalf("rejected publish counted: %d", st.PublishedCount)
	}
	if n, _ := repo.CountStories(ctx, core.DB); n != 0 {
		t.Fatalf("rejected publish stored a story")
	}
}

func TestPublish_QuotaAndPayment(t *testing.T) {
	core := newTestCore(t)
	svc := NewStoryService(core)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		st, err := svc.Publish(ctx, "0xA", "  Tale  ", longTale, i == 0)
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		if st.AuthorAddress != "0xa" || st.Title != "Tale" {
			t.Fatalf("unexpected story: %+v", st)
		}
	}
	_, err := svc.Publish(ctx, "0xa", "", longTale, false)
	var qe *QuotaExceededError
	if !errors.As(err, &qe) || qe.Action != domain.ActionPublish || qe.Limit != 3 {
		t.Fatalf("expected publish quota error, got %v", err)
	}
	if n, _ := repo.CountStories(ctx, core.DB); n != 3 {
		t.Fatalf("stories = %d, want 3", n)
	}

	pending, err := svc.PaymentPendingStories(ctx)
	if err != nil || len(pending) != 1 || pending[0].PaymentState != domain.PaymentPending {
		t.Fatalf("PaymentPendingStories = %v, %v", pending, err)
	}
}

func TestPublish_ContentLimitsAndTitleClip(t *testing.T) {
	core := newTestCore(t)
	svc := NewStoryService(core)
	svc.MaxContentRunes = 60
	svc.TitleMaxLen = 4
	ctx := context.Background()

	if _, err := svc.Publish(ctx, "0xa", "", strings.Repeat("x", 61), false); !IsValidation(err) {
		t.Fatalf("expected too-long validation error, got %v", err)
	}
	st, err := svc.Publish(ctx, "0xa", "Longer title", longTale, false)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if st.Title != "Long" {
		t.Fatalf("title not clipped: %q", st.Title)
	}
}

func TestPublish_ConcurrentNeverExceedsQuota(t *testing.T) {
	core := newTestCore(t)
	// A second service with its own lock table shares only the database.
	other := *core
	other.Locks = &KeyedMutex{}
	a, b := NewStoryService(core), NewStoryService(&other)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, denied := 0, 0
	for i := 0; i < 12; i++ {
		svc := a
		if i%2 == 1 {
			svc = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Publish(ctx, "0xa", "", longTale, false)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case IsQuotaExceeded(err):
				denied++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 3 || denied != 9 {
		t.Fatalf("ok=%d denied=%d, want 3/9", ok, denied)
	}
	st, _ := repo.GetDay(ctx, core.DB, "0xa", "2026-03-14")
	if st.PublishedCount != 3 {
		t.Fatalf("published_count = %d", st.PublishedCount)
	}
}

func TestFetchDailyStories_FreshUserGetsFiveDistinct(t *testing.T) {
	core := newTestCore(t)
	svc := NewStoryService(core)
	ctx := context.Background()
	seedStories(t, core, "0xauthor", 20)

	got, err := svc.FetchDailyStories(ctx, "0xreader")
	if err != nil {
		t.Fatalf("FetchDailyStories: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d stories, want 5", len(got))
	}
	seen := map[string]bool{}
	for _, s := range got {
		if seen[s.ID] {
			t.Fatalf("duplicate story %s", s.ID)
		}
		seen[s.ID] = true
	}

	u := mustUser(t, core, "0xreader")
	if len(u.ReceivedStoryIDs) != 5 {
		t.Fatalf("received set = %v", u.ReceivedStoryIDs)
	}
	st, _ := repo.GetDay(ctx, core.DB, "0xreader", "2026-03-14")
	if st.ReceivedCount != 5 {
		t.Fatalf("received_count = %d", st.ReceivedCount)
	}

	// Past the quota the same stories come back and nothing is counted.
	again, err := svc.FetchDailyStories(ctx, "0xreader")
	if err != nil || len(again) != 5 {
		t.Fatalf("second fetch = %d, %v", len(again), err)
	}
	for i := range got {
		if again[i].ID != got[i].ID {
			t.Fatalf("second fetch returned different stories")
		}
	}
	st, _ = repo.GetDay(ctx, core.DB, "0xreader", "2026-03-14")
	if st.ReceivedCount != 5 {
		t.Fatalf("received_count after refetch = %d", st.ReceivedCount)
	}

	if _, err := svc.FetchRandomStory(ctx, "0xreader"); !IsQuotaExceeded(err) {
		t.Fatalf("FetchRandomStory past quota = %v", err)
	}
}

func TestFetchDailyStories_SkipsLikedStories(t *testing.T) {
	core := newTestCore(t)
	core.Limits.FetchAttempts = 500
	svc := NewStoryService(core)
	users := NewUserService(core)
	ctx := context.Background()
	ids := seedStories(t, core, "0xauthor", 6)

	if _, err := users.GetUser(ctx, "0xreader"); err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if err := users.MarkLiked(ctx, "0xreader", ids[0]); err != nil {
		t.Fatalf("MarkLiked: %v", err)
	}

	got, err := svc.FetchDailyStories(ctx, "0xreader")
	if err != nil {
		t.Fatalf("FetchDailyStories: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d stories, want 5", len(got))
	}
	for _, s := range got {
		if s.ID == ids[0] {
			t.Fatalf("liked story %s was delivered", s.ID)
		}
	}
}

func TestFetchDailyStories_EmptyAndExhaustedPool(t *testing.T) {
	core := newTestCore(t)
	core.Limits.FetchAttempts = 200
	svc := NewStoryService(core)
	ctx := context.Background()

	if _, err := svc.FetchDailyStories(ctx, "0xreader"); !errors.Is(err, ErrStoryPoolEmpty) {
		t.Fatalf("empty pool = %v, want ErrStoryPoolEmpty", err)
	}

	seedStories(t, core, "0xauthor", 3)
	got, err := svc.FetchDailyStories(ctx, "0xreader")
	if !errors.Is(err, ErrStoryPoolExhausted) {
		t.Fatalf("small pool = %v, want ErrStoryPoolExhausted", err)
	}
	if len(got) != 3 {
		t.Fatalf("partial delivery = %d stories, want 3", len(got))
	}
	st, _ := repo.GetDay(ctx, core.DB, "0xreader", "2026-03-14")
	if st.ReceivedCount != 3 {
		t.Fatalf("received_count = %d, want 3", st.ReceivedCount)
	}
}

func TestFetchDailyStories_ConcurrentCallsStayWithinQuota(t *testing.T) {
	core := newTestCore(t)
	svc := NewStoryService(core)
	ctx := context.Background()
	seedStories(t, core, "0xauthor", 30)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.FetchDailyStories(ctx, "0xreader"); err != nil {
				t.Errorf("FetchDailyStories: %v", err)
			}
		}()
	}
	wg.Wait()

	st, _ := repo.GetDay(ctx, core.DB, "0xreader", "2026-03-14")
	if st.ReceivedCount != 5 {
		t.Fatalf("received_count = %d, want 5", st.ReceivedCount)
	}
	ids, _ := repo.DeliveredStoryIDs(ctx, core.DB, "0xreader", "2026-03-14")
	if len(ids) != 5 {
		t.Fatalf("deliveries = %d, want 5", len(ids))
	}
}

func TestFetchRandomStory_CountsAgainstQuota(t *testing.T) {
	core := newTestCore(t)
	svc := NewStoryService(core)
	ctx := context.Background()
	seedStories(t, core, "0xauthor", 10)

	s, err := svc.FetchRandomStory(ctx, "0xreader")
	if err != nil || s == nil {
		t.Fatalf("FetchRandomStory = %v, %v", s, err)
	}
	got, err := svc.FetchDailyStories(ctx, "0xreader")
	if err != nil || len(got) != 5 {
		t.Fatalf("daily after random = %d, %v", len(got), err)
	}
	found := false
	for _, g := range got {
		found = found || g.ID == s.ID
	}
	if !found {
		t.Fatalf("random story %s missing from today's deliveries", s.ID)
	}
}

func TestStoryOwnership(t *testing.T) {
	core := newTestCore(t)
	svc := NewStoryService(core)
	ctx := context.Background()

	st, err := svc.Publish(ctx, "0xa", "t", longTale, true)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if _, err := svc.BindContract(ctx, "0xb", st.ID, "0xC0"); !errors.Is(err, ErrNotStoryAuthor) {
		t.Fatalf("foreign BindContract = %v", err)
	}
	bound, err := svc.BindContract(ctx, "0xa", st.ID, "0xC0")
	if err != nil || bound.ContractAddress == nil || *bound.ContractAddress != "0xc0" {
		t.Fatalf("BindContract = %+v, %v", bound, err)
	}
	byContract, err := svc.StoryByContract(ctx, "0xc0")
	if err != nil || byContract.ID != st.ID {
		t.Fatalf("StoryByContract = %+v, %v", byContract, err)
	}
	if _, err := svc.StoryByContract(ctx, "0xnone"); !errors.Is(err, ErrStoryNotFound) {
		t.Fatalf("unknown contract = %v", err)
	}

	if err := svc.DeleteStory(ctx, "0xb", st.ID); !errors.Is(err, ErrNotStoryAuthor) {
		t.Fatalf("foreign delete = %v", err)
	}
	if err := svc.DeleteStory(ctx, "0xa", st.ID); err != nil {
		t.Fatalf("DeleteStory: %v", err)
	}
	if _, err := svc.GetStory(ctx, st.ID); !errors.Is(err, ErrStoryNotFound) {
		t.Fatalf("deleted story still visible: %v", err)
	}
	if err := svc.DeleteStory(ctx, "0xa", st.ID); !errors.Is(err, ErrStoryNotFound) {
		t.Fatalf("second delete = %v", err)
	}
}

func TestStoriesByAuthor_Pagination(t *testing.T) {
	core := newTestCore(t)
	svc := NewStoryService(core)
	ctx := context.Background()
	seedStories(t, core, "0xa", 5)

	items, total, err := svc.StoriesByAuthor(ctx, "0xA", 2, 2)
	if err != nil {
		t.Fatalf("StoriesByAuthor: %v", err)
	}
	if total != 5 || len(items) != 2 {
		t.Fatalf("page 2 = %d items of %d", len(items), total)
	}
	items, total, err = svc.StoriesByAuthor(ctx, "0xa", 0, 0)
	if err != nil || total != 5 || len(items) != 5 {
		t.Fatalf("defaults = %d items of %d, %v", len(items), total, err)
	}
	items, total, err = svc.StoriesByAuthor(ctx, "0xnobody", 1, 10)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty author = %d items of %d, %v", len(items), total, err)
	}
}
