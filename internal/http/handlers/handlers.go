// Package handlers exposes the tavern's REST endpoints.
//
// Handlers are transport-thin: they bind and validate input, resolve the
// calling wallet from the auth middleware, delegate to the services and
// translate service errors into the shared envelope. Conditional GETs
// (ETag) and Idempotency-Key replay are implemented here on top of the
// optional DB handle.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/bottles-tavern/internal/auth"
	"github.com/tbourn/bottles-tavern/internal/domain"
	"github.com/tbourn/bottles-tavern/internal/http/middleware"
	"github.com/tbourn/bottles-tavern/internal/repo"
	"github.com/tbourn/bottles-tavern/internal/services"
	"github.com/tbourn/bottles-tavern/internal/utils"
)

// UserService is the subset of services.UserService used by the handlers.
type UserService interface {
	GetUser(ctx context.Context, address string) (*domain.User, error)
	DailyState(ctx context.Context, address string) (*domain.UserState, error)
	MarkLiked(ctx context.Context, address, storyID string) error
	UnmarkLiked(ctx context.Context, address, storyID string) error
	MarkReceived(ctx context.Context, address, storyID string) error
	UnmarkReceived(ctx context.Context, address, storyID string) error
	LikedStories(ctx context.Context, address string) ([]domain.Story, error)
	ReceivedStories(ctx context.Context, address string) ([]domain.Story, error)
	Intimacy(ctx context.Context, address string) (int, error)
	UpdateIntimacy(ctx context.Context, address string, value int) error
	CompleteOnboarding(ctx context.Context, address string) error
}

// StoryService is the subset of services.StoryService used by the handlers.
type StoryService interface {
	Publish(ctx context.Context, address, title, content string, isPay bool) (*domain.Story, error)
	FetchDailyStories(ctx context.Context, address string) ([]domain.Story, error)
	FetchRandomStory(ctx context.Context, address string) (*domain.Story, error)
	GetStory(ctx context.Context, id string) (*domain.Story, error)
	StoriesByAuthor(ctx context.Context, address string, page, pageSize int) ([]domain.Story, int64, error)
	PaymentPendingStories(ctx context.Context) ([]domain.Story, error)
	BindContract(ctx context.Context, address, storyID, contract string) (*domain.Story, error)
	StoryByContract(ctx context.Context, contract string) (*domain.Story, error)
	DeleteStory(ctx context.Context, address, storyID string) error
}

// WhiskeyService is the subset of services.WhiskeyService used by the handlers.
type WhiskeyService interface {
	SendWhiskey(ctx context.Context, address, storyID string) (*services.WhiskeyReceipt, error)
	Balance(ctx context.Context, address string) (int, error)
}

// ReplyService is the subset of services.ReplyService used by the handlers.
type ReplyService interface {
	ReplyStory(ctx context.Context, address, storyID, content string) (*domain.Reply, error)
	ReplyUser(ctx context.Context, address, storyID, content, toAddress string) (*domain.Reply, error)
	Inbox(ctx context.Context, address string, unreadOnly bool) ([]domain.Reply, error)
	RepliesForStory(ctx context.Context, storyID string) ([]domain.Reply, error)
	MarkRead(ctx context.Context, address, replyID string) error
	MarkUnread(ctx context.Context, address, replyID string) error
}

// AuthService issues login challenges and session tokens.
type AuthService interface {
	Challenge(ctx context.Context, address string) (string, error)
	Login(ctx context.Context, address, signature string) (*auth.Session, error)
}

// Deps bundles the handler dependencies. DB is optional; without it ETags
// and idempotent replay are disabled.
type Deps struct {
	Users   UserService
	Stories StoryService
	Whiskey WhiskeyService
	Replies ReplyService
	Auth    AuthService

	DB             *gorm.DB
	IdempotencyTTL time.Duration
}

// Handlers groups all HTTP handlers.
type Handlers struct {
	users   UserService
	stories StoryService
	whiskey WhiskeyService
	replies ReplyService
	auth    AuthService

	db      *gorm.DB
	idemTTL time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	ttl := d.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handlers{
		users:   d.Users,
		stories: d.Stories,
		whiskey: d.Whiskey,
		replies: d.Replies,
		auth:    d.Auth,
		db:      d.DB,
		idemTTL: ttl,
	}
}

// address returns the wallet resolved by the auth middleware. Routes that
// need it are mounted behind middleware.RequireAddress.
func address(c *gin.Context) string {
	return middleware.Address(c)
}

// Pagination is the page metadata attached to list responses.
type Pagination struct {
	Page       int   `json:"page" example:"1"`
	PageSize   int   `json:"page_size" example:"20"`
	Total      int64 `json:"total" example:"42"`
	TotalPages int   `json:"total_pages" example:"3"`
	HasNext    bool  `json:"has_next" example:"true"`
}

// clampPagination parses page/page_size with defaults and caps.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"))
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// statsFunc reports (row count, latest update) for a listing.
type statsFunc func(ctx context.Context, db *gorm.DB, key string) (int64, *time.Time, error)

// notModified sets a weak ETag derived from stats and reports whether the
// client's If-None-Match already matches it, in which case a 304 has been
// written. Stats failures skip the check.
func (h *Handlers) notModified(c *gin.Context, kind, key string, stats statsFunc) bool {
	if h.db == nil {
		return false
	}
	count, maxTS, err := stats(c.Request.Context(), h.db, key)
	if err != nil {
		return false
	}
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%s:%d:%d"`, kind, key, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// claim reserves the request's Idempotency-Key before the handler does any
// work. It returns the resource id of a completed earlier request to replay,
// or a pending claim the handler settles with complete or release. When
// another request holding the key is still running it writes 409 and
// reports handled.
func (h *Handlers) claim(c *gin.Context) (replayID string, claim *domain.Idempotency, handled bool) {
	if h.db == nil {
		return "", nil, false
	}
	key, ok := middleware.GetIdempotencyKey(c)
	if !ok {
		return "", nil, false
	}
	ctx := c.Request.Context()
	addr, scope := address(c), middleware.IdempotencyScope(c)

	rec, err := repo.ClaimIdempotency(ctx, h.db, addr, scope, key, h.idemTTL)
	if err == nil {
		return "", rec, false
	}
	if !errors.Is(err, repo.ErrDuplicate) {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency claim failed")
		return "", nil, false
	}
	prev, err := repo.GetIdempotency(ctx, h.db, addr, scope, key, time.Now().UTC())
	if err != nil || prev.Pending() {
		fail(c, http.StatusConflict, ErrCodeConflict, "a request with this Idempotency-Key is in progress")
		return "", nil, true
	}
	c.Header("Idempotency-Replayed", "true")
	return prev.ResourceID, nil, false
}

// complete records the outcome of a claimed request. A failure only costs
// the client a future replay.
func (h *Handlers) complete(c *gin.Context, claim *domain.Idempotency, resourceID string, status int) {
	if claim == nil {
		return
	}
	if err := repo.CompleteIdempotency(c.Request.Context(), h.db, claim.ID, resourceID, status); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
	}
}

// release frees the key of a claimed request that failed.
func (h *Handlers) release(c *gin.Context, claim *domain.Idempotency) {
	if claim == nil {
		return
	}
	if err := repo.ReleaseIdempotency(c.Request.Context(), h.db, claim.ID); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency claim not released")
	}
}

