// Story HTTP handlers.
//
// Endpoints:
//   - POST   /stories               (publish; Idempotency-Key aware)
//   - POST   /stories/daily         (draw up to today's fetch quota)
//   - POST   /stories/random        (draw one story)
//   - GET    /stories/mine          (caller's stories, paginated, ETag)
//   - GET    /stories/pending       (stories awaiting payment)
//   - GET    /stories/{id}
//   - DELETE /stories/{id}          (author only)
//   - PUT    /stories/{id}/contract (author only)
//   - GET    /contracts/{contract}  (story bound to a contract)
//   - POST   /stories/{id}/whiskey  (send one point; Idempotency-Key aware)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/bottles-tavern/internal/domain"
	"github.com/tbourn/bottles-tavern/internal/repo"
	"github.com/tbourn/bottles-tavern/internal/services"
)

// PublishRequest is the payload for POST /stories.
type PublishRequest struct {
	Title   string `json:"title" example:"The Last Round"`
	Content string `json:"content" binding:"required" example:"It was late when the stranger ordered one more drink and began to talk about the sea"`
	IsPay   bool   `json:"is_pay" example:"false"`
}

// StoryResponse wraps a single story.
type StoryResponse struct {
	Story *domain.Story `json:"story"`
}

// DailyStoriesResponse is the result of a daily draw. Complete is false
// when the pool ran out of eligible stories before the quota was met.
type DailyStoriesResponse struct {
	Stories  []domain.Story `json:"stories"`
	Complete bool           `json:"complete" example:"true"`
}

// MyStoriesResponse is a page of the caller's stories.
type MyStoriesResponse struct {
	Stories    []domain.Story `json:"stories"`
	Pagination Pagination     `json:"pagination"`
}

// ContractRequest is the payload for PUT /stories/{id}/contract.
type ContractRequest struct {
	Contract string `json:"contract" binding:"required" example:"0x5fbdb2315678afecb367f032d93f642f64180aa3"`
}

// PublishStory godoc
// @ID          publishStory
// @Summary     Publish a story
// @Description Stories whose content is shorter than the minimum word count are rejected and do not count toward the daily limit.
// @Description Supports idempotency via the Idempotency-Key header.
// @Tags        Stories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string                   false  "Idempotency key for safe retries"
// @Param       body             body    handlers.PublishRequest  true   "Story"
// @Success     201  {object}  handlers.StoryResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     429  {object}  handlers.ErrorResponse "Daily publish limit reached"
// @Router      /stories [post]
func (h *Handlers) PublishStory(c *gin.Context) {
	ctx := c.Request.Context()
	id, claim, handled := h.claim(c)
	if handled {
		return
	}
	if id != "" {
		if prev, err := h.stories.GetStory(ctx, id); err == nil {
			ok(c, http.StatusCreated, StoryResponse{Story: prev})
			return
		}
	}

	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.release(c, claim)
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	st, err := h.stories.Publish(ctx, address(c), req.Title, req.Content, req.IsPay)
	if err != nil {
		h.release(c, claim)
		failErr(c, err)
		return
	}
	h.complete(c, claim, st.ID, http.StatusCreated)
	ok(c, http.StatusCreated, StoryResponse{Story: st})
}

// FetchDailyStories godoc
// @ID          fetchDailyStories
// @Summary     Today's stories
// @Description Draws stories until today's fetch quota is met. Calling again returns the same set.
// @Tags        Stories
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.DailyStoriesResponse
// @Failure     404  {object}  handlers.ErrorResponse "No stories published yet"
// @Router      /stories/daily [post]
func (h *Handlers) FetchDailyStories(c *gin.Context) {
	items, err := h.stories.FetchDailyStories(c.Request.Context(), address(c))
	complete := true
	if errors.Is(err, services.ErrStoryPoolExhausted) {
		complete, err = false, nil
	}
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Story{}
	}
	ok(c, http.StatusOK, DailyStoriesResponse{Stories: items, Complete: complete})
}

// FetchRandomStory godoc
// @ID          fetchRandomStory
// @Summary     Draw one story
// @Tags        Stories
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.StoryResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     429  {object}  handlers.ErrorResponse "Daily fetch limit reached"
// @Router      /stories/random [post]
func (h *Handlers) FetchRandomStory(c *gin.Context) {
	st, err := h.stories.FetchRandomStory(c.Request.Context(), address(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, StoryResponse{Story: st})
}

// MyStories godoc
// @ID          myStories
// @Summary     Stories written by the caller
// @Description Newest first. Supports weak ETag via If-None-Match.
// @Tags        Stories
// @Produce     json
// @Security    BearerAuth
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.MyStoriesResponse
// @Success     304  "Not Modified"
// @Router      /stories/mine [get]
func (h *Handlers) MyStories(c *gin.Context) {
	addr := address(c)
	if h.notModified(c, "stories", addr, repo.AuthorStoriesStats) {
		return
	}
	page, pageSize := clampPagination(c)
	items, total, err := h.stories.StoriesByAuthor(c.Request.Context(), addr, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MyStoriesResponse{Stories: items, Pagination: newPagination(page, pageSize, total)})
}

// PendingStories godoc
// @ID          pendingStories
// @Summary     Stories awaiting payment
// @Tags        Stories
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.StoriesResponse
// @Router      /stories/pending [get]
func (h *Handlers) PendingStories(c *gin.Context) {
	items, err := h.stories.PaymentPendingStories(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, StoriesResponse{Stories: items})
}

// GetStory godoc
// @ID          getStory
// @Summary     Get a story
// @Tags        Stories
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Story ID"
// @Success     200  {object}  handlers.StoryResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /stories/{id} [get]
func (h *Handlers) GetStory(c *gin.Context) {
	st, err := h.stories.GetStory(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, StoryResponse{Story: st})
}

// DeleteStory godoc
// @ID          deleteStory
// @Summary     Delete own story
// @Tags        Stories
// @Security    BearerAuth
// @Param       id  path  string  true  "Story ID"
// @Success     204
// @Failure     403  {object}  handlers.ErrorResponse "Not the author"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /stories/{id} [delete]
func (h *Handlers) DeleteStory(c *gin.Context) {
	if err := h.stories.DeleteStory(c.Request.Context(), address(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// BindContract godoc
// @ID          bindContract
// @Summary     Attach a contract address to own story
// @Tags        Stories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                    true  "Story ID"
// @Param       body  body  handlers.ContractRequest  true  "Contract"
// @Success     200  {object}  handlers.StoryResponse
// @Failure     403  {object}  handlers.ErrorResponse "Not the author"
// @Router      /stories/{id}/contract [put]
func (h *Handlers) BindContract(c *gin.Context) {
	var req ContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "contract required")
		return
	}
	st, err := h.stories.BindContract(c.Request.Context(), address(c), c.Param("id"), req.Contract)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, StoryResponse{Story: st})
}

// StoryByContract godoc
// @ID          storyByContract
// @Summary     Find the story bound to a contract
// @Tags        Stories
// @Produce     json
// @Security    BearerAuth
// @Param       contract  path  string  true  "Contract address"
// @Success     200  {object}  handlers.StoryResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /contracts/{contract} [get]
func (h *Handlers) StoryByContract(c *gin.Context) {
	st, err := h.stories.StoryByContract(c.Request.Context(), c.Param("contract"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, StoryResponse{Story: st})
}

// SendWhiskey godoc
// @ID          sendWhiskey
// @Summary     Send one whiskey point to a story's author
// @Description Supports idempotency via the Idempotency-Key header; a replay returns the current balances without moving another point.
// @Tags        Whiskey
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"
// @Param       id               path    string  true   "Story ID"
// @Success     200  {object}  services.WhiskeyReceipt
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse "Insufficient points"
// @Failure     429  {object}  handlers.ErrorResponse "Daily whiskey limit reached"
// @Router      /stories/{id}/whiskey [post]
func (h *Handlers) SendWhiskey(c *gin.Context) {
	ctx := c.Request.Context()
	addr := address(c)
	id, claim, handled := h.claim(c)
	if handled {
		return
	}
	if id != "" {
		if rc, err := h.receipt(c, addr, id); err == nil {
			ok(c, http.StatusOK, rc)
			return
		}
	}

	rc, err := h.whiskey.SendWhiskey(ctx, addr, c.Param("id"))
	if err != nil {
		h.release(c, claim)
		failErr(c, err)
		return
	}
	h.complete(c, claim, rc.StoryID, http.StatusOK)
	ok(c, http.StatusOK, rc)
}

// receipt rebuilds a transfer receipt from current state for a replay.
func (h *Handlers) receipt(c *gin.Context, addr, storyID string) (*services.WhiskeyReceipt, error) {
	ctx := c.Request.Context()
	st, err := h.stories.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	bal, err := h.whiskey.Balance(ctx, addr)
	if err != nil {
		return nil, err
	}
	day, err := h.users.DailyState(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &services.WhiskeyReceipt{
		StoryID:       st.ID,
		FromAddress:   day.Address,
		ToAddress:     st.AuthorAddress,
		SenderBalance: bal,
		SentToday:     day.WhiskeySentCount,
		StoryPoints:   st.WhiskeyPoints,
	}, nil
}
