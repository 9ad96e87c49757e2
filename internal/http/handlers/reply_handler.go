// Reply HTTP handlers.
//
// Endpoints:
//   - POST   /stories/{id}/replies  (reply to the author, or to to_address)
//   - GET    /stories/{id}/replies  (thread, oldest first)
//   - GET    /replies/inbox         (replies addressed to the caller; ?unread=1, ETag)
//   - PUT    /replies/{id}/read     DELETE /replies/{id}/read
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/bottles-tavern/internal/domain"
	"github.com/tbourn/bottles-tavern/internal/repo"
	"github.com/tbourn/bottles-tavern/internal/sysutil"
)

// ReplyRequest is the payload for POST /stories/{id}/replies. Without
// ToAddress the reply goes to the story's author.
type ReplyRequest struct {
	Content   string `json:"content" binding:"required" example:"Cheers to that."`
	ToAddress string `json:"to_address,omitempty" example:"0x70997970c51812dc3a010c7d01b50e0d17dc79c8"`
}

// ReplyResponse wraps a single reply.
type ReplyResponse struct {
	Reply *domain.Reply `json:"reply"`
}

// RepliesResponse wraps a list of replies.
type RepliesResponse struct {
	Replies []domain.Reply `json:"replies"`
}

// PostReply godoc
// @ID          postReply
// @Summary     Reply to a story
// @Tags        Replies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string                 false  "Idempotency key for safe retries"
// @Param       id               path    string                 true   "Story ID"
// @Param       body             body    handlers.ReplyRequest  true   "Reply"
// @Success     201  {object}  handlers.ReplyResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /stories/{id}/replies [post]
func (h *Handlers) PostReply(c *gin.Context) {
	ctx := c.Request.Context()
	id, claim, handled := h.claim(c)
	if handled {
		return
	}
	if id != "" {
		if prev, err := repo.GetReply(ctx, h.db, id); err == nil {
			ok(c, http.StatusCreated, ReplyResponse{Reply: prev})
			return
		}
	}

	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.release(c, claim)
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	var (
		r   *domain.Reply
		err error
	)
	if req.ToAddress != "" {
		r, err = h.replies.ReplyUser(ctx, address(c), c.Param("id"), req.Content, req.ToAddress)
	} else {
		r, err = h.replies.ReplyStory(ctx, address(c), c.Param("id"), req.Content)
	}
	if err != nil {
		h.release(c, claim)
		failErr(c, err)
		return
	}
	h.complete(c, claim, r.ID, http.StatusCreated)
	ok(c, http.StatusCreated, ReplyResponse{Reply: r})
}

// StoryReplies godoc
// @ID          storyReplies
// @Summary     Replies on a story
// @Tags        Replies
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Story ID"
// @Success     200  {object}  handlers.RepliesResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /stories/{id}/replies [get]
func (h *Handlers) StoryReplies(c *gin.Context) {
	items, err := h.replies.RepliesForStory(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RepliesResponse{Replies: items})
}

// Inbox godoc
// @ID          inbox
// @Summary     Replies addressed to the caller
// @Description Newest first. Supports weak ETag via If-None-Match.
// @Tags        Replies
// @Produce     json
// @Security    BearerAuth
// @Param       unread         query   string  false  "Only unread replies (1/true/yes)"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.RepliesResponse
// @Success     304  "Not Modified"
// @Router      /replies/inbox [get]
func (h *Handlers) Inbox(c *gin.Context) {
	addr := address(c)
	unread := sysutil.IsTruthy(c.Query("unread"))
	kind := "inbox"
	if unread {
		kind = "inbox-unread"
	}
	if h.notModified(c, kind, addr, repo.InboxStats) {
		return
	}
	items, err := h.replies.Inbox(c.Request.Context(), addr, unread)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RepliesResponse{Replies: items})
}

// MarkRead godoc
// @ID          markReplyRead
// @Summary     Mark a reply as read
// @Tags        Replies
// @Security    BearerAuth
// @Param       id  path  string  true  "Reply ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /replies/{id}/read [put]
func (h *Handlers) MarkRead(c *gin.Context) {
	if err := h.replies.MarkRead(c.Request.Context(), address(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// MarkUnread godoc
// @ID          markReplyUnread
// @Summary     Mark a reply as unread
// @Tags        Replies
// @Security    BearerAuth
// @Param       id  path  string  true  "Reply ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /replies/{id}/read [delete]
func (h *Handlers) MarkUnread(c *gin.Context) {
	if err := h.replies.MarkUnread(c.Request.Context(), address(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
