// User HTTP handlers.
//
// Endpoints scoped to the calling wallet:
//   - GET    /users/me             (profile, created on first sight)
//   - GET    /users/me/state       (today's counters)
//   - GET    /users/me/whiskey     (current balance)
//   - GET    /users/me/liked       (liked stories)
//   - GET    /users/me/received    (received stories)
//   - GET    /users/me/intimacy
//   - PUT    /users/me/intimacy
//   - POST   /users/me/onboarded
//   - PUT    /stories/{id}/like     DELETE /stories/{id}/like
//   - PUT    /stories/{id}/received DELETE /stories/{id}/received
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/bottles-tavern/internal/domain"
)

// StoriesResponse wraps a list of stories.
type StoriesResponse struct {
	Stories []domain.Story `json:"stories"`
}

// IntimacyRequest is the payload for PUT /users/me/intimacy.
type IntimacyRequest struct {
	Value *int `json:"value" binding:"required" example:"7"`
}

// IntimacyResponse carries an intimacy score.
type IntimacyResponse struct {
	Value int `json:"value" example:"7"`
}

// BalanceResponse carries a whiskey balance.
type BalanceResponse struct {
	WhiskeyPoints int `json:"whiskey_points" example:"10"`
}

// GetMe godoc
// @ID          getMe
// @Summary     Current profile
// @Description Returns the caller's profile, creating it on first access.
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /users/me [get]
func (h *Handlers) GetMe(c *gin.Context) {
	u, err := h.users.GetUser(c.Request.Context(), address(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// DailyState godoc
// @ID          dailyState
// @Summary     Today's counters
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.UserState
// @Router      /users/me/state [get]
func (h *Handlers) DailyState(c *gin.Context) {
	st, err := h.users.DailyState(c.Request.Context(), address(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// Balance godoc
// @ID          whiskeyBalance
// @Summary     Whiskey balance
// @Tags        Whiskey
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.BalanceResponse
// @Router      /users/me/whiskey [get]
func (h *Handlers) Balance(c *gin.Context) {
	n, err := h.whiskey.Balance(c.Request.Context(), address(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, BalanceResponse{WhiskeyPoints: n})
}

// LikedStories godoc
// @ID          likedStories
// @Summary     Liked stories
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.StoriesResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/me/liked [get]
func (h *Handlers) LikedStories(c *gin.Context) {
	items, err := h.users.LikedStories(c.Request.Context(), address(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, StoriesResponse{Stories: items})
}

// ReceivedStories godoc
// @ID          receivedStories
// @Summary     Received stories
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.StoriesResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/me/received [get]
func (h *Handlers) ReceivedStories(c *gin.Context) {
	items, err := h.users.ReceivedStories(c.Request.Context(), address(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, StoriesResponse{Stories: items})
}

// GetIntimacy godoc
// @ID          getIntimacy
// @Summary     Intimacy score
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.IntimacyResponse
// @Router      /users/me/intimacy [get]
func (h *Handlers) GetIntimacy(c *gin.Context) {
	v, err := h.users.Intimacy(c.Request.Context(), address(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, IntimacyResponse{Value: v})
}

// PutIntimacy godoc
// @ID          putIntimacy
// @Summary     Set intimacy score
// @Tags        Users
// @Accept      json
// @Security    BearerAuth
// @Param       body  body  handlers.IntimacyRequest  true  "New score"
// @Success     204
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /users/me/intimacy [put]
func (h *Handlers) PutIntimacy(c *gin.Context) {
	var req IntimacyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value required")
		return
	}
	if err := h.users.UpdateIntimacy(c.Request.Context(), address(c), *req.Value); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// CompleteOnboarding godoc
// @ID          completeOnboarding
// @Summary     Clear the new-user flag
// @Tags        Users
// @Security    BearerAuth
// @Success     204
// @Router      /users/me/onboarded [post]
func (h *Handlers) CompleteOnboarding(c *gin.Context) {
	if err := h.users.CompleteOnboarding(c.Request.Context(), address(c)); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// Like godoc
// @ID          likeStory
// @Summary     Like a story
// @Tags        Users
// @Security    BearerAuth
// @Param       id  path  string  true  "Story ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse "Already liked"
// @Router      /stories/{id}/like [put]
func (h *Handlers) Like(c *gin.Context) {
	h.toggle(c, h.users.MarkLiked)
}

// Unlike godoc
// @ID          unlikeStory
// @Summary     Remove a like
// @Tags        Users
// @Security    BearerAuth
// @Param       id  path  string  true  "Story ID"
// @Success     204
// @Failure     409  {object}  handlers.ErrorResponse "Not liked"
// @Router      /stories/{id}/like [delete]
func (h *Handlers) Unlike(c *gin.Context) {
	h.toggle(c, h.users.UnmarkLiked)
}

// MarkReceived godoc
// @ID          markReceived
// @Summary     Mark a story as received
// @Tags        Users
// @Security    BearerAuth
// @Param       id  path  string  true  "Story ID"
// @Success     204
// @Failure     409  {object}  handlers.ErrorResponse "Already received"
// @Router      /stories/{id}/received [put]
func (h *Handlers) MarkReceived(c *gin.Context) {
	h.toggle(c, h.users.MarkReceived)
}

// UnmarkReceived godoc
// @ID          unmarkReceived
// @Summary     Unmark a received story
// @Tags        Users
// @Security    BearerAuth
// @Param       id  path  string  true  "Story ID"
// @Success     204
// @Failure     409  {object}  handlers.ErrorResponse "Not received"
// @Router      /stories/{id}/received [delete]
func (h *Handlers) UnmarkReceived(c *gin.Context) {
	h.toggle(c, h.users.UnmarkReceived)
}

func (h *Handlers) toggle(c *gin.Context, fn func(ctx context.Context, address, storyID string) error) {
	if err := fn(c.Request.Context(), address(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
