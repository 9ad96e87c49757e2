// Auth HTTP handlers.
//
// Wallet login is a two-step exchange:
//   - POST /auth/challenge  returns a one-time message for the wallet to sign
//   - POST /auth/login      trades the signature for a bearer token
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ChallengeRequest is the payload for POST /auth/challenge.
type ChallengeRequest struct {
	Address string `json:"address" binding:"required" example:"0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"`
}

// ChallengeResponse carries the message to sign.
type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Address   string `json:"address" binding:"required" example:"0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"`
	Signature string `json:"signature" binding:"required" example:"0x4b1c..."`
}

// Challenge godoc
// @ID          authChallenge
// @Summary     Request a login challenge
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ChallengeRequest  true  "Wallet"
// @Success     200  {object}  handlers.ChallengeResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /auth/challenge [post]
func (h *Handlers) Challenge(c *gin.Context) {
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Address) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "address required")
		return
	}
	msg, err := h.auth.Challenge(c.Request.Context(), req.Address)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ChallengeResponse{Challenge: msg})
}

// Login godoc
// @ID          authLogin
// @Summary     Exchange a signed challenge for a token
// @Description The pending challenge is consumed even when the signature is rejected.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LoginRequest  true  "Signed challenge"
// @Success     200  {object}  auth.Session
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Address) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "address and signature required")
		return
	}
	s, err := h.auth.Login(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, s)
}
