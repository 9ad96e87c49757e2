package services

import (
	"github.com/tbourn/bottles-tavern/internal/config"
	"github.com/tbourn/bottles-tavern/internal/domain"
)

// QuotaPolicy decides whether a daily-limited action is still allowed.
// It has no side effects; the matching counter is raised separately with
// repo.IncrementIfBelow using the same limit.
type QuotaPolicy struct {
	MaxPublish int
	MaxFetch   int
	MaxWhiskey int
}

// NewQuotaPolicy builds a policy from the configured story limits.
func NewQuotaPolicy(l config.StoryLimits) QuotaPolicy {
	return QuotaPolicy{MaxPublish: l.MaxPublish, MaxFetch: l.MaxFetch, MaxWhiskey: l.MaxWhiskey}
}

// Limit returns the daily limit for action.
func (p QuotaPolicy) Limit(action domain.QuotaAction) int {
	switch action {
	case domain.ActionPublish:
		return p.MaxPublish
	case domain.ActionFetch:
		return p.MaxFetch
	case domain.ActionWhiskey:
		return p.MaxWhiskey
	}
	return 0
}

// Check returns a *QuotaExceededError when today's counter for action has
// reached its limit. A nil state counts as all zeros.
func (p QuotaPolicy) Check(action domain.QuotaAction, today *domain.UserState) error {
	used := 0
	if today != nil {
		used = today.Count(action)
	}
	if limit := p.Limit(action); used >= limit {
		return &QuotaExceededError{Action: action, Limit: limit}
	}
	return nil
}

// denied builds the error for a conditional increment that found the
// counter at its limit.
func (p QuotaPolicy) denied(action domain.QuotaAction) error {
	return &QuotaExceededError{Action: action, Limit: p.Limit(action)}
}
