package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrAccountNotFound = errors.New("account not found")
	ErrPrivateAccount  = errors.New("private account")
	ErrDiscovery       = errors.New("discovery api error")
	ErrInternal        = errors.New("internal error")
)

// AccountNotFoundError: the handle does not exist or is not reachable via
// business discovery. Terminal for the affected influencer.
type AccountNotFoundError struct {
	Handle string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account @%s not found or not accessible", e.Handle)
}

func (e *AccountNotFoundError) Unwrap() error { return ErrAccountNotFound }

// PrivateAccountError: the handle exists but is private or not a
// business/creator account. Terminal for the affected influencer.
type PrivateAccountError struct {
	Handle string
}

func (e *PrivateAccountError) Error() string {
	return fmt.Sprintf("account @%s is private or not a business/creator account", e.Handle)
}

func (e *PrivateAccountError) Unwrap() error { return ErrPrivateAccount }

// RateLimitedError carries the upstream retry hint. The retry wrapper sleeps
// min(RetryAfter, policy max delay) instead of its backoff schedule.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// DiscoveryError is any other discovery API or transport failure. Retryable.
type DiscoveryError struct {
	Message string
	Status  int
	Code    string
}

func (e *DiscoveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("discovery api: %s (status=%d code=%s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("discovery api: %s", e.Message)
}

func (e *DiscoveryError) Unwrap() error { return ErrDiscovery }

// IsTerminalAccountError reports whether err must not be retried and should
// skip the influencer it belongs to.
func IsTerminalAccountError(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrPrivateAccount)
}
