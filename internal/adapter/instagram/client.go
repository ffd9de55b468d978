// Package instagram talks to the Graph API business discovery endpoint and
// exposes the cached, rate-limited facade the analysis pipeline consumes.
package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jdh4601/ClosetBot/internal/domain"
)

// Graph API error codes for business discovery.
const (
	codeAccountNotFound = 80004
	codePrivateAccount  = 80001
)

// defaultRetryAfter applies when a 429 carries no usable retry-after header.
const defaultRetryAfter = 3600 * time.Second

const maxMediaLimit = 25

var profileFields = []string{
	"id", "username", "name", "followers_count", "follows_count",
	"media_count", "biography", "website", "profile_picture_url", "is_verified",
}

var mediaFields = []string{
	"id", "caption", "comments_count", "like_count", "media_type",
	"media_url", "thumbnail_url", "timestamp", "permalink",
}

// Client is the raw business discovery HTTP client. It maps Graph API errors
// to the domain taxonomy and performs no caching, limiting, or retrying.
type Client struct {
	httpc     *http.Client
	baseURL   string
	token     string
	accountID string
}

func NewClient(baseURL, token, accountID string, timeout time.Duration) (*Client, error) {
	if token == "" || accountID == "" {
		return nil, fmt.Errorf("op=instagram.new: %w: access token and business account id are required", domain.ErrInvalidArgument)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		accountID: accountID,
	}, nil
}

// graphError is the error object the Graph API returns inside the body.
type graphError struct {
	Message      string `json:"message"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
}

type graphMedia struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	CommentsCount int    `json:"comments_count"`
	LikeCount     *int   `json:"like_count"`
	MediaType     string `json:"media_type"`
	MediaURL      string `json:"media_url"`
	ThumbnailURL  string `json:"thumbnail_url"`
	Timestamp     string `json:"timestamp"`
	Permalink     string `json:"permalink"`
}

type graphProfile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	FollowersCount    int    `json:"followers_count"`
	FollowsCount      int    `json:"follows_count"`
	MediaCount        int    `json:"media_count"`
	Biography         string `json:"biography"`
	Website           string `json:"website"`
	ProfilePictureURL string `json:"profile_picture_url"`
	IsVerified        bool   `json:"is_verified"`
	Media             *struct {
		Data []graphMedia `json:"data"`
	} `json:"media"`
}

type discoveryResponse struct {
	BusinessDiscovery *graphProfile `json:"business_discovery"`
	Error             *graphError   `json:"error"`
}

// GetProfile fetches one public profile, optionally with its recent media.
// mediaLimit <= 0 skips media entirely; the API caps a single call at 25.
func (c *Client) GetProfile(ctx context.Context, handle string, mediaLimit int) (domain.DiscoveredProfile, error) {
	if mediaLimit > maxMediaLimit {
		mediaLimit = maxMediaLimit
	}

	fields := make([]string, 0, len(profileFields)+1)
	fields = append(fields, profileFields...)
	if mediaLimit > 0 {
		fields = append(fields, fmt.Sprintf("media.limit(%d){%s}", mediaLimit, strings.Join(mediaFields, ",")))
	}

	q := url.Values{}
	q.Set("fields", fmt.Sprintf("business_discovery.username(%s){%s}", handle, strings.Join(fields, ",")))
	q.Set("access_token", c.token)
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, c.accountID, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.DiscoveredProfile{}, fmt.Errorf("op=instagram.get_profile handle=%s: %w", handle, err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.DiscoveredProfile{}, ctx.Err()
		}
		return domain.DiscoveredProfile{}, &domain.DiscoveryError{Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := defaultRetryAfter
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, perr := strconv.Atoi(v); perr == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		slog.Warn("discovery api rate limit hit",
			slog.String("handle", handle),
			slog.Duration("retry_after", retryAfter))
		return domain.DiscoveredProfile{}, &domain.RateLimitedError{RetryAfter: retryAfter}
	}

	var body discoveryResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if body.Error != nil {
		return domain.DiscoveredProfile{}, mapGraphError(handle, resp.StatusCode, body.Error)
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.DiscoveredProfile{}, &domain.AccountNotFoundError{Handle: handle}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.DiscoveredProfile{}, &domain.DiscoveryError{
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
			Status:  resp.StatusCode,
		}
	}
	if decodeErr != nil {
		return domain.DiscoveredProfile{}, &domain.DiscoveryError{Message: fmt.Sprintf("malformed response: %v", decodeErr)}
	}
	if body.BusinessDiscovery == nil {
		return domain.DiscoveredProfile{}, &domain.AccountNotFoundError{Handle: handle}
	}
	return toDomain(body.BusinessDiscovery), nil
}

// ValidateAccount checks whether a handle is reachable via business
// discovery. Rate limits and transient failures leave Exists/IsBusiness nil.
func (c *Client) ValidateAccount(ctx context.Context, handle string) (domain.AccountValidation, error) {
	_, err := c.GetProfile(ctx, handle, 0)
	if err == nil {
		t := true
		return domain.AccountValidation{Valid: true, Exists: &t, IsBusiness: &t}, nil
	}

	f := false
	t := true
	switch {
	case isAccountNotFound(err):
		return domain.AccountValidation{Valid: false, Exists: &f, IsBusiness: &f, Error: "account not found"}, nil
	case isPrivateAccount(err):
		return domain.AccountValidation{Valid: false, Exists: &t, IsBusiness: &f, Error: "not a business/creator account"}, nil
	default:
		return domain.AccountValidation{Valid: false, Error: err.Error()}, err
	}
}

func mapGraphError(handle string, status int, ge *graphError) error {
	switch ge.Code {
	case codeAccountNotFound:
		return &domain.AccountNotFoundError{Handle: handle}
	case codePrivateAccount:
		return &domain.PrivateAccountError{Handle: handle}
	}
	code := strconv.Itoa(ge.Code)
	if ge.Code == 0 && ge.ErrorSubcode != 0 {
		code = strconv.Itoa(ge.ErrorSubcode)
	}
	msg := ge.Message
	if msg == "" {
		msg = "unknown error"
	}
	return &domain.DiscoveryError{Message: msg, Status: status, Code: code}
}

func toDomain(gp *graphProfile) domain.DiscoveredProfile {
	p := domain.DiscoveredProfile{
		ID:                gp.ID,
		Handle:            gp.Username,
		Name:              gp.Name,
		FollowersCount:    gp.FollowersCount,
		FollowsCount:      gp.FollowsCount,
		MediaCount:        gp.MediaCount,
		Biography:         gp.Biography,
		Website:           gp.Website,
		ProfilePictureURL: gp.ProfilePictureURL,
		IsVerified:        gp.IsVerified,
	}
	if gp.Media != nil {
		p.Media = make([]domain.DiscoveredMedia, 0, len(gp.Media.Data))
		for _, m := range gp.Media.Data {
			p.Media = append(p.Media, domain.DiscoveredMedia{
				ID:            m.ID,
				Caption:       m.Caption,
				LikeCount:     m.LikeCount,
				CommentsCount: m.CommentsCount,
				MediaType:     m.MediaType,
				MediaURL:      m.MediaURL,
				ThumbnailURL:  m.ThumbnailURL,
				Permalink:     m.Permalink,
				PostedAt:      parseTimestamp(m.Timestamp),
			})
		}
	}
	return p
}

// parseTimestamp accepts the Graph API's ISO-8601 variants, including the
// +0000 offset form RFC3339 rejects.
func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func isAccountNotFound(err error) bool {
	return errors.Is(err, domain.ErrAccountNotFound)
}

func isPrivateAccount(err error) bool {
	return errors.Is(err, domain.ErrPrivateAccount)
}
