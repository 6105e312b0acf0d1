package clients

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tip-gate-backend/internal/models"
)

// FarcasterEpoch is the zero point of hub message timestamps (2021-01-01T00:00:00Z)
const FarcasterEpoch int64 = 1609459200

// userDataTypeUsername is the hub user_data_type for the fname/username
const userDataTypeUsername = 6

// FromFarcasterTime converts hub seconds to wall time
func FromFarcasterTime(seconds int64) time.Time {
	return time.Unix(FarcasterEpoch+seconds, 0).UTC()
}

// ToFarcasterTime converts wall time to hub seconds
func ToFarcasterTime(t time.Time) int64 {
	return t.Unix() - FarcasterEpoch
}

// HubConfig configures a HubClient
type HubConfig struct {
	BaseURL           string
	APIKey            string
	RepliesPageSize   int
	AuthorPageSize    int
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	HTTPClient        HTTPDoer
}

// HubClient reads cast feeds from a Farcaster hub HTTP API
type HubClient struct {
	baseURL         string
	repliesPageSize int
	authorPageSize  int
	getter          *jsonGetter
}

// NewHubClient creates a new hub client
func NewHubClient(cfg HubConfig) *HubClient {
	g := newJSONGetter("hub", cfg.HTTPClient, cfg.Timeout, cfg.RequestsPerSecond, cfg.Burst)
	if cfg.APIKey != "" {
		g.headers["x-airstack-hubs"] = cfg.APIKey
	}
	return &HubClient{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		repliesPageSize: cfg.RepliesPageSize,
		authorPageSize:  cfg.AuthorPageSize,
		getter:          g,
	}
}

type hubMessagesResponse struct {
	Messages []hubMessage `json:"messages"`
}

type hubMessage struct {
	Data struct {
		FID         models.FID `json:"fid"`
		Timestamp   int64      `json:"timestamp"`
		CastAddBody *struct {
			Text         string `json:"text"`
			ParentCastID *struct {
				FID  models.FID `json:"fid"`
				Hash string     `json:"hash"`
			} `json:"parentCastId"`
		} `json:"castAddBody"`
	} `json:"data"`
}

type hubUserDataResponse struct {
	Data struct {
		UserDataBody struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"userDataBody"`
	} `json:"data"`
}

// GetReplies returns replies to a cast, newest first
func (c *HubClient) GetReplies(ctx context.Context, parent models.CastID) ([]models.TipMessage, error) {
	q := url.Values{}
	q.Set("fid", parent.FID.String())
	q.Set("hash", parent.Hash)
	q.Set("reverse", "true")
	q.Set("pageSize", strconv.Itoa(c.repliesPageSize))

	var resp hubMessagesResponse
	if err := c.getter.get(ctx, c.baseURL+"/v1/castsByParent?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to get replies: %w", err)
	}
	return toTipMessages(resp.Messages), nil
}

// GetAuthorCasts returns casts authored by fid, newest first
func (c *HubClient) GetAuthorCasts(ctx context.Context, fid models.FID) ([]models.TipMessage, error) {
	q := url.Values{}
	q.Set("fid", fid.String())
	q.Set("pageSize", strconv.Itoa(c.authorPageSize))
	q.Set("reverse", "true")

	var resp hubMessagesResponse
	if err := c.getter.get(ctx, c.baseURL+"/v1/castsByFid?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to get author casts: %w", err)
	}
	return toTipMessages(resp.Messages), nil
}

// GetUsername returns the username registered for fid
func (c *HubClient) GetUsername(ctx context.Context, fid models.FID) (string, error) {
	q := url.Values{}
	q.Set("fid", fid.String())
	q.Set("user_data_type", strconv.Itoa(userDataTypeUsername))

	var resp hubUserDataResponse
	if err := c.getter.get(ctx, c.baseURL+"/v1/userDataByFid?"+q.Encode(), &resp); err != nil {
		return "", fmt.Errorf("failed to get username: %w", err)
	}
	return resp.Data.UserDataBody.Value, nil
}

// toTipMessages keeps only cast-add messages, preserving feed order
func toTipMessages(messages []hubMessage) []models.TipMessage {
	out := make([]models.TipMessage, 0, len(messages))
	for _, m := range messages {
		body := m.Data.CastAddBody
		if body == nil {
			continue
		}
		out = append(out, models.TipMessage{
			AuthorFID: m.Data.FID,
			Timestamp: FromFarcasterTime(m.Data.Timestamp),
			Text:      body.Text,
			IsReply:   body.ParentCastID != nil && body.ParentCastID.Hash != "",
		})
	}
	return out
}
