package redeemclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPIssuer implements Issuer against the redemption service.
type HTTPIssuer struct {
	BaseURL string
	UserID  string
	Client  *http.Client
}

type issueBody struct {
	OfferID    string `json:"offer_id"`
	MerchantID string `json:"merchant_id"`
	DeviceTag  string `json:"device_tag,omitempty"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

type issueReply struct {
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type errorReply struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *HTTPIssuer) Issue(ctx context.Context, req IssueRequest) (*IssuedToken, error) {
	payload, err := json.Marshal(issueBody{
		OfferID:    req.OfferID,
		MerchantID: req.MerchantID,
		DeviceTag:  req.DeviceTag,
		TTLSeconds: int(req.TTL / time.Second),
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/v1/redeem/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-User-ID", h.UserID)

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusCreated {
		var reply errorReply
		if jsonErr := json.Unmarshal(body, &reply); jsonErr == nil && reply.Error.Message != "" {
			return nil, fmt.Errorf("issue token: %s", reply.Error.Message)
		}
		return nil, fmt.Errorf("issue token: http %d", resp.StatusCode)
	}

	var reply issueReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, err
	}
	return &IssuedToken{
		TokenID:   reply.TokenID,
		IssuedAt:  reply.IssuedAt,
		ExpiresAt: reply.ExpiresAt,
	}, nil
}
