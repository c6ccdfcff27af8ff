// Package client talks to the scrapbook REST API. It implements the
// editor's Store interface against a fixed base address so the interaction
// core never touches HTTP directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercrane/scrapbook/internal/scrapbook"
)

const defaultRequestTimeout = 30 * time.Second

var (
	errMissingBaseURL = errors.New("client: base url is required")

	// ErrCardNotFound mirrors the server's 404 for update and delete targets.
	ErrCardNotFound = errors.New("client: card not found")
)

// RemoteError carries the server's machine-readable failure code.
type RemoteError struct {
	StatusCode int
	Code       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("client: remote failure %d (%s)", e.StatusCode, e.Code)
}

// Config wires the HTTP store.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is the HTTP implementation of the editor's remote store.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

func kindPath(kind scrapbook.CardKind) string {
	return "/" + string(kind) + "s"
}

// ListCards fetches every card of one kind, newest first.
func (c *Client) ListCards(ctx context.Context, kind scrapbook.CardKind) ([]scrapbook.Card, error) {
	var cards []scrapbook.Card
	if err := c.do(ctx, http.MethodGet, kindPath(kind), nil, http.StatusOK, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

type createRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// CreateCard uploads a base64 data-URL image and returns the stored card.
func (c *Client) CreateCard(ctx context.Context, kind scrapbook.CardKind, imageDataURL string) (scrapbook.Card, error) {
	var card scrapbook.Card
	err := c.do(ctx, http.MethodPost, kindPath(kind), createRequest{ImageBase64: imageDataURL}, http.StatusCreated, &card)
	return card, err
}

type updateRequest struct {
	CreatedAt   string              `json:"createdAt"`
	Description string              `json:"description"`
	Note        string              `json:"note"`
	Stickers    []scrapbook.Overlay `json:"stickers"`
	Rachy       scrapbook.Ratings   `json:"rachy"`
	Davey       scrapbook.Ratings   `json:"davey"`
}

// UpdateCard sends the full card snapshot. The server applies it wholesale;
// last write wins.
func (c *Client) UpdateCard(ctx context.Context, card scrapbook.Card) (scrapbook.Card, error) {
	payload := updateRequest{
		CreatedAt:   card.CreatedAt.UTC().Format(time.RFC3339),
		Description: card.Description,
		Note:        card.Note,
		Stickers:    card.Overlays,
		Rachy:       card.Rachy,
		Davey:       card.Davey,
	}
	var updated scrapbook.Card
	err := c.do(ctx, http.MethodPut, kindPath(card.Kind)+"/"+card.ID, payload, http.StatusOK, &updated)
	return updated, err
}

// DeleteCard removes a card and its stored images.
func (c *Client) DeleteCard(ctx context.Context, kind scrapbook.CardKind, cardID string) error {
	return c.do(ctx, http.MethodDelete, kindPath(kind)+"/"+cardID, nil, http.StatusNoContent, nil)
}

// RegenerateOverlays asks the server for a fresh sticker set and returns the
// updated card snapshot.
func (c *Client) RegenerateOverlays(ctx context.Context, cardID string) (scrapbook.Card, error) {
	var card scrapbook.Card
	err := c.do(ctx, http.MethodPost, "/polaroids/"+cardID+"/stickers", nil, http.StatusOK, &card)
	return card, err
}

func (c *Client) do(ctx context.Context, method, path string, payload any, wantStatus int, out any) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("client: failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: failed to build request: %w", err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("client: request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != wantStatus {
		return c.remoteError(response)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("client: failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) remoteError(response *http.Response) error {
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	raw, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
	_ = json.Unmarshal(raw, &payload)

	code := payload.Code
	if code == "" {
		code = payload.Error
	}
	c.logger.Warn("remote call failed",
		zap.Int("status", response.StatusCode),
		zap.String("code", code))

	if response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrCardNotFound, code)
	}
	return &RemoteError{StatusCode: response.StatusCode, Code: code}
}
