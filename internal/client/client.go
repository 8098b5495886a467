// Package client drives a bot over HTTP the way the game arbiter does.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/dominionbot/internal/protocol"
)

// APIError is returned for any non-200 answer from the bot.
type APIError struct {
	Status  int
	Detail  string
	Name    string
	Message string
}

func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("bot returned %d (%s): %s", e.Status, e.Name, e.Detail)
	}
	return fmt.Sprintf("bot returned %d: %s", e.Status, e.Detail)
}

// Client calls a single bot.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the bot at baseURL.
func NewClient(baseURL string, logger *log.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid bot URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid bot URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.WithPrefix("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name fetches the bot's display name.
func (c *Client) Name(ctx context.Context) (string, error) {
	var name string
	if err := c.do(ctx, http.MethodGet, "/name", "", nil, &name); err != nil {
		return "", err
	}
	return name, nil
}

// StartGame announces a new game.
func (c *Client) StartGame(ctx context.Context, gameID string) error {
	return c.expectOK(ctx, "/start_game", gameID)
}

// StartTurn announces the start of our turn.
func (c *Client) StartTurn(ctx context.Context, gameID string) error {
	return c.expectOK(ctx, "/start_turn", gameID)
}

// EndGame announces the end of the game.
func (c *Client) EndGame(ctx context.Context, gameID string) error {
	return c.expectOK(ctx, "/end_game", gameID)
}

// Play asks for the next action or purchase.
func (c *Client) Play(ctx context.Context, gameID string, game protocol.Game) (string, error) {
	return c.decideString(ctx, "/play", gameID, game)
}

// DiscardFromHand asks which card of hand to discard.
func (c *Client) DiscardFromHand(ctx context.Context, gameID string, hand []string) (string, error) {
	return c.decideString(ctx, "/discard_card_from_hand", gameID, protocol.Hand{Hand: hand})
}

// ConfirmDiscardFromHand asks whether card should be discarded.
func (c *Client) ConfirmDiscardFromHand(ctx context.Context, gameID, card string, hand []string) (bool, error) {
	return c.decideBool(ctx, "/confirm_discard_card_from_hand", gameID,
		protocol.CardNameAndHand{CardName: card, Hand: hand})
}

// ConfirmDiscardDeck asks whether the deck should be discarded.
func (c *Client) ConfirmDiscardDeck(ctx context.Context, gameID string) (bool, error) {
	return c.decideBool(ctx, "/confirm_discard_deck", gameID, nil)
}

// SkipCardReception asks whether to skip receiving card in hand.
func (c *Client) SkipCardReception(ctx context.Context, gameID, card string, hand []string) (bool, error) {
	return c.decideBool(ctx, "/skip_card_reception_in_hand", gameID,
		protocol.CardNameAndHand{CardName: card, Hand: hand})
}

// ChooseCardToReceive asks which candidate to gain into the discard pile.
func (c *Client) ChooseCardToReceive(ctx context.Context, gameID string, candidates []string) (string, error) {
	return c.decideString(ctx, "/choose_card_to_receive_in_discard", gameID,
		protocol.PossibleCards{PossibleCards: candidates})
}

// TrashMoneyCard asks which treasure to trash for a better one.
func (c *Client) TrashMoneyCard(ctx context.Context, gameID string, money []string) (string, error) {
	return c.decideString(ctx, "/trash_money_card_for_better_money_card", gameID,
		protocol.MoneyCardsInHand{MoneyInHand: money})
}

func (c *Client) expectOK(ctx context.Context, path, gameID string) error {
	var resp protocol.Response[string]
	if err := c.do(ctx, http.MethodGet, path, gameID, nil, &resp); err != nil {
		return err
	}
	if resp.Decision != protocol.DecisionOK {
		return fmt.Errorf("%s: unexpected decision %q", path, resp.Decision)
	}
	return nil
}

func (c *Client) decideString(ctx context.Context, path, gameID string, body any) (string, error) {
	var resp protocol.Response[string]
	if err := c.do(ctx, http.MethodPost, path, gameID, body, &resp); err != nil {
		return "", err
	}
	return resp.Decision, nil
}

func (c *Client) decideBool(ctx context.Context, path, gameID string, body any) (bool, error) {
	var resp protocol.Response[bool]
	if err := c.do(ctx, http.MethodPost, path, gameID, body, &resp); err != nil {
		return false, err
	}
	return resp.Decision, nil
}

func (c *Client) do(ctx context.Context, method, path, gameID string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := protocol.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if gameID != "" {
		req.Header.Set(protocol.HeaderGameID, gameID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("Callback answered", "path", path, "game", gameID, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if err := protocol.Decode(resp.Body, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var envelope protocol.ErrorResponse
	if err := protocol.Decode(bytes.NewReader(raw), &envelope); err != nil || envelope.Detail == "" {
		envelope.Detail = strings.TrimSpace(string(raw))
	}
	return &APIError{
		Status:  resp.StatusCode,
		Detail:  envelope.Detail,
		Name:    envelope.Name,
		Message: envelope.Message,
	}
}
