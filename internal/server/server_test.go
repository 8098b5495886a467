package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/dominionbot/internal/cards"
	"github.com/lox/dominionbot/internal/credentials"
	"github.com/lox/dominionbot/internal/decisionlog"
	"github.com/lox/dominionbot/internal/llm"
	"github.com/lox/dominionbot/internal/protocol"
	"github.com/lox/dominionbot/internal/session"
	"github.com/lox/dominionbot/internal/strategy"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newHeuristicServer(opts ...Option) *Server {
	logger := testLogger()
	return NewServer(logger, session.NewStore(nil), strategy.NewHeuristic(logger, nil, nil), opts...)
}

// call sends one request through the handler. body may be nil, a string of
// raw JSON, or any value to encode.
func call(t *testing.T, h http.Handler, method, path, gameID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if gameID != "" {
		req.Header.Set(protocol.HeaderGameID, gameID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T bool | string](t *testing.T, rec *httptest.ResponseRecorder) protocol.Response[T] {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp protocol.Response[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func playPayload(hand, stock map[string]int) protocol.Game {
	return protocol.Game{
		Players: []protocol.Player{
			{Name: "opponent"},
			{Name: "us", Hand: &protocol.Cards{Quantities: hand}},
		},
		Stock: protocol.Cards{Quantities: stock},
	}
}

func play(t *testing.T, h http.Handler, gameID string, hand, stock map[string]int) string {
	t.Helper()
	return decodeResponse[string](t, call(t, h, http.MethodPost, "/play", gameID, playPayload(hand, stock))).Decision
}

func TestName(t *testing.T) {
	h := newHeuristicServer().Handler()

	rec := call(t, h, http.MethodGet, "/name", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"Les Variables 2"`, rec.Body.String())

	h = newHeuristicServer(WithName("Smithy Bot")).Handler()
	rec = call(t, h, http.MethodGet, "/name", "", nil)
	assert.JSONEq(t, `"Smithy Bot"`, rec.Body.String())
}

func TestLifecycleCallbacksAnswerOK(t *testing.T) {
	h := newHeuristicServer().Handler()

	for _, path := range []string{"/start_game", "/start_turn", "/end_game"} {
		rec := call(t, h, http.MethodGet, path, "game-1", nil)
		assert.JSONEq(t, `{"game_id":"game-1","decision":"OK"}`, rec.Body.String(), path)
	}
}

func TestSmithyScenarioEndToEnd(t *testing.T) {
	srv := newHeuristicServer()
	h := srv.Handler()
	hand := map[string]int{cards.Copper: 5}
	stock := map[string]int{cards.Smithy: 10, cards.Estate: 8}

	call(t, h, http.MethodGet, "/start_game", "g", nil)
	call(t, h, http.MethodGet, "/start_turn", "g", nil)

	assert.Equal(t, "BUY smithy", play(t, h, "g", hand, stock))
	assert.Equal(t, "END_TURN", play(t, h, "g", hand, stock))

	// A new turn restores the buy
	call(t, h, http.MethodGet, "/start_turn", "g", nil)
	assert.Equal(t, "BUY smithy", play(t, h, "g", hand, stock))
	assert.Equal(t, 2, srv.store.Snapshot("g").Counters.Turn)
}

func TestPlayFairgroundsFirst(t *testing.T) {
	h := newHeuristicServer().Handler()
	call(t, h, http.MethodGet, "/start_turn", "g", nil)

	got := play(t, h, "g",
		map[string]int{cards.Fairgrounds: 1, cards.Gold: 3},
		map[string]int{cards.Province: 8})
	assert.Equal(t, "ACTION fairgrounds", got)

	// The action is spent, so the buy comes next
	got = play(t, h, "g",
		map[string]int{cards.Gold: 3},
		map[string]int{cards.Province: 8, cards.Platinum: 12})
	assert.Equal(t, "BUY platinum", got)
}

func TestPlayWithoutStartCreatesFreshRecord(t *testing.T) {
	srv := newHeuristicServer()
	h := srv.Handler()

	got := play(t, h, "never-started", map[string]int{cards.Silver: 2}, map[string]int{cards.Smithy: 1})
	assert.Equal(t, "BUY smithy", got)
	assert.Equal(t, 0, srv.store.Snapshot("never-started").Counters.Turn)
}

func TestGamesAreIsolated(t *testing.T) {
	h := newHeuristicServer().Handler()
	hand := map[string]int{cards.Gold: 2}
	stock := map[string]int{cards.Gold: 10}

	assert.Equal(t, "BUY gold", play(t, h, "a", hand, stock))
	assert.Equal(t, "END_TURN", play(t, h, "a", hand, stock))
	assert.Equal(t, "BUY gold", play(t, h, "b", hand, stock), "game b has its own buy")
}

func TestEndGameForgetsState(t *testing.T) {
	srv := newHeuristicServer()
	h := srv.Handler()
	hand := map[string]int{cards.Gold: 2}
	stock := map[string]int{cards.Gold: 10}

	assert.Equal(t, "BUY gold", play(t, h, "g", hand, stock))
	call(t, h, http.MethodGet, "/end_game", "g", nil)
	assert.Equal(t, 0, srv.store.Len())

	// A stale id gets a fresh record
	assert.Equal(t, "BUY gold", play(t, h, "g", hand, stock))
}

func TestConcurrentGames(t *testing.T) {
	srv := newHeuristicServer()
	h := srv.Handler()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for turn := 0; turn < 5; turn++ {
				req := httptest.NewRequest(http.MethodGet, "/start_turn", nil)
				req.Header.Set(protocol.HeaderGameID, id)
				h.ServeHTTP(httptest.NewRecorder(), req)

				for j := 0; j < 3; j++ {
					data, _ := json.Marshal(playPayload(map[string]int{cards.Gold: 2}, map[string]int{cards.Gold: 10}))
					req := httptest.NewRequest(http.MethodPost, "/play", bytes.NewReader(data))
					req.Header.Set(protocol.HeaderGameID, id)
					h.ServeHTTP(httptest.NewRecorder(), req)
				}
			}
		}(fmt.Sprintf("game-%d", i))
	}
	wg.Wait()

	assert.Equal(t, 20, srv.store.Len())
	for i := 0; i < 20; i++ {
		g := srv.store.Snapshot(fmt.Sprintf("game-%d", i))
		assert.Equal(t, 5, g.Counters.Turn)
		assert.Equal(t, 0, g.Counters.Buys)
	}
}

func TestRequestFaults(t *testing.T) {
	h := newHeuristicServer().Handler()

	tests := []struct {
		name   string
		method string
		path   string
		gameID string
		body   any
		status int
	}{
		{"missing game id", http.MethodGet, "/start_game", "", nil, http.StatusUnprocessableEntity},
		{"missing game id on play", http.MethodPost, "/play", "", playPayload(nil, nil), http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPost, "/play", "g", `{"players": [`, http.StatusUnprocessableEntity},
		{"empty body", http.MethodPost, "/play", "g", nil, http.StatusUnprocessableEntity},
		{"wrong field type", http.MethodPost, "/discard_card_from_hand", "g", `{"hand": "copper"}`, http.StatusUnprocessableEntity},
		{"no active hand", http.MethodPost, "/play", "g", protocol.Game{Players: []protocol.Player{{Name: "x"}}}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, h, tt.method, tt.path, tt.gameID, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body protocol.DetailResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Detail)
		})
	}
}

func TestMethodMismatch(t *testing.T) {
	h := newHeuristicServer().Handler()
	rec := call(t, h, http.MethodGet, "/play", "g", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDiscardAndChoiceCallbacks(t *testing.T) {
	h := newHeuristicServer().Handler()

	rec := call(t, h, http.MethodPost, "/discard_card_from_hand", "g",
		protocol.Hand{Hand: []string{"estate", "copper"}})
	assert.Equal(t, "estate", decodeResponse[string](t, rec).Decision)

	rec = call(t, h, http.MethodPost, "/choose_card_to_receive_in_discard", "g",
		protocol.PossibleCards{PossibleCards: []string{"silver", "gold"}})
	assert.Equal(t, "silver", decodeResponse[string](t, rec).Decision)

	rec = call(t, h, http.MethodPost, "/trash_money_card_for_better_money_card", "g",
		protocol.MoneyCardsInHand{MoneyInHand: []string{"silver", "copper"}})
	assert.Equal(t, "copper", decodeResponse[string](t, rec).Decision)

	rec = call(t, h, http.MethodPost, "/trash_money_card_for_better_money_card", "g",
		protocol.MoneyCardsInHand{MoneyInHand: []string{"silver", "gold"}})
	assert.Equal(t, "silver", decodeResponse[string](t, rec).Decision)
}

func TestConfirmCallbacksAffirm(t *testing.T) {
	h := newHeuristicServer().Handler()
	payload := protocol.CardNameAndHand{CardName: "village", Hand: []string{"copper"}}

	for path, body := range map[string]any{
		"/confirm_discard_card_from_hand": payload,
		"/skip_card_reception_in_hand":    payload,
		"/confirm_discard_deck":           nil,
	} {
		rec := call(t, h, http.MethodPost, path, "g", body)
		assert.JSONEq(t, `{"game_id":"g","decision":true}`, rec.Body.String(), path)
	}
}

func TestEmptyChoiceIsInternalError(t *testing.T) {
	h := newHeuristicServer().Handler()

	rec := call(t, h, http.MethodPost, "/discard_card_from_hand", "g", protocol.Hand{Hand: []string{}})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body protocol.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Oops!", body.Message)
	assert.Equal(t, "EmptyChoiceError", body.Name)
	assert.Contains(t, body.Detail, "hand is empty")
}

type panickingStrategy struct{}

func (panickingStrategy) Name() string { return "panic" }

func (panickingStrategy) Decide(context.Context, strategy.Turn, *session.Game) (strategy.Outcome, error) {
	panic("strategy exploded")
}

func TestPanicIsRecovered(t *testing.T) {
	srv := NewServer(testLogger(), session.NewStore(nil), panickingStrategy{})
	h := srv.Handler()

	rec := call(t, h, http.MethodPost, "/play", "g", playPayload(map[string]int{cards.Copper: 1}, nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body protocol.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Oops!", body.Message)
	assert.Equal(t, "strategy exploded", body.Detail)
	assert.Equal(t, "PanicError", body.Name)

	// The game lock was released and the server keeps answering
	rec = call(t, h, http.MethodGet, "/start_turn", "g", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorName(t *testing.T) {
	assert.Equal(t, "Error", errorName(errors.New("plain")))
	assert.Equal(t, "EmptyChoiceError", errorName(fmt.Errorf("wrapped: %w", &EmptyChoiceError{Field: "x"})))
	assert.Equal(t, "PanicError", errorName(&PanicError{Value: 1}))
}

// scriptedCompleter answers every request with answer, or fails with err.
type scriptedCompleter struct {
	mu       sync.Mutex
	answer   string
	err      error
	requests []llm.Request
}

func (c *scriptedCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return c.answer, c.err
}

func newLLMServer(c llm.Completer, opts ...Option) *Server {
	logger := testLogger()
	return NewServer(logger, session.NewStore(nil), strategy.NewLLM(c, logger), opts...)
}

func TestLLMAssignsCredentialAtGameStart(t *testing.T) {
	c := &scriptedCompleter{answer: "BUY gold"}
	srv := newLLMServer(c, WithCredentials(credentials.Static("sk-test-key")))
	h := srv.Handler()

	call(t, h, http.MethodGet, "/start_game", "g", nil)
	call(t, h, http.MethodGet, "/start_turn", "g", nil)

	got := play(t, h, "g", map[string]int{cards.Gold: 2}, map[string]int{cards.Gold: 10})
	assert.Equal(t, "BUY gold", got)
	require.Len(t, c.requests, 1)
	assert.Equal(t, "sk-test-key", c.requests[0].APIKey)

	g := srv.store.Snapshot("g")
	assert.Equal(t, 0, g.Counters.Coins)
	assert.Equal(t, 0, g.Counters.Buys)

	// Ending the game drops the credential with the record
	call(t, h, http.MethodGet, "/end_game", "g", nil)
	rec := call(t, h, http.MethodPost, "/play", "g", playPayload(map[string]int{cards.Gold: 1}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLLMWithoutCredentialIsClientError(t *testing.T) {
	c := &scriptedCompleter{answer: "END_TURN"}
	h := newLLMServer(c).Handler()

	call(t, h, http.MethodGet, "/start_game", "g", nil)
	rec := call(t, h, http.MethodPost, "/play", "g", playPayload(map[string]int{cards.Copper: 1}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no API key")
	assert.Empty(t, c.requests)
}

func TestLLMEmptyPoolFailsOnPlay(t *testing.T) {
	c := &scriptedCompleter{answer: "END_TURN"}
	h := newLLMServer(c, WithCredentials(credentials.Static(""))).Handler()

	rec := call(t, h, http.MethodGet, "/start_game", "g", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, protocol.DecisionOK, decodeResponse[string](t, rec).Decision)

	rec = call(t, h, http.MethodPost, "/play", "g", playPayload(map[string]int{cards.Copper: 1}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, c.requests)
}

func TestLLMRecordShowsSeededCoins(t *testing.T) {
	c := &scriptedCompleter{answer: "BUY silver"}
	sink := &memorySink{}
	h := newLLMServer(c, WithCredentials(credentials.Static("sk-test-key")), WithDecisionSink(sink)).Handler()

	hand := map[string]int{cards.Gold: 1, cards.Copper: 2}
	worth := cards.MoneyValue(&protocol.Cards{Quantities: hand})

	call(t, h, http.MethodGet, "/start_game", "g", nil)
	call(t, h, http.MethodGet, "/start_turn", "g", nil)
	assert.Equal(t, "BUY silver", play(t, h, "g", hand, map[string]int{cards.Silver: 10}))

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, worth, rec.Before.Coins, "counters before the decision include the hand's treasure")
	assert.Contains(t, rec.Prompt, fmt.Sprintf("Coins available: %d", worth))
	assert.Equal(t, rec.Before.Buys-1, rec.After.Buys)
}

func TestLLMCompletionFailureIsUnavailable(t *testing.T) {
	c := &scriptedCompleter{err: errors.New("upstream timeout")}
	h := newLLMServer(c, WithCredentials(credentials.Static("sk-test-key"))).Handler()

	call(t, h, http.MethodGet, "/start_game", "g", nil)
	rec := call(t, h, http.MethodPost, "/play", "g", playPayload(map[string]int{cards.Copper: 1}, nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body protocol.DetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Detail, "upstream timeout")
}

type memorySink struct {
	mu      sync.Mutex
	records []decisionlog.Record
	err     error
}

func (m *memorySink) Write(_ context.Context, rec decisionlog.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

func TestPlayWritesDecisionRecord(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	sink := &memorySink{}

	h := newHeuristicServer(WithDecisionSink(sink), WithClock(clock)).Handler()
	call(t, h, http.MethodGet, "/start_turn", "g", nil)
	play(t, h, "g", map[string]int{cards.Copper: 5}, map[string]int{cards.Smithy: 10})

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, "g", rec.GameID)
	assert.Equal(t, 1, rec.Turn)
	assert.Equal(t, "heuristic", rec.Strategy)
	assert.Equal(t, "BUY smithy", rec.Decision)
	assert.Equal(t, session.TurnStart(1), rec.Before)
	assert.Equal(t, 0, rec.After.Buys)
	assert.Equal(t, map[string]int{cards.Copper: 5}, rec.Hand)
	assert.NotEmpty(t, rec.Reasoning)
	assert.True(t, clock.Now().Equal(rec.Timestamp))
}

func TestPlayWritesDecisionFiles(t *testing.T) {
	dir := t.TempDir()
	sink, err := decisionlog.NewFileSink(dir, nil)
	require.NoError(t, err)

	h := newHeuristicServer(WithDecisionSink(sink)).Handler()
	call(t, h, http.MethodGet, "/start_turn", "g", nil)
	for i := 0; i < 3; i++ {
		play(t, h, "g", map[string]int{cards.Copper: 5}, map[string]int{cards.Smithy: 10})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "one file per /play call")
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.Name(), "g_turn001_"), e.Name())
	}
}

func TestSinkFailureDoesNotFailPlay(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	h := newHeuristicServer(WithDecisionSink(sink)).Handler()

	got := play(t, h, "g", map[string]int{cards.Gold: 2}, map[string]int{cards.Gold: 1})
	assert.Equal(t, "BUY gold", got)
}

func TestIndexEchoesRoutes(t *testing.T) {
	h := newHeuristicServer().Handler()

	rec := call(t, h, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/trash_money_card_for_better_money_card")
	assert.Contains(t, rec.Body.String(), "heuristic")

	rec = call(t, h, http.MethodGet, "/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := call(t, newHeuristicServer().Handler(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServeAndShutdown(t *testing.T) {
	srv := newHeuristicServer()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-done)
}
