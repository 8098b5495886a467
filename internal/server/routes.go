package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lox/dominionbot/internal/cards"
	"github.com/lox/dominionbot/internal/credentials"
	"github.com/lox/dominionbot/internal/decisionlog"
	"github.com/lox/dominionbot/internal/protocol"
	"github.com/lox/dominionbot/internal/session"
	"github.com/lox/dominionbot/internal/strategy"
)

// routes wires every arbiter callback. GET / echoes this file.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /name", s.handleName)
	mux.HandleFunc("GET /start_game", s.handle(s.handleStartGame))
	mux.HandleFunc("GET /start_turn", s.handle(s.handleStartTurn))
	mux.HandleFunc("GET /end_game", s.handle(s.handleEndGame))

	mux.HandleFunc("POST /play", s.handle(s.handlePlay))
	mux.HandleFunc("POST /discard_card_from_hand", s.handle(s.handleDiscardFromHand))
	mux.HandleFunc("POST /confirm_discard_card_from_hand", s.handle(s.handleConfirmDiscardFromHand))
	mux.HandleFunc("POST /confirm_discard_deck", s.handle(s.handleConfirmDiscardDeck))
	mux.HandleFunc("POST /skip_card_reception_in_hand", s.handle(s.handleSkipCardReception))
	mux.HandleFunc("POST /choose_card_to_receive_in_discard", s.handle(s.handleChooseCardToReceive))
	mux.HandleFunc("POST /trash_money_card_for_better_money_card", s.handle(s.handleTrashMoneyCard))

	return mux
}

// callbackFunc handles one callback and returns the value to send as the decision.
type callbackFunc func(r *http.Request, gameID string) (any, error)

// handle adapts a callbackFunc, requiring X-Game-Id and wrapping the result
// in the {game_id, decision} envelope.
func (s *Server) handle(fn callbackFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := strings.TrimSpace(r.Header.Get(protocol.HeaderGameID))
		if gameID == "" {
			s.writeError(w, r, unprocessable(ErrMissingGameID))
			return
		}

		decision, err := fn(r, gameID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		switch d := decision.(type) {
		case bool:
			writeJSON(w, http.StatusOK, protocol.Response[bool]{GameID: gameID, Decision: d})
		case string:
			writeJSON(w, http.StatusOK, protocol.Response[string]{GameID: gameID, Decision: d})
		default:
			s.writeError(w, r, errors.New("callback produced an unsupported decision type"))
		}
	}
}

// decodeBody reads a required JSON payload, mapping failures to 422.
func decodeBody(r *http.Request, v any) error {
	if err := protocol.Decode(r.Body, v); err != nil {
		return unprocessable(err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleName answers with a bare JSON string; the arbiter sends no game id here.
func (s *Server) handleName(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.name)
}

func (s *Server) handleStartGame(r *http.Request, gameID string) (any, error) {
	s.store.StartGame(gameID)

	if s.creds != nil {
		key, err := s.creds.Assign(gameID)
		if err != nil {
			// The game still starts; /play reports the missing key.
			s.logger.Warn("Game started without a credential", "game", gameID, "error", err)
			return protocol.DecisionOK, nil
		}
		_ = s.store.Update(gameID, func(g *session.Game) error {
			g.Credential = key
			return nil
		})
		s.logger.Info("Game started", "game", gameID, "credential", credentials.Redact(key))
		return protocol.DecisionOK, nil
	}

	s.logger.Info("Game started", "game", gameID)
	return protocol.DecisionOK, nil
}

func (s *Server) handleStartTurn(r *http.Request, gameID string) (any, error) {
	g := s.store.StartTurn(gameID)
	s.logger.Info("Turn started", "game", gameID, "turn", g.Counters.Turn)
	return protocol.DecisionOK, nil
}

func (s *Server) handleEndGame(r *http.Request, gameID string) (any, error) {
	g, ok := s.store.EndGame(gameID)
	s.logger.Info("Game ended", "game", gameID, "turns", g.Counters.Turn, "known", ok)
	return protocol.DecisionOK, nil
}

func (s *Server) handlePlay(r *http.Request, gameID string) (any, error) {
	var game protocol.Game
	if err := decodeBody(r, &game); err != nil {
		return nil, err
	}
	player, ok := game.ActivePlayer()
	if !ok {
		return nil, badRequest(ErrNoActiveHand)
	}

	turn := strategy.Turn{GameID: gameID, Hand: player.Hand, Stock: &game.Stock}

	var (
		out    strategy.Outcome
		before session.Counters
		after  session.Counters
	)
	err := s.store.Update(gameID, func(g *session.Game) error {
		strategy.Prepare(s.strategy, turn, g)
		before = g.Counters
		var err error
		out, err = s.strategy.Decide(r.Context(), turn, g)
		after = g.Counters
		return err
	})

	switch {
	case errors.Is(err, strategy.ErrNoCredential):
		return nil, badRequest(err)
	case errors.Is(err, strategy.ErrCompletionFailed):
		return nil, unavailable(err)
	case err != nil:
		return nil, err
	}

	decision := out.Decision.String()
	s.logger.Info("Play",
		"game", gameID,
		"turn", after.Turn,
		"player", player.Name,
		"decision", decision,
		"actions", after.Actions,
		"buys", after.Buys,
		"coins", after.Coins)

	rec := decisionlog.Record{
		GameID:     gameID,
		Turn:       after.Turn,
		Strategy:   s.strategy.Name(),
		Hand:       cards.Quantities(player.Hand),
		Stock:      cards.Quantities(&game.Stock),
		Before:     before,
		After:      after,
		Prompt:     out.Prompt,
		Completion: out.Completion,
		Reasoning:  out.Reasoning,
		Decision:   decision,
		Timestamp:  s.clock.Now(),
	}
	if err := s.sink.Write(r.Context(), rec); err != nil {
		s.logger.Warn("Failed to record decision", "game", gameID, "turn", after.Turn, "error", err)
	}

	return decision, nil
}

// firstCard returns list[0], or an EmptyChoiceError naming field.
func firstCard(field string, list []protocol.CardName) (string, error) {
	if len(list) == 0 {
		return "", &EmptyChoiceError{Field: field}
	}
	return list[0], nil
}

func (s *Server) handleDiscardFromHand(r *http.Request, gameID string) (any, error) {
	var req protocol.Hand
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	card, err := firstCard("hand", req.Hand)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Discarding from hand", "game", gameID, "card", card)
	return card, nil
}

func (s *Server) handleConfirmDiscardFromHand(r *http.Request, gameID string) (any, error) {
	var req protocol.CardNameAndHand
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	s.logger.Info("Confirming discard", "game", gameID, "card", req.CardName)
	return true, nil
}

func (s *Server) handleConfirmDiscardDeck(r *http.Request, gameID string) (any, error) {
	s.logger.Info("Confirming deck discard", "game", gameID)
	return true, nil
}

func (s *Server) handleSkipCardReception(r *http.Request, gameID string) (any, error) {
	var req protocol.CardNameAndHand
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	s.logger.Info("Skipping card reception", "game", gameID, "card", req.CardName)
	return true, nil
}

func (s *Server) handleChooseCardToReceive(r *http.Request, gameID string) (any, error) {
	var req protocol.PossibleCards
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	card, err := firstCard("possible_cards", req.PossibleCards)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Choosing card to receive", "game", gameID, "card", card)
	return card, nil
}

func (s *Server) handleTrashMoneyCard(r *http.Request, gameID string) (any, error) {
	var req protocol.MoneyCardsInHand
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	card, err := firstCard("money_in_hand", req.MoneyInHand)
	if err != nil {
		return nil, err
	}
	for _, c := range req.MoneyInHand {
		if c == cards.Copper {
			card = c
			break
		}
	}
	s.logger.Info("Trashing money card", "game", gameID, "card", card)
	return card, nil
}
