package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"runtime/debug"

	"github.com/lox/dominionbot/internal/protocol"
)

// Error is a fault the arbiter should see with a specific status and a
// {"detail": ...} body.
type Error struct {
	Status int
	Err    error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func badRequest(err error) error    { return &Error{Status: http.StatusBadRequest, Err: err} }
func unprocessable(err error) error { return &Error{Status: http.StatusUnprocessableEntity, Err: err} }
func unavailable(err error) error   { return &Error{Status: http.StatusServiceUnavailable, Err: err} }

var (
	// ErrMissingGameID is returned when a callback arrives without X-Game-Id.
	ErrMissingGameID = fmt.Errorf("missing %s header", protocol.HeaderGameID)
	// ErrNoActiveHand is returned when no player in a /play payload has a hand.
	ErrNoActiveHand = errors.New("no active player hand found in game state")
)

// EmptyChoiceError is raised when a callback must pick a card from an empty list.
type EmptyChoiceError struct {
	Field string
}

func (e *EmptyChoiceError) Error() string {
	return fmt.Sprintf("%s is empty, nothing to choose", e.Field)
}

// PanicError carries a recovered panic value through the 500 path.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprint(e.Value) }

// errorName returns the type name reported in the 500 envelope, looking
// through wrapping for the first named error type.
func errorName(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		t := reflect.TypeOf(e)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.PkgPath() != "errors" && t.PkgPath() != "fmt" && t.Name() != "" {
			return t.Name()
		}
	}
	return "Error"
}

// writeError maps err to its status code and envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		s.logger.Warn("Callback rejected",
			"path", r.URL.Path,
			"game", r.Header.Get(protocol.HeaderGameID),
			"status", httpErr.Status,
			"error", err)
		writeJSON(w, httpErr.Status, protocol.DetailResponse{Detail: httpErr.Error()})
		return
	}

	s.logger.Error("Callback failed",
		"path", r.URL.Path,
		"game", r.Header.Get(protocol.HeaderGameID),
		"error", err)
	writeJSON(w, http.StatusInternalServerError, protocol.ErrorResponse{
		Message: "Oops!",
		Detail:  err.Error(),
		Name:    errorName(err),
	})
}

// recoverer turns a panic in any handler into the generic 500 envelope.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err, ok := rec.(error)
			if !ok {
				err = &PanicError{Value: rec}
			}
			s.logger.Error("Recovered from panic", "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
			s.writeError(w, r, err)
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := protocol.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
