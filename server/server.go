// Package server exposes the Slack slash-command endpoint and dispatches
// parsed commands to the session registry.
package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gammonbot/slackgammon/logger"
	"github.com/gammonbot/slackgammon/manager"
)

// requiredSlackParams are the form fields every slash-command request must
// carry.
var requiredSlackParams = []string{
	"user_id",
	"user_name",
	"channel_id",
}

// Server handles inbound slash-command webhooks.
type Server struct {
	registry *manager.Registry
	token    string
	log      *slog.Logger
}

// New creates a Server dispatching to registry, authenticating requests
// against the shared slash-command token.
func New(registry *manager.Registry, token string) *Server {
	return &Server{
		registry: registry,
		token:    token,
		log:      logger.WithComponent("server"),
	}
}

// Handler returns the HTTP handler for the slash-command endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /slackgammon", s.handleCommand)
	return mux
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Malformed form body.", http.StatusBadRequest)
		return
	}

	token := r.PostFormValue("token")
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		http.Error(w, "Missing or invalid token.", http.StatusForbidden)
		return
	}

	for _, k := range requiredSlackParams {
		if r.PostFormValue(k) == "" {
			http.Error(w, fmt.Sprintf("Missing required Slack parameter: %s", k), http.StatusBadRequest)
			return
		}
	}

	fields := strings.Fields(r.PostFormValue("text"))
	if len(fields) == 0 {
		http.Error(w, "No command provided.", http.StatusBadRequest)
		return
	}

	name, params := fields[0], fields[1:]
	if _, ok := manager.Lookup(name); !ok {
		http.Error(w, "Invalid command.", http.StatusBadRequest)
		return
	}

	caller := r.PostFormValue("user_name")
	channel := r.PostFormValue("channel_id")
	ctx := r.Context()

	s.log.Debug("dispatching command", "command", name, "caller", caller, "channel", channel)

	var body string
	var err error
	switch name {
	case "help":
		body = s.registry.Help()
	case "info":
		body = s.registry.Info()
	case "new":
		err = s.registry.NewGame(ctx, caller, channel, params)
	case "quit":
		err = s.registry.Quit(ctx, caller, channel)
	default:
		err = s.registry.RunCommand(ctx, name, params, caller, channel)
	}

	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.log.Error("command failed", "command", name, "caller", caller, "error", err)
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Write([]byte(body))
}

// statusFor maps registry errors to slash-command response categories.
func statusFor(err error) int {
	var (
		forbiddenErr  *manager.ForbiddenError
		conflictErr   *manager.ConflictError
		validationErr *manager.ValidationError
		capacityErr   *manager.CapacityError
	)
	switch {
	case errors.As(err, &forbiddenErr), errors.As(err, &conflictErr):
		return http.StatusForbidden
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &capacityErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
