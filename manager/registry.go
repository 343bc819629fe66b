// Package manager multiplexes gnubg engine processes across concurrent
// games: it enforces capacity, ownership, and turn order, relays engine
// output to Slack, and retires games the engine reports as finished.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gammonbot/slackgammon/logger"
)

// Slack message templates. Engine output is relayed verbatim inside code
// fences.
const (
	newGameTemplate = "%s started a new game against %s:\n```\n%s```"
	commandTemplate = "%s attempted to `%s`:\n```\n%s```"
	quitTemplate    = "%s quit game against %s"
	infoTemplate    = "There are currently %d/%d games:\n%s"
)

// Notifier delivers outbound notifications. Delivery is best-effort: the
// registry logs failures and never fails a command because of one.
type Notifier interface {
	Post(ctx context.Context, text, channel string) error
}

// EngineProcess is the registry's view of one running engine.
type EngineProcess interface {
	Run(text string) ([]string, error)
	Terminate()
}

// EngineFactory spawns and starts a new engine process.
// This allows tests to inject fake engines.
type EngineFactory func() (EngineProcess, error)

// turnRequired marks the commands that may only be played by the
// participant whose turn it is. The remaining game commands react to a
// pending offer from the other side and bypass turn order.
var turnRequired = map[string]bool{
	"move":     true,
	"roll":     true,
	"double":   true,
	"resign":   true,
	"accept":   false,
	"redouble": false,
	"reject":   false,
}

// gameSession is one active game: two participants backed by one engine
// process. The session mutex serializes engine exchanges — the engine
// protocol is strictly request/response, so at most one command may be in
// flight per session.
type gameSession struct {
	id         string
	pair       PlayerPair
	challenger string
	opponent   string
	channel    string

	mu     sync.Mutex
	engine EngineProcess
}

// Registry maps active games to engine processes, bounded by a configured
// maximum. Different games are fully independent; the registry mutex only
// guards the session map itself.
type Registry struct {
	maxGames int
	factory  EngineFactory
	notifier Notifier
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[PlayerPair]*gameSession
}

// NewRegistry creates a registry bounded to maxGames concurrent games.
func NewRegistry(maxGames int, factory EngineFactory, notifier Notifier) *Registry {
	return &Registry{
		maxGames: maxGames,
		factory:  factory,
		notifier: notifier,
		log:      logger.WithComponent("registry"),
		sessions: make(map[PlayerPair]*gameSession),
	}
}

// Help returns the command catalog text. Always succeeds.
func (r *Registry) Help() string {
	return HelpText()
}

// Info returns the active game count and participant pairs.
func (r *Registry) Info() string {
	r.mu.Lock()
	active := len(r.sessions)
	lines := make([]string, 0, active)
	for _, sess := range r.sessions {
		lines = append(lines, fmt.Sprintf("%s vs. %s", sess.challenger, sess.opponent))
	}
	r.mu.Unlock()

	sort.Strings(lines)
	return fmt.Sprintf(infoTemplate, active, r.maxGames, strings.Join(lines, "\n"))
}

// resolveOpponent maps the optional opponent spec to a participant name:
// absent or "gnubg" selects the built-in AI, "@name" selects a human.
// No existence check is made against the Slack directory.
func resolveOpponent(params []string) (string, error) {
	if len(params) == 0 || params[0] == EngineIdentity {
		return EngineIdentity, nil
	}
	if name, ok := strings.CutPrefix(params[0], "@"); ok && name != "" {
		return name, nil
	}
	return "", &ValidationError{Spec: params[0]}
}

// NewGame starts a new game for caller against the opponent named in
// params. On success the rendered opening board is posted to the caller's
// channel and the game is registered.
func (r *Registry) NewGame(ctx context.Context, caller, channel string, params []string) error {
	r.mu.Lock()
	if len(r.sessions) >= r.maxGames {
		r.mu.Unlock()
		return &CapacityError{Max: r.maxGames}
	}
	for pair := range r.sessions {
		if pair.Contains(caller) {
			r.mu.Unlock()
			return &ConflictError{Player: caller, Caller: true}
		}
	}

	opponent, err := resolveOpponent(params)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	// Each participant may appear in at most one active game, so a busy
	// opponent blocks the challenge too.
	for pair := range r.sessions {
		if pair.Contains(opponent) {
			r.mu.Unlock()
			return &ConflictError{Player: opponent}
		}
	}

	sess := &gameSession{
		id:         uuid.NewString(),
		pair:       NewPlayerPair(caller, opponent),
		challenger: caller,
		opponent:   opponent,
		channel:    channel,
	}
	// Hold the session lock through engine setup so a command racing the
	// new game waits rather than hitting a half-started engine.
	sess.mu.Lock()
	defer sess.mu.Unlock()
	r.sessions[sess.pair] = sess
	r.mu.Unlock()

	log := logger.WithGame(sess.id)
	log.Info("starting new game", "challenger", caller, "opponent", opponent)

	eng, err := r.factory()
	if err != nil {
		r.remove(sess)
		log.Error("engine launch failed", "error", err)
		return err
	}
	sess.engine = eng

	if _, err := eng.Run(fmt.Sprintf("set player 1 name %s", caller)); err != nil {
		return r.failSetup(sess, err)
	}
	// Mark the non-initiator side human-controlled only for a real opponent.
	if opponent != EngineIdentity {
		if _, err := eng.Run("set player 0 human"); err != nil {
			return r.failSetup(sess, err)
		}
		if _, err := eng.Run(fmt.Sprintf("set player 0 name %s", opponent)); err != nil {
			return r.failSetup(sess, err)
		}
	}

	board, err := eng.Run("new game")
	if err != nil {
		return r.failSetup(sess, err)
	}

	r.post(ctx, fmt.Sprintf(newGameTemplate, caller, opponent, renderBlock(board)), channel)
	return nil
}

// failSetup unwinds a partially-created game so no orphaned engine or
// registry entry is left behind.
func (r *Registry) failSetup(sess *gameSession, err error) error {
	sess.engine.Terminate()
	r.remove(sess)
	logger.WithGame(sess.id).Error("engine failed during game setup", "error", err)
	return fmt.Errorf("engine failed during game setup: %w", err)
}

// gameHandler runs with the caller's session located and locked.
type gameHandler func(ctx context.Context, caller, channel string, sess *gameSession) error

// requireGame wraps h so it only runs when the caller has a game in
// progress. The session lock is held for the duration of h.
func (r *Registry) requireGame(h gameHandler) func(ctx context.Context, caller, channel string) error {
	return func(ctx context.Context, caller, channel string) error {
		sess := r.findSession(caller)
		if sess == nil {
			return &ForbiddenError{Reason: NoGame}
		}

		sess.mu.Lock()
		defer sess.mu.Unlock()

		// The game may have been retired while we waited for the lock.
		if !r.registered(sess) {
			return &ForbiddenError{Reason: NoGame}
		}
		return h(ctx, caller, channel, sess)
	}
}

// requireTurn wraps h so it only runs when the engine reports it is the
// caller's turn. The engine is not touched further on a wrong-turn failure.
func (r *Registry) requireTurn(h gameHandler) gameHandler {
	return func(ctx context.Context, caller, channel string, sess *gameSession) error {
		turn, _, err := r.queryTurn(sess)
		if err != nil {
			return r.failExchange(sess, err)
		}
		if turn != caller {
			return &ForbiddenError{Reason: WrongTurn}
		}
		return h(ctx, caller, channel, sess)
	}
}

// RunCommand executes one turn-gated game command: it checks session
// ownership and (for the commands that need it) turn order, relays the
// command to the engine, posts the raw output, and retires the game if the
// engine reports it has ended.
func (r *Registry) RunCommand(ctx context.Context, name string, params []string, caller, channel string) error {
	required, ok := turnRequired[name]
	if !ok {
		return fmt.Errorf("unknown game command %q", name)
	}

	h := r.engineCommand(name, params)
	if required {
		h = r.requireTurn(h)
	}
	return r.requireGame(h)(ctx, caller, channel)
}

// engineCommand returns the handler that relays one command line to the
// engine and applies auto-retirement afterwards.
func (r *Registry) engineCommand(name string, params []string) gameHandler {
	return func(ctx context.Context, caller, channel string, sess *gameSession) error {
		full := name
		if len(params) > 0 {
			full = name + " " + strings.Join(params, " ")
		}

		out, err := sess.engine.Run(full)
		if err != nil {
			return r.failExchange(sess, err)
		}

		r.post(ctx, fmt.Sprintf(commandTemplate, caller, full, renderBlock(out)), channel)

		// The command may have ended the game (win, resignation accepted,
		// abandonment); retire the session as soon as the engine says so.
		_, over, err := r.queryTurn(sess)
		if err != nil {
			return r.failExchange(sess, err)
		}
		if over {
			logger.WithGame(sess.id).Info("game over, retiring session")
			r.retire(sess)
		}
		return nil
	}
}

// Quit ends the caller's game irrespective of turn order and posts a quit
// notification naming both participants.
func (r *Registry) Quit(ctx context.Context, caller, channel string) error {
	return r.requireGame(func(ctx context.Context, caller, channel string, sess *gameSession) error {
		r.retire(sess)
		opponent := sess.pair.Other(caller)
		r.post(ctx, fmt.Sprintf(quitTemplate, caller, opponent), channel)
		return nil
	})(ctx, caller, channel)
}

// Shutdown terminates every remaining engine. Used at process shutdown.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	remaining := make([]*gameSession, 0, len(r.sessions))
	for _, sess := range r.sessions {
		remaining = append(remaining, sess)
	}
	r.sessions = make(map[PlayerPair]*gameSession)
	r.mu.Unlock()

	for _, sess := range remaining {
		sess.mu.Lock()
		if sess.engine != nil {
			sess.engine.Terminate()
		}
		sess.mu.Unlock()
	}
	r.log.Info("registry shut down", "terminated", len(remaining))
}

// ActiveGames returns the number of games currently registered.
func (r *Registry) ActiveGames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// findSession returns the session containing caller, or nil.
func (r *Registry) findSession(caller string) *gameSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pair, sess := range r.sessions {
		if pair.Contains(caller) {
			return sess
		}
	}
	return nil
}

// registered reports whether sess is still the live entry for its pair.
func (r *Registry) registered(sess *gameSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sess.pair] == sess
}

// remove deletes sess from the map without touching its engine.
func (r *Registry) remove(sess *gameSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[sess.pair] == sess {
		delete(r.sessions, sess.pair)
	}
}

// retire terminates the session's engine and removes it from the registry.
// Caller must hold sess.mu.
func (r *Registry) retire(sess *gameSession) {
	if sess.engine != nil {
		sess.engine.Terminate()
	}
	r.remove(sess)
}

// failExchange handles an engine stream failure mid-command: the session is
// retired so callers are not left talking to a dead process.
func (r *Registry) failExchange(sess *gameSession, err error) error {
	logger.WithGame(sess.id).Error("engine exchange failed, retiring session", "error", err)
	r.retire(sess)
	return fmt.Errorf("engine exchange failed: %w", err)
}

// queryTurn asks the engine whose turn it is. It returns the participant
// name from the first token of the response and whether the engine reports
// no game in progress.
func (r *Registry) queryTurn(sess *gameSession) (turn string, over bool, err error) {
	out, err := sess.engine.Run("show turn")
	if err != nil {
		return "", false, err
	}

	text := strings.Join(out, "\n")
	if strings.HasPrefix(text, "No game") {
		return "", true, nil
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false, nil
	}
	return fields[0], false, nil
}

// post delivers a notification, logging (never propagating) failures.
func (r *Registry) post(ctx context.Context, text, channel string) {
	if err := r.notifier.Post(ctx, text, channel); err != nil {
		r.log.Error("notification delivery failed", "channel", channel, "error", err)
	}
}

// renderBlock joins engine output lines for display inside a code fence.
func renderBlock(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
