// Package inject delivers commands and chat from subscribers into game
// sessions, over RCON when the session exposes it and through tmux
// keystrokes otherwise.
package inject

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/NotCreative21/taurus/internal/config"
	"github.com/NotCreative21/taurus/internal/logging"
	"github.com/NotCreative21/taurus/internal/rcon"
	"github.com/NotCreative21/taurus/internal/tmux"
)

var log = logging.L("inject")

var (
	ErrNonPrintable   = errors.New("message contains non-printable characters")
	ErrUnknownSession = errors.New("unknown session")
)

// Injector routes messages to sessions by name.
type Injector struct {
	sessions map[string]config.Session
	order    []string
	mux      tmux.Multiplexer
	dialer   rcon.Dialer
}

func New(sessions []config.Session, mux tmux.Multiplexer, dialer rcon.Dialer) *Injector {
	inj := &Injector{
		sessions: make(map[string]config.Session, len(sessions)),
		order:    make([]string, 0, len(sessions)),
		mux:      mux,
		dialer:   dialer,
	}
	for _, s := range sessions {
		inj.sessions[s.Name] = s
		inj.order = append(inj.order, s.Name)
	}
	return inj
}

// Sessions returns session names in configuration order.
func (inj *Injector) Sessions() []string {
	return append([]string(nil), inj.order...)
}

// Has reports whether name is a configured session.
func (inj *Injector) Has(name string) bool {
	_, ok := inj.sessions[name]
	return ok
}

// Printable reports whether every byte of msg is printable ASCII.
func Printable(msg string) bool {
	for i := 0; i < len(msg); i++ {
		if msg[i] < 0x20 || msg[i] > 0x7e {
			return false
		}
	}
	return true
}

// Inject sends msg to one session. Failures are logged and returned; callers
// relaying a batch are expected to ignore them.
func (inj *Injector) Inject(ctx context.Context, session, msg string) error {
	s, ok := inj.sessions[session]
	if !ok {
		log.Warn("inject to unknown session", logging.KeySession, session)
		return fmt.Errorf("%w: %s", ErrUnknownSession, session)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.RCON != nil {
		out, err := rcon.Exec(inj.dialer, s.RCON.Addr(), s.RCON.Password, msg)
		if err != nil {
			log.Warn("rcon command failed", logging.KeySession, session, logging.KeyError, err)
			return err
		}
		log.Debug("rcon command sent", logging.KeySession, session, "response", out)
		return nil
	}

	if !Printable(msg) {
		log.Debug("dropping non-printable message", logging.KeySession, session)
		return ErrNonPrintable
	}
	if err := inj.mux.SendLiteral(session, msg); err != nil {
		log.Warn("keystroke injection failed", logging.KeySession, session, logging.KeyError, err)
		return err
	}
	log.Debug("keystrokes sent", logging.KeySession, session)
	return nil
}

// InjectLines injects each non-empty line of text in order. Keystroke
// injection cannot carry newlines, so multi-line input is split here.
func (inj *Injector) InjectLines(ctx context.Context, session, text string) error {
	var errs []error
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if err := inj.Inject(ctx, session, line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InjectAll injects msg into every named session. One session failing does
// not stop delivery to the rest.
func (inj *Injector) InjectAll(ctx context.Context, sessions []string, msg string) error {
	var errs []error
	for _, name := range sessions {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := inj.InjectLines(ctx, name, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
