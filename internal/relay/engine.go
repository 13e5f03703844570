// Package relay runs the chat relay: it tails every session's capture
// stream, broadcasts new chat to subscribers, routes subscriber input to
// the game sessions and schedules backups and status reports.
package relay

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/NotCreative21/taurus/internal/backup"
	"github.com/NotCreative21/taurus/internal/capture"
	"github.com/NotCreative21/taurus/internal/config"
	"github.com/NotCreative21/taurus/internal/logging"
	"github.com/NotCreative21/taurus/internal/workerpool"
	"github.com/NotCreative21/taurus/internal/ws"
)

var log = logging.L("relay")

// Broadcaster delivers frames to subscribers.
type Broadcaster interface {
	Broadcast(f ws.Frame) int
	SendTo(id string, f ws.Frame) error
}

// Injector writes messages into game sessions.
type Injector interface {
	Has(session string) bool
	Sessions() []string
	InjectLines(ctx context.Context, session, text string) error
	InjectAll(ctx context.Context, sessions []string, msg string) error
}

// Backupper snapshots a session's data directory.
type Backupper interface {
	Run(ctx context.Context, session, dataDir string, keep int) (*backup.Result, error)
}

// Prober reports game process status.
type Prober interface {
	ProbeAll(ctx context.Context, sessions []string) []SessionStatus
}

// Submitter schedules work off the relay and subscriber goroutines.
type Submitter interface {
	Submit(name string, task workerpool.Task) bool
}

// Deps are the engine's collaborators. Backups and Status may be nil to
// disable those features.
type Deps struct {
	Store    *capture.Store
	Bus      Broadcaster
	Injector Injector
	Backups  Backupper
	Status   Prober
	Pool     Submitter
}

// Engine is the relay orchestrator.
type Engine struct {
	sessions []config.Session
	tailed   []string
	relayCfg config.RelayConfig

	store   *capture.Store
	tailer  *Tailer
	bus     Broadcaster
	inj     Injector
	backups Backupper
	status  Prober
	pool    Submitter

	cursors cursors
	tick    int

	mu  sync.Mutex
	ctx context.Context
}

// New wires an engine for cfg. Sessions with game metadata get a capture
// stream registered in deps.Store and are tailed.
func New(cfg *config.Config, deps Deps) *Engine {
	e := &Engine{
		sessions: cfg.Sessions,
		relayCfg: cfg.Relay,
		store:    deps.Store,
		tailer:   NewTailer(deps.Store),
		bus:      deps.Bus,
		inj:      deps.Injector,
		backups:  deps.Backups,
		status:   deps.Status,
		pool:     deps.Pool,
		cursors:  make(cursors),
		ctx:      context.Background(),
	}
	for _, s := range cfg.Sessions {
		if s.Game == nil {
			continue
		}
		deps.Store.Register(s.Name, capture.PathFor(cfg.Relay.CaptureDir, s.Name, cfg.CaptureSuffix(s)))
		e.tailed = append(e.tailed, s.Name)
	}
	return e
}

// Start prepares every capture stream, skips history already in them and
// runs the relay and maintenance loops. It blocks until ctx is done.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()

	e.prepare()
	log.Info("relay started",
		"sessions", len(e.sessions),
		"tailed", len(e.tailed),
		"poll", e.relayCfg.PollInterval,
		"maintenance", e.relayCfg.MaintenanceInterval)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.loop(ctx, e.relayCfg.PollInterval, e.relayOnce)
	}()
	go func() {
		defer wg.Done()
		e.loop(ctx, e.relayCfg.MaintenanceInterval, e.maintenanceOnce)
	}()
	wg.Wait()

	log.Info("relay stopped")
	return ctx.Err()
}

func (e *Engine) prepare() {
	for _, name := range e.tailed {
		if err := e.store.Ensure(name, false); err != nil {
			log.Warn("capture stream not ready", logging.KeySession, name, logging.KeyError, err)
		}
		e.cursors.set(name, e.store.LineCount(name))
	}
}

func (e *Engine) loop(ctx context.Context, every time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// relayOnce tails every stream and broadcasts one CHAT_OUT frame holding
// all new chat, in session order.
func (e *Engine) relayOnce(context.Context) {
	var out strings.Builder
	for _, name := range e.tailed {
		batch, cur := e.tailer.Tail(name, e.cursors.get(name))
		e.cursors.set(name, cur)
		out.WriteString(batch)
	}
	if out.Len() == 0 {
		return
	}
	n := e.bus.Broadcast(ws.Frame{Kind: ws.KindChatOut, Payload: out.String()})
	log.Debug("chat relayed", "bytes", out.Len(), "subscribers", n)
}

// backupDue reports whether a session with the given interval backs up on
// tick. The first interval after startup is skipped.
func backupDue(tick, interval int) bool {
	return interval > 0 && tick > interval && tick%interval == 0
}

func (e *Engine) maintenanceOnce(ctx context.Context) {
	e.tick++
	tick := e.tick

	if e.backups != nil {
		for _, s := range e.sessions {
			if s.Game == nil || !backupDue(tick, s.Game.BackupInterval) {
				continue
			}
			e.scheduleBackup(ctx, s)
		}
	}

	if e.status != nil && e.relayCfg.StatusEvery > 0 && tick%e.relayCfg.StatusEvery == 0 {
		e.pool.Submit("status", func() { e.broadcastStatus(ctx) })
	}
}

func (e *Engine) scheduleBackup(ctx context.Context, s config.Session) {
	name, game := s.Name, *s.Game
	ok := e.pool.Submit("backup "+name, func() {
		if _, err := e.backups.Run(ctx, name, game.FilePath, game.BackupKeep); err != nil {
			log.Warn("scheduled backup failed", logging.KeySession, name, logging.KeyError, err)
		}
	})
	if !ok {
		log.Warn("backup not scheduled, pool busy", logging.KeySession, name)
	}
}

func (e *Engine) broadcastStatus(ctx context.Context) {
	names := make([]string, 0, len(e.sessions))
	for _, s := range e.sessions {
		names = append(names, s.Name)
	}
	payload, err := encodeStatus(e.status.ProbeAll(ctx, names))
	if err != nil {
		log.Warn("encode status failed", logging.KeyError, err)
		return
	}
	e.bus.Broadcast(ws.Frame{Kind: ws.KindStatus, Payload: payload})
}

func (e *Engine) context() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

// HandleInbound routes a subscriber frame. CMD frames carry
// "<session|*> <command>"; CHAT_IN frames carry text that is said in every
// session. Injection runs on the worker pool.
func (e *Engine) HandleInbound(subscriberID string, f ws.Frame) {
	ctx := e.context()

	switch f.Kind {
	case ws.KindCommand:
		target, command, _ := strings.Cut(strings.TrimSpace(f.Payload), " ")
		command = strings.TrimSpace(command)
		if target == "" || command == "" {
			e.reject(subscriberID, "usage: CMD <session|*> <command>")
			return
		}
		if target == "*" {
			e.submit(subscriberID, "cmd *", func() {
				logInjectErr("cmd *", e.inj.InjectAll(ctx, e.inj.Sessions(), command))
			})
			return
		}
		if !e.inj.Has(target) {
			e.reject(subscriberID, "unknown session "+target)
			return
		}
		e.submit(subscriberID, "cmd "+target, func() {
			logInjectErr("cmd "+target, e.inj.InjectLines(ctx, target, command))
		})

	case ws.KindChatIn:
		// Newlines would let chat text run as a second command.
		text := strings.Join(strings.Fields(f.Payload), " ")
		if text == "" {
			return
		}
		e.submit(subscriberID, "chat", func() {
			logInjectErr("chat", e.inj.InjectAll(ctx, e.inj.Sessions(), "say "+text))
		})

	default:
		log.Warn("dropping unexpected frame", logging.KeySubscriber, subscriberID, "kind", f.Kind)
	}
}

// logInjectErr summarises a task's injection failures. Each one was already
// logged at warn by the injector.
func logInjectErr(task string, err error) {
	if err != nil {
		log.Debug("inbound injection incomplete", "task", task, logging.KeyError, err)
	}
}

func (e *Engine) submit(subscriberID, name string, task workerpool.Task) {
	if !e.pool.Submit(name, task) {
		e.reject(subscriberID, "server busy, try again")
	}
}

func (e *Engine) reject(subscriberID, reason string) {
	log.Warn("inbound frame rejected", logging.KeySubscriber, subscriberID, "reason", reason)
	if err := e.bus.SendTo(subscriberID, ws.Frame{Kind: ws.KindError, Payload: reason}); err != nil {
		log.Debug("error reply not delivered", logging.KeySubscriber, subscriberID, logging.KeyError, err)
	}
}
