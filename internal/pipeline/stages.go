package pipeline

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/marhthing/pipebot/internal/access"
	"github.com/marhthing/pipebot/internal/bus"
	"github.com/marhthing/pipebot/internal/games"
	"github.com/marhthing/pipebot/internal/jid"
)

// Archiver records every inbound event as a matter of fact, before any
// permission decision is made.
type Archiver interface {
	StoreEvent(ctx context.Context, evt *bus.InboundEvent) error
}

// MediaFetcher pulls down an event's attachment and returns the local
// path it was stored at.
type MediaFetcher interface {
	Fetch(ctx context.Context, evt *bus.InboundEvent) (string, error)
}

// CaptureStage archives every event in the background. It never fails
// the run: the archive write must not delay or gate the pipeline, and
// its errors surface through the log instead.
type CaptureStage struct {
	Archive Archiver
}

func (s *CaptureStage) Name() string { return "capture" }

func (s *CaptureStage) Run(ctx context.Context, pc *Context) error {
	if s.Archive == nil {
		return nil
	}
	evt := pc.Event
	// Detached from the run's cancellation: the record must land even
	// if the rest of the pipeline is torn down.
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := s.Archive.StoreEvent(bg, evt); err != nil {
			log.Printf("[capture] archive %s: %v", evt.ID, err)
		}
	}()
	return nil
}

// RecoveryStage is the default error-recovery stage: it logs the failed
// stage and lets the rest of the run continue. Its own Run does
// nothing.
type RecoveryStage struct{}

func (s *RecoveryStage) Name() string { return "recover" }

func (s *RecoveryStage) Run(ctx context.Context, pc *Context) error { return nil }

func (s *RecoveryStage) Recover(ctx context.Context, pc *Context, failedStage string, cause error) error {
	log.Printf("[recover] stage %q failed for event %s: %v", failedStage, pc.Event.ID, cause)
	return nil
}

// AccessStage drops events that can never be actionable: our own
// outgoing messages and empty ones. It deliberately does NOT drop
// command-bearing events from unauthorized senders; those proceed to
// dispatch so the access resolver can produce its denial message.
type AccessStage struct{}

func (s *AccessStage) Name() string { return "access" }

func (s *AccessStage) Run(ctx context.Context, pc *Context) error {
	evt := pc.Event
	if evt.FromSelf {
		pc.Stop()
		return nil
	}
	if strings.TrimSpace(evt.Text) == "" && evt.Attachment == nil {
		pc.Stop()
	}
	return nil
}

// GameState is the slice of permission state the game stage consults.
type GameState interface {
	Owner() string
	GameAt(chat string) (string, bool)
	IsGamePlayer(chat, identity string) bool
	EndGame(chat string) bool
}

// GameStage consumes game moves in chats with an active session. Boards
// are keyed by normalized chat JID; the map is shared across
// overlapping runs and guarded by the stage's own mutex.
type GameStage struct {
	State GameState

	mu     sync.Mutex
	boards map[string]*games.TicTacToe
}

func NewGameStage(st GameState) *GameStage {
	return &GameStage{State: st, boards: make(map[string]*games.TicTacToe)}
}

func (s *GameStage) Name() string { return "game" }

func (s *GameStage) Run(ctx context.Context, pc *Context) error {
	evt := pc.Event
	chat, err := jid.Normalize(evt.Chat)
	if err != nil {
		return nil
	}
	gameType, active := s.State.GameAt(chat)
	if !active {
		return nil
	}
	move := strings.ToLower(strings.TrimSpace(evt.Text))
	if !access.ValidMove(gameType, move) {
		return nil
	}
	sender, err := jid.Normalize(evt.Sender)
	if err != nil {
		return nil
	}
	if !s.State.IsGamePlayer(chat, sender) && sender != s.State.Owner() {
		return nil
	}

	// The move is consumed here; it never reaches command dispatch.
	pc.Stop()
	if move == access.QuitMove {
		s.endGame(chat)
		return reply(pc, "Game over.")
	}
	return s.applyMove(pc, chat, move)
}

func (s *GameStage) applyMove(pc *Context, chat, move string) error {
	cell, err := strconv.Atoi(move)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	board, ok := s.boards[chat]
	if !ok {
		board = games.NewTicTacToe()
		s.boards[chat] = board
	}
	moveErr := board.Move(cell)
	rendered := board.Render()
	winner := board.Winner()
	draw := board.Draw()
	s.mu.Unlock()

	if moveErr != nil {
		return reply(pc, fmt.Sprintf("Invalid move: %v", moveErr))
	}
	switch {
	case winner != "":
		s.endGame(chat)
		return reply(pc, rendered+"\n"+winner+" wins!")
	case draw:
		s.endGame(chat)
		return reply(pc, rendered+"\nIt's a draw.")
	default:
		return reply(pc, rendered)
	}
}

func (s *GameStage) endGame(chat string) {
	s.State.EndGame(chat)
	s.mu.Lock()
	delete(s.boards, chat)
	s.mu.Unlock()
}

// CommandStage recognizes prefixed command text and records the parsed
// name and arguments for dispatch.
type CommandStage struct {
	Prefix string
}

func (s *CommandStage) Name() string { return "commands" }

func (s *CommandStage) Run(ctx context.Context, pc *Context) error {
	text := strings.TrimSpace(pc.Event.Text)
	if s.Prefix == "" || !strings.HasPrefix(text, s.Prefix) {
		return nil
	}
	fields := strings.Fields(strings.TrimPrefix(text, s.Prefix))
	if len(fields) == 0 {
		return nil
	}
	pc.Set(MetaCommandName, strings.ToLower(fields[0]))
	pc.Set(MetaCommandArgs, fields[1:])
	return nil
}

// TypingStage reacts to command-bearing events so the sender sees the
// host is working. A failed reaction is a stage failure; the run keeps
// going.
type TypingStage struct{}

func (s *TypingStage) Name() string { return "typing" }

func (s *TypingStage) Run(ctx context.Context, pc *Context) error {
	if pc.GetString(MetaCommandName) == "" || pc.Responder == nil {
		return nil
	}
	return pc.Responder.React("⏳")
}

// MediaStage fetches attachments in the background. Like capture it
// never blocks the run; the fetched path surfaces through the log and
// archive, not through pipeline metadata.
type MediaStage struct {
	Fetcher MediaFetcher
}

func (s *MediaStage) Name() string { return "media" }

func (s *MediaStage) Run(ctx context.Context, pc *Context) error {
	if s.Fetcher == nil || pc.Event.Attachment == nil {
		return nil
	}
	evt := pc.Event
	bg := context.WithoutCancel(ctx)
	go func() {
		path, err := s.Fetcher.Fetch(bg, evt)
		if err != nil {
			log.Printf("[media] fetch %s: %v", evt.ID, err)
			return
		}
		log.Printf("[media] stored %s at %s", evt.ID, path)
	}()
	return nil
}

func reply(pc *Context, text string) error {
	if pc.Responder == nil {
		return nil
	}
	return pc.Responder.Reply(text)
}

// DefaultStages wires the standard stage order: capture first, recovery
// immediately after, then access filtering, game handling, command
// parsing, the typing indicator, and media fetch.
func DefaultStages(archive Archiver, st GameState, fetcher MediaFetcher, prefix string) []Stage {
	return []Stage{
		&CaptureStage{Archive: archive},
		&RecoveryStage{},
		&AccessStage{},
		NewGameStage(st),
		&CommandStage{Prefix: prefix},
		&TypingStage{},
		&MediaStage{Fetcher: fetcher},
	}
}
