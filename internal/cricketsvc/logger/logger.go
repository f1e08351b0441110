package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/mithun9421/handcricket/internal/cricketsvc/game"
)

// ErrNotFound reports a gameId with no persisted session.
var ErrNotFound = errors.New("game not found")

const (
	defaultLogDir    = "game_logs"
	defaultQueueSize = 256

	// analytics mirror subjects, best effort when NATS is wired
	subjectEvents   = "cricket.events"
	subjectSessions = "cricket.sessions"
)

type Config struct {
	Enabled      bool   `json:"enabled"`
	LogDirectory string `json:"logDirectory"`
	QueueSize    int    `json:"queueSize"`
}

// ConfigPatch is a partial update merged over the current config.
type ConfigPatch struct {
	Enabled      *bool   `json:"enabled,omitempty"`
	LogDirectory *string `json:"logDirectory,omitempty"`
	QueueSize    *int    `json:"queueSize,omitempty"`
}

func DefaultConfig() Config {
	dir := os.Getenv("LOG_DIR")
	if dir == "" {
		dir = defaultLogDir
	}
	return Config{Enabled: true, LogDirectory: dir, QueueSize: defaultQueueSize}
}

// Archiver is an optional secondary store for finalized sessions (the
// Postgres archive). Failures are reported, never propagated.
type Archiver interface {
	Archive(ctx context.Context, rec *SessionRecord) error
}

// Logger is the event log sink. Record and EndSession are fire-and-forget
// from the caller's perspective: event accumulation is a cheap in-memory
// append, the durable write happens on a single worker goroutine so the
// game path never blocks on the filesystem, NATS or Postgres.
type Logger struct {
	mu       sync.Mutex
	cfg      Config
	sessions map[string]*session

	jobs chan *SessionRecord
	done chan struct{}

	nc      *nats.Conn
	archive Archiver
}

func New(cfg Config, nc *nats.Conn, archive Archiver) *Logger {
	if cfg.LogDirectory == "" {
		cfg.LogDirectory = defaultLogDir
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		log.Warnf("unable to create log directory %s: %v", cfg.LogDirectory, err)
	}

	l := &Logger{
		cfg:      cfg,
		sessions: make(map[string]*session),
		jobs:     make(chan *SessionRecord, cfg.QueueSize),
		done:     make(chan struct{}),
		nc:       nc,
		archive:  archive,
	}
	go l.run()
	return l
}

// StartSession opens the event stream for a newly created room.
func (l *Logger) StartSession(roomId string, players []game.Player) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.sessions[roomId]; exists {
		return
	}
	l.sessions[roomId] = &session{
		roomId:  roomId,
		players: players,
		start:   time.Now().UTC(),
	}
}

// Record appends an event to its room's session. Events for unknown rooms
// are dropped, a late write must never fail the caller.
func (l *Logger) Record(ev game.Event) {
	l.mu.Lock()
	s, ok := l.sessions[ev.RoomId]
	if ok {
		s.append(ev)
	}
	l.mu.Unlock()

	if !ok {
		log.Debugf("event %s for unknown session %s dropped", ev.Type, ev.RoomId)
		return
	}
	l.mirrorEvent(ev)
}

// EndSession finalizes a room's record and queues it for persistence.
func (l *Logger) EndSession(roomId string, finalScores map[string]int, winner string) {
	l.mu.Lock()
	s, ok := l.sessions[roomId]
	if ok {
		delete(l.sessions, roomId)
	}
	enabled := l.cfg.Enabled
	l.mu.Unlock()

	if !ok {
		return
	}
	if !enabled {
		return
	}

	rec := s.finalize(finalScores, winner)
	select {
	case l.jobs <- rec:
	default:
		// persistence backlog full, losing this record must not stall games
		log.Warnf("log sink queue full, session %s not persisted", roomId)
	}
}

// Close drains pending persistence work. Used on shutdown and in tests.
func (l *Logger) Close() {
	close(l.jobs)
	<-l.done
}

func (l *Logger) run() {
	defer close(l.done)
	for rec := range l.jobs {
		l.persist(rec)
	}
}

func (l *Logger) persist(rec *SessionRecord) {
	l.mu.Lock()
	dir := l.cfg.LogDirectory
	l.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		log.Errorf("marshal session %s: %v", rec.Metadata.GameId, err)
		return
	}

	path := filepath.Join(dir, sessionFileName(rec.Metadata.GameId))
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Errorf("write session %s: %v", rec.Metadata.GameId, err)
	}

	if l.nc != nil {
		if err := l.nc.Publish(subjectSessions, data); err != nil {
			log.Warnf("mirror session %s to NATS: %v", rec.Metadata.GameId, err)
		}
	}

	if l.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := l.archive.Archive(ctx, rec); err != nil {
			log.Warnf("archive session %s: %v", rec.Metadata.GameId, err)
		}
	}
}

func (l *Logger) mirrorEvent(ev game.Event) {
	if l.nc == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := l.nc.Publish(subjectEvents, data); err != nil {
		log.Warnf("mirror event to NATS: %v", err)
	}
}

// Config returns a copy of the current configuration.
func (l *Logger) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// Reconfigure merges a patch into the config and re-initializes the sink's
// log directory. Returns the merged configuration.
func (l *Logger) Reconfigure(patch ConfigPatch) Config {
	l.mu.Lock()
	if patch.Enabled != nil {
		l.cfg.Enabled = *patch.Enabled
	}
	if patch.LogDirectory != nil && *patch.LogDirectory != "" {
		l.cfg.LogDirectory = *patch.LogDirectory
	}
	if patch.QueueSize != nil && *patch.QueueSize > 0 {
		l.cfg.QueueSize = *patch.QueueSize
	}
	cfg := l.cfg
	l.mu.Unlock()

	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		log.Warnf("unable to create log directory %s: %v", cfg.LogDirectory, err)
	}
	return cfg
}

// ActiveSessions reports the number of rooms currently recording.
func (l *Logger) ActiveSessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// TotalGames counts persisted sessions on disk.
func (l *Logger) TotalGames() int {
	recs, err := l.ListSessions()
	if err != nil {
		return 0
	}
	return len(recs)
}

// ListSessions reads every persisted session, newest first.
func (l *Logger) ListSessions() ([]SessionRecord, error) {
	l.mu.Lock()
	dir := l.cfg.LogDirectory
	l.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log directory: %w", err)
	}

	var recs []SessionRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Warnf("read session file %s: %v", entry.Name(), err)
			continue
		}
		var rec SessionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Warnf("decode session file %s: %v", entry.Name(), err)
			continue
		}
		recs = append(recs, rec)
	}

	sortByEndTimeDesc(recs)
	return recs, nil
}

// GetSession loads one persisted session by gameId.
func (l *Logger) GetSession(gameId string) (*SessionRecord, error) {
	l.mu.Lock()
	dir := l.cfg.LogDirectory
	l.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(dir, sessionFileName(gameId)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read session %s: %w", gameId, err)
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", gameId, err)
	}
	return &rec, nil
}

func sessionFileName(gameId string) string {
	return "session_" + gameId + ".json"
}

func sortByEndTimeDesc(recs []SessionRecord) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Metadata.EndTime.After(recs[j].Metadata.EndTime)
	})
}
