package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/neuassist/neuassist/internal/log"
)

// Store holds every conversation in memory and mirrors the full map to a
// single JSON file. Every mutation rewrites the file wholesale; there is no
// append log. One mutex serializes all mutations (the map shares one backing
// file, so finer locking buys nothing at the flush layer), and a file lock
// keeps two processes from interleaving rewrites.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	mu            sync.Mutex
	path          string
	flk           *flock.Flock
	conversations map[string]*Conversation
	logger        log.Logger
}

// Open loads the conversation map from path, creating the parent directory if
// needed. A missing file starts empty; a corrupt file is logged and discarded
// rather than failing startup, matching the recover-what-you-can policy for
// local state.
func Open(path string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &Store{
		path:          path,
		flk:           flock.New(path + ".lock"),
		conversations: make(map[string]*Conversation),
		logger:        logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading conversations file: %w", err)
	}

	if err := json.Unmarshal(data, &s.conversations); err != nil {
		logger.Warn("conversations file is corrupt, starting empty",
			"path", path, "error", err)
		s.conversations = make(map[string]*Conversation)
	}

	logger.Debug("conversations loaded", "path", path, "count", len(s.conversations))
	return s, nil
}

// Create creates a conversation with a generated id and a timestamp-derived
// default title, persists the store, and returns a snapshot.
func (s *Store) Create() (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &Conversation{
		ID:       uuid.New().String(),
		Title:    "新对话 " + time.Now().Format(TitleTimeLayout),
		Messages: []Message{},
	}
	s.conversations[conv.ID] = conv

	err := s.persistLocked()
	s.logger.Debug("created conversation", "id", conv.ID, "title", conv.Title)
	return copyConversation(conv), err
}

// Get returns a snapshot of the conversation, or ErrNotFound.
func (s *Store) Get(id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConversation(conv), nil
}

// Delete removes a conversation and persists the store.
// Reports whether the conversation existed.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return false, nil
	}
	delete(s.conversations, id)

	err := s.persistLocked()
	s.logger.Debug("deleted conversation", "id", id)
	return true, err
}

// Append appends a message to the conversation log and persists the store.
// The in-memory append stands even when persistence fails; the returned error
// then wraps ErrPersist.
func (s *Store) Append(id string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	conv.Messages = append(conv.Messages, msg)
	return s.persistLocked()
}

// SetTitle replaces the conversation title and persists the store.
func (s *Store) SetTitle(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	conv.Title = title
	return s.persistLocked()
}

// List returns summaries of every conversation, ordered by id for a stable
// listing.
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, Summary{ID: conv.ID, Title: conv.Title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Messages returns a snapshot of the conversation's message log.
func (s *Store) Messages(id string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	msgs := make([]Message, len(conv.Messages))
	copy(msgs, conv.Messages)
	return msgs, nil
}

// PairedHistory walks the log pairing each user message with the assistant
// reply that follows it. Error turns pair like regular turns (the client
// renders the error text); a trailing user message without a reply is
// dropped. Strict alternation is not assumed.
func (s *Store) PairedHistory(id string) ([]HistoryItem, error) {
	msgs, err := s.Messages(id)
	if err != nil {
		return nil, err
	}

	history := []HistoryItem{}
	for i := 0; i < len(msgs); i++ {
		if !msgs[i].IsUser {
			continue
		}
		if i+1 >= len(msgs) || msgs[i+1].IsUser {
			continue
		}
		history = append(history, HistoryItem{
			User:      msgs[i].Content,
			AI:        msgs[i+1].Content,
			Reasoning: msgs[i+1].Reasoning,
			Timestamp: msgs[i].Timestamp,
		})
		i++ // consumed the reply
	}
	return history, nil
}

// persistLocked rewrites the backing file with the full conversation map.
// Caller must hold s.mu. Writes to a temp file in the same directory and
// renames it over the target so readers never observe a partial file; the
// flock guards against a second process rewriting concurrently.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.conversations, "", "  ")
	if err != nil {
		s.logger.Error("encoding conversations", "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	if err := s.flk.Lock(); err != nil {
		s.logger.Error("locking conversations file", "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	defer func() {
		if err := s.flk.Unlock(); err != nil {
			s.logger.Warn("unlocking conversations file", "error", err)
		}
	}()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".conversations-*.json")
	if err != nil {
		s.logger.Error("creating temp conversations file", "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		s.logger.Error("writing conversations file", "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		s.logger.Error("replacing conversations file", "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func copyConversation(conv *Conversation) *Conversation {
	msgs := make([]Message, len(conv.Messages))
	copy(msgs, conv.Messages)
	return &Conversation{ID: conv.ID, Title: conv.Title, Messages: msgs}
}
