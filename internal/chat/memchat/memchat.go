// Package memchat is an in-process chat service. The first user to log in
// is the administrator and only administrators may create channels.
package memchat

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/coursebots/internal/chat"
	"github.com/MrSnakeDoc/coursebots/internal/logger"
)

type user struct {
	name      string
	password  string
	admin     bool
	token     string
	listeners []listener
}

type listener struct {
	id chat.ListenerID
	cb chat.ListenerCallback
}

type channel struct {
	name      string
	members   []string // join order
	operators map[string]bool
}

// Service implements chat.CourseApp in memory.
type Service struct {
	mu       sync.RWMutex
	users    map[string]*user
	tokens   map[string]*user
	channels map[string]*channel
	nextID   atomic.Uint64
	logger   logger.Logger
}

var _ chat.CourseApp = (*Service)(nil)

// New creates an empty service
func New(log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		users:    make(map[string]*user),
		tokens:   make(map[string]*user),
		channels: make(map[string]*channel),
		logger:   log,
	}
}

// Login creates the user on first use. Logging in again with the right
// password returns the same token.
func (s *Service) Login(_ context.Context, username, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[username]; ok {
		if u.password != password {
			return "", fmt.Errorf("login %s: %w", username, chat.ErrNotAuthorized)
		}
		return u.token, nil
	}

	u := &user{
		name:     username,
		password: password,
		admin:    len(s.users) == 0,
		token:    uuid.NewString(),
	}
	s.users[username] = u
	s.tokens[u.token] = u
	s.logger.Debug("user logged in",
		logger.String("user", username),
		logger.Bool("admin", u.admin))
	return u.token, nil
}

func (s *Service) ChannelJoin(_ context.Context, token, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.auth(token)
	if err != nil {
		return err
	}
	if !chat.ValidChannel(name) {
		return fmt.Errorf("join %s: %w", name, chat.ErrNameFormat)
	}

	ch, ok := s.channels[name]
	if !ok {
		if !u.admin {
			return fmt.Errorf("create %s as %s: %w", name, u.name, chat.ErrNotAuthorized)
		}
		ch = &channel{name: name, operators: map[string]bool{u.name: true}}
		s.channels[name] = ch
	}
	if !slices.Contains(ch.members, u.name) {
		ch.members = append(ch.members, u.name)
	}
	return nil
}

func (s *Service) ChannelPart(_ context.Context, token, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.auth(token)
	if err != nil {
		return err
	}
	return s.removeMember(name, u.name)
}

// ChannelKick removes username from channel. Only channel operators and
// administrators may kick.
func (s *Service) ChannelKick(_ context.Context, token, name, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.auth(token)
	if err != nil {
		return err
	}
	ch, ok := s.channels[name]
	if !ok {
		return fmt.Errorf("kick from %s: %w", name, chat.ErrNoSuchEntity)
	}
	if !u.admin && !ch.operators[u.name] {
		return fmt.Errorf("kick from %s by %s: %w", name, u.name, chat.ErrNotAuthorized)
	}
	return s.removeMember(name, username)
}

// ChannelSend delivers msg to the listeners of every member, in join order,
// the sender included. Listeners run on the caller's goroutine without the
// service lock held, so they may call back into the service.
func (s *Service) ChannelSend(ctx context.Context, token, name string, msg chat.Message) error {
	s.mu.RLock()
	u, err := s.auth(token)
	if err != nil {
		s.mu.RUnlock()
		return err
	}
	ch, ok := s.channels[name]
	if !ok {
		s.mu.RUnlock()
		return fmt.Errorf("send to %s: %w", name, chat.ErrNoSuchEntity)
	}
	if !slices.Contains(ch.members, u.name) {
		s.mu.RUnlock()
		return fmt.Errorf("send to %s by %s: %w", name, u.name, chat.ErrNotAuthorized)
	}
	var targets []listener
	for _, m := range ch.members {
		targets = append(targets, s.users[m].listeners...)
	}
	s.mu.RUnlock()

	source := chat.ChannelSource(name, u.name)
	for _, l := range targets {
		if err := l.cb(ctx, source, msg); err != nil {
			s.logger.Warn("listener failed",
				logger.String("source", source),
				logger.Error(err))
		}
	}
	return nil
}

// IsUserInChannel reports membership. A channel that does not exist has no
// members.
func (s *Service) IsUserInChannel(_ context.Context, token, name, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.auth(token); err != nil {
		return false, err
	}
	ch, ok := s.channels[name]
	if !ok {
		return false, nil
	}
	return slices.Contains(ch.members, username), nil
}

func (s *Service) AddListener(_ context.Context, token string, cb chat.ListenerCallback) (chat.ListenerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.auth(token)
	if err != nil {
		return 0, err
	}
	id := chat.ListenerID(s.nextID.Add(1))
	u.listeners = append(u.listeners, listener{id: id, cb: cb})
	return id, nil
}

func (s *Service) RemoveListener(_ context.Context, token string, id chat.ListenerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.auth(token)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(u.listeners, func(l listener) bool { return l.id == id })
	if i < 0 {
		return fmt.Errorf("listener %d: %w", id, chat.ErrNoSuchEntity)
	}
	u.listeners = slices.Delete(u.listeners, i, i+1)
	return nil
}

// Channels returns the names of existing channels.
func (s *Service) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.channels))
	for n := range s.channels {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func (s *Service) auth(token string) (*user, error) {
	u, ok := s.tokens[token]
	if !ok {
		return nil, fmt.Errorf("token: %w", chat.ErrNotAuthorized)
	}
	return u, nil
}

func (s *Service) removeMember(name, username string) error {
	ch, ok := s.channels[name]
	if !ok {
		return fmt.Errorf("part %s: %w", name, chat.ErrNoSuchEntity)
	}
	i := slices.Index(ch.members, username)
	if i < 0 {
		return fmt.Errorf("%s not in %s: %w", username, name, chat.ErrNoSuchEntity)
	}
	ch.members = slices.Delete(ch.members, i, i+1)
	delete(ch.operators, username)
	if len(ch.members) == 0 {
		delete(s.channels, name)
	}
	return nil
}

// Factory is a chat.MessageFactory with monotonically increasing ids.
type Factory struct {
	lastID atomic.Int64
	now    func() time.Time
}

var _ chat.MessageFactory = (*Factory)(nil)

// NewFactory creates a factory. A nil clock means time.Now.
func NewFactory(now func() time.Time) *Factory {
	if now == nil {
		now = time.Now
	}
	return &Factory{now: now}
}

func (f *Factory) Create(_ context.Context, media chat.MediaType, contents []byte) (chat.Message, error) {
	return chat.Message{
		ID:       f.lastID.Add(1),
		Media:    media,
		Contents: slices.Clone(contents),
		Created:  f.now(),
	}, nil
}
