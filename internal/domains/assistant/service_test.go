package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parleychat/parley/internal/domains/chat"
	"github.com/parleychat/parley/pkg/Logger"
	"github.com/parleychat/parley/pkg/completion"
)

type stubAssistantRepo struct {
	cfg *Config

	mu      sync.Mutex
	records []*RunRecord
}

func (r *stubAssistantRepo) GetConfig(ctx context.Context, userID string) (*Config, error) {
	if r.cfg == nil {
		return nil, ErrConfigNotFound
	}
	return r.cfg, nil
}

func (r *stubAssistantRepo) UpsertConfig(ctx context.Context, cfg *Config) error {
	r.cfg = cfg
	return nil
}

func (r *stubAssistantRepo) AppendRunRecord(ctx context.Context, rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

type stubChats struct {
	lines    []chat.ContextLine
	linesErr error
	postErr  error

	mu      sync.Mutex
	replies []chat.ChatEvent
}

func (s *stubChats) Memberships(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}

func (s *stubChats) SendMessage(ctx context.Context, userID, conversationID, body string, kind chat.EventKind) (*chat.ChatEvent, error) {
	return nil, errors.New("not used")
}

func (s *stubChats) PostAssistantReply(ctx context.Context, conversationID, userID, body string) (*chat.ChatEvent, error) {
	if s.postErr != nil {
		return nil, s.postErr
	}
	event := chat.ChatEvent{
		ID:             "evt-reply",
		ConversationID: conversationID,
		AuthorID:       userID,
		Body:           body,
		Kind:           chat.KindAIReply,
		CreatedAt:      time.Now(),
	}
	s.mu.Lock()
	s.replies = append(s.replies, event)
	s.mu.Unlock()
	return &event, nil
}

func (s *stubChats) MarkRead(ctx context.Context, userID, conversationID string) error {
	return nil
}

func (s *stubChats) RecentContext(ctx context.Context, conversationID string, limit int) ([]chat.ContextLine, error) {
	if s.linesErr != nil {
		return nil, s.linesErr
	}
	return s.lines, nil
}

func (s *stubChats) CreateConversation(ctx context.Context, title string, memberIDs []string) (*chat.Conversation, error) {
	return nil, errors.New("not used")
}

type stubRooms struct {
	mu     sync.Mutex
	events []string
}

func (r *stubRooms) Publish(conversationID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *stubRooms) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type stubCompleter struct {
	reply string
	err   error
	panic bool

	mu  sync.Mutex
	got completion.Request
}

func (c *stubCompleter) Complete(ctx context.Context, req completion.Request) (string, error) {
	c.mu.Lock()
	c.got = req
	c.mu.Unlock()
	if c.panic {
		panic("completer exploded")
	}
	return c.reply, c.err
}

func newWorkflow(repo *stubAssistantRepo, chats *stubChats, rooms *stubRooms, completer *stubCompleter) AssistantService {
	return NewAssistantService(repo, chats, rooms, completer, Logger.New(true), 30, time.Second)
}

func assertThinkingPair(t *testing.T, rooms *stubRooms) {
	t.Helper()
	events := rooms.published()
	if len(events) < 2 {
		t.Fatalf("published events = %v, want thinking pair", events)
	}
	if events[0] != chat.EventAIThinking {
		t.Errorf("first event = %q, want %q", events[0], chat.EventAIThinking)
	}
	if events[len(events)-1] != chat.EventAIThinkingDone {
		t.Errorf("last event = %q, want %q", events[len(events)-1], chat.EventAIThinkingDone)
	}
}

func TestHandleWakeWithoutConfig(t *testing.T) {
	repo := &stubAssistantRepo{}
	chats := &stubChats{}
	rooms := &stubRooms{}
	svc := newWorkflow(repo, chats, rooms, &stubCompleter{})

	svc.HandleWake(context.Background(), "conv-1", "alice", "help me")

	assertThinkingPair(t, rooms)
	if len(chats.replies) != 1 {
		t.Fatalf("posted %d replies, want 1", len(chats.replies))
	}
	reply := chats.replies[0]
	if reply.AuthorID != "alice" {
		t.Errorf("reply author = %q, want the triggering identity", reply.AuthorID)
	}
	if !strings.Contains(reply.Body, "no AI provider is configured") {
		t.Errorf("reply body = %q, want the configure notice", reply.Body)
	}
	if len(repo.records) != 0 {
		t.Error("unconfigured wake should not append a run record")
	}
}

func TestHandleWakeSuccess(t *testing.T) {
	repo := &stubAssistantRepo{cfg: &Config{
		UserID:   "alice",
		Provider: "anthropic",
		Model:    "claude-3-5-sonnet-20241022",
		APIKey:   "ak-test",
	}}
	now := time.Now()
	chats := &stubChats{lines: []chat.ContextLine{
		{SenderName: "alice", Body: "hey", SentAt: now.Add(-2 * time.Minute)},
		{SenderName: "bob", Body: "hi", SentAt: now.Add(-time.Minute)},
		{SenderName: "alice", Body: "ready?", SentAt: now},
	}}
	rooms := &stubRooms{}
	completer := &stubCompleter{reply: "你好"}
	svc := newWorkflow(repo, chats, rooms, completer)

	svc.HandleWake(context.Background(), "conv-1", "alice", "translate: hi")

	assertThinkingPair(t, rooms)

	if len(chats.replies) != 1 {
		t.Fatalf("posted %d replies, want 1", len(chats.replies))
	}
	if chats.replies[0].Body != "你好" {
		t.Errorf("reply body = %q, want the completion text", chats.replies[0].Body)
	}

	if completer.got.WireFormat != "messages" {
		t.Errorf("wire format = %q, want messages", completer.got.WireFormat)
	}
	if completer.got.Endpoint == "" {
		t.Error("default endpoint not resolved from the catalog")
	}
	if len(completer.got.Transcript) != 3 {
		t.Errorf("transcript lines = %d, want 3", len(completer.got.Transcript))
	}

	if len(repo.records) != 1 {
		t.Fatalf("appended %d run records, want 1", len(repo.records))
	}
	rec := repo.records[0]
	if rec.ConversationID != "conv-1" || rec.UserID != "alice" {
		t.Errorf("record identity = %s/%s", rec.ConversationID, rec.UserID)
	}
	if rec.MessageCount != 3 {
		t.Errorf("record message count = %d, want 3", rec.MessageCount)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		t.Fatalf("record payload is not valid JSON: %v", err)
	}
	if payload["command"] != "translate: hi" || payload["reply"] != "你好" {
		t.Errorf("record payload = %v", payload)
	}
}

func TestHandleWakeCustomEndpointOverride(t *testing.T) {
	repo := &stubAssistantRepo{cfg: &Config{
		UserID:   "alice",
		Provider: "ollama",
		Model:    "llama3.1:8b-instruct",
		APIKey:   "unused",
		Endpoint: "http://10.0.0.5:11434/v1/chat/completions",
	}}
	completer := &stubCompleter{reply: "ok"}
	svc := newWorkflow(repo, &stubChats{}, &stubRooms{}, completer)

	svc.HandleWake(context.Background(), "conv-1", "alice", "ping")

	if completer.got.Endpoint != "http://10.0.0.5:11434/v1/chat/completions" {
		t.Errorf("endpoint = %q, want the per-user override", completer.got.Endpoint)
	}
}

func TestHandleWakeCompletionFailure(t *testing.T) {
	repo := &stubAssistantRepo{cfg: &Config{
		UserID:   "alice",
		Provider: "openai",
		Model:    "gpt-4o",
		APIKey:   "sk",
	}}
	chats := &stubChats{}
	rooms := &stubRooms{}
	svc := newWorkflow(repo, chats, rooms, &stubCompleter{err: errors.New("context deadline exceeded")})

	svc.HandleWake(context.Background(), "conv-1", "alice", "help")

	assertThinkingPair(t, rooms)
	if len(chats.replies) != 1 {
		t.Fatalf("posted %d replies, want 1", len(chats.replies))
	}
	body := chats.replies[0].Body
	if !strings.HasPrefix(body, "AI request failed: ") {
		t.Errorf("failure reply = %q", body)
	}
	if !strings.Contains(body, "context deadline exceeded") {
		t.Errorf("failure reply should carry the cause: %q", body)
	}
	if len(repo.records) != 0 {
		t.Error("failed run should not append a run record")
	}
}

func TestHandleWakeStaleProvider(t *testing.T) {
	repo := &stubAssistantRepo{cfg: &Config{
		UserID:   "alice",
		Provider: "retired-provider",
		Model:    "old-model",
		APIKey:   "sk",
	}}
	chats := &stubChats{}
	rooms := &stubRooms{}
	svc := newWorkflow(repo, chats, rooms, &stubCompleter{reply: "should not be called"})

	svc.HandleWake(context.Background(), "conv-1", "alice", "help")

	assertThinkingPair(t, rooms)
	if len(chats.replies) != 1 {
		t.Fatalf("posted %d replies, want 1", len(chats.replies))
	}
	if !strings.HasPrefix(chats.replies[0].Body, "AI request failed: ") {
		t.Errorf("stale provider reply = %q", chats.replies[0].Body)
	}
}

func TestHandleWakeContextFailureIsNonFatal(t *testing.T) {
	repo := &stubAssistantRepo{cfg: &Config{
		UserID:   "alice",
		Provider: "openai",
		Model:    "gpt-4o",
		APIKey:   "sk",
	}}
	chats := &stubChats{linesErr: errors.New("cache down")}
	completer := &stubCompleter{reply: "answered anyway"}
	svc := newWorkflow(repo, chats, &stubRooms{}, completer)

	svc.HandleWake(context.Background(), "conv-1", "alice", "help")

	if len(chats.replies) != 1 || chats.replies[0].Body != "answered anyway" {
		t.Fatalf("replies = %+v, want the completion despite missing context", chats.replies)
	}
	if len(completer.got.Transcript) != 0 {
		t.Errorf("transcript = %d lines, want none after context failure", len(completer.got.Transcript))
	}
	if len(repo.records) != 1 {
		t.Fatalf("appended %d run records, want 1", len(repo.records))
	}
	if repo.records[0].MessageCount != 0 {
		t.Errorf("message count = %d, want 0", repo.records[0].MessageCount)
	}
}

func TestHandleWakeReplyPostFailureSkipsRecord(t *testing.T) {
	repo := &stubAssistantRepo{cfg: &Config{
		UserID:   "alice",
		Provider: "openai",
		Model:    "gpt-4o",
		APIKey:   "sk",
	}}
	chats := &stubChats{postErr: errors.New("db down")}
	rooms := &stubRooms{}
	svc := newWorkflow(repo, chats, rooms, &stubCompleter{reply: "answer"})

	svc.HandleWake(context.Background(), "conv-1", "alice", "help")

	assertThinkingPair(t, rooms)
	if len(repo.records) != 0 {
		t.Error("run record appended although the reply was never persisted")
	}
}

func TestHandleWakeThinkingDoneSurvivesPanic(t *testing.T) {
	repo := &stubAssistantRepo{cfg: &Config{
		UserID:   "alice",
		Provider: "openai",
		Model:    "gpt-4o",
		APIKey:   "sk",
	}}
	rooms := &stubRooms{}
	svc := newWorkflow(repo, &stubChats{}, rooms, &stubCompleter{panic: true})

	svc.HandleWake(context.Background(), "conv-1", "alice", "help")

	assertThinkingPair(t, rooms)
}

func TestSaveConfigValidation(t *testing.T) {
	repo := &stubAssistantRepo{}
	svc := newWorkflow(repo, &stubChats{}, &stubRooms{}, &stubCompleter{})

	if _, err := svc.SaveConfig(context.Background(), "alice", SaveConfigRequest{
		Provider: "no-such", Model: "gpt-4o", APIKey: "sk",
	}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("err = %v, want ErrUnknownProvider", err)
	}

	if _, err := svc.SaveConfig(context.Background(), "alice", SaveConfigRequest{
		Provider: "openai", Model: "claude-3-opus-20240229", APIKey: "sk",
	}); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("err = %v, want ErrUnknownModel", err)
	}

	resp, err := svc.SaveConfig(context.Background(), "alice", SaveConfigRequest{
		Provider: "openai", Model: "gpt-4o", APIKey: "sk-live",
	})
	if err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if resp.APIKey != maskedKeyPlaceholder {
		t.Errorf("response api key = %q, want masked", resp.APIKey)
	}
	if repo.cfg == nil || repo.cfg.APIKey != "sk-live" {
		t.Error("stored config should keep the real credential")
	}
}

func TestGetConfigMasksCredential(t *testing.T) {
	repo := &stubAssistantRepo{cfg: &Config{
		UserID:   "alice",
		Provider: "openai",
		Model:    "gpt-4o",
		APIKey:   "sk-live",
	}}
	svc := newWorkflow(repo, &stubChats{}, &stubRooms{}, &stubCompleter{})

	resp, err := svc.GetConfig(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if resp.APIKey != maskedKeyPlaceholder {
		t.Errorf("api key = %q, want masked", resp.APIKey)
	}

	empty := &stubAssistantRepo{}
	svc = newWorkflow(empty, &stubChats{}, &stubRooms{}, &stubCompleter{})
	if _, err := svc.GetConfig(context.Background(), "alice"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("err = %v, want ErrConfigNotFound", err)
	}
}
