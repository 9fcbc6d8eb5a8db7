// Package service orchestrates the chat flow: persist the user turn,
// assemble the conversation prompt, dispatch to the provider adapter,
// reconcile usage, and persist the assistant turn.
//
// FLOW (SendMessage):
//
//	validate -> load chat -> resolve model -> save user message
//	-> build prompt from recent history -> adapter Generate
//	-> reconcile usage -> save assistant message (+usage metadata)
//	-> maybe kick off background title generation
//
// Title generation is strictly best effort. It runs detached from the
// request, and any failure is logged and swallowed.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/apexplatform/inference-gateway/internal/config"
	"github.com/apexplatform/inference-gateway/internal/llm"
	"github.com/apexplatform/inference-gateway/internal/prompt"
	"github.com/apexplatform/inference-gateway/internal/store"
	"github.com/apexplatform/inference-gateway/internal/tokens"
	"github.com/apexplatform/inference-gateway/internal/usage"
)

// ErrModelNotFound is returned when a chat references a model that is
// no longer configured.
var ErrModelNotFound = errors.New("model not found")

const (
	titleSeedLimit  = 500
	titleMaxLen     = 60
	titleTimeout    = 30 * time.Second
	titlePromptTmpl = "Generate a short chat title (max 6 words) for a conversation that starts with this message. Reply with the title only, no quotes:\n\n%s"
)

// Reply is the outcome of one SendMessage round trip.
type Reply struct {
	UserMessage      *store.Message
	AssistantMessage *store.Message
	Usage            usage.Summary
}

// Service wires the store, the adapter registry, and the configured
// model catalog together.
type Service struct {
	store    store.Store
	registry *llm.Registry
	models   map[uuid.UUID]config.ModelConfig
	exact    bool
}

// New builds a Service over the configured models.
func New(st store.Store, registry *llm.Registry, models []config.ModelConfig, exactTokens bool) *Service {
	catalog := make(map[uuid.UUID]config.ModelConfig, len(models))
	for _, m := range models {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			// Validation rejects bad IDs before we get here.
			continue
		}
		catalog[id] = m
	}
	return &Service{store: st, registry: registry, models: catalog, exact: exactTokens}
}

// CreateChat starts a new conversation bound to a configured model.
func (s *Service) CreateChat(ctx context.Context, modelID uuid.UUID) (*store.Chat, error) {
	if _, ok := s.models[modelID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}
	return s.store.CreateChat(ctx, modelID)
}

// Messages returns the chat's full history, oldest first.
func (s *Service) Messages(ctx context.Context, chatID uuid.UUID) ([]store.Message, error) {
	if _, err := s.store.Chat(ctx, chatID); err != nil {
		return nil, err
	}
	return s.store.Messages(ctx, chatID)
}

// ClearMessages wipes the chat's history, keeping the chat itself.
func (s *Service) ClearMessages(ctx context.Context, chatID uuid.UUID) error {
	return s.store.ClearMessages(ctx, chatID)
}

// SendMessage runs one full conversation turn.
func (s *Service) SendMessage(ctx context.Context, chatID uuid.UUID, content string) (*Reply, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &llm.RequestError{Reason: "message content must not be blank"}
	}

	chat, err := s.store.Chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	model, ok := s.models[chat.ModelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, chat.ModelID)
	}

	userMsg, err := s.store.AppendMessage(ctx, chatID, "user", content, "")
	if err != nil {
		return nil, err
	}

	history, err := s.store.RecentMessages(ctx, chatID, prompt.MaxFetch)
	if err != nil {
		return nil, err
	}

	contextLimit := llm.IntField(model.ConfigJSON, "contextLength")
	assembled := prompt.Build(toPromptMessages(history), prompt.Budget(contextLimit))

	req := s.buildRequest(chat.ModelID, model, assembled)
	result, err := s.registry.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	summary := usage.Reconcile(usage.Report{
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		ProviderTotal:    result.TotalTokens,
		Prompt:           assembled,
		Completion:       result.Content,
		ContextLimit:     contextLimit,
		Estimator:        s.estimatorFor(model),
	})

	metadata := ""
	if raw, err := json.Marshal(map[string]usage.Summary{"usage": summary}); err == nil {
		metadata = string(raw)
	} else {
		log.Warn().Err(err).Msg("failed to marshal usage metadata")
	}

	assistantMsg, err := s.store.AppendMessage(ctx, chatID, "assistant", result.Content, metadata)
	if err != nil {
		return nil, err
	}

	if chat.Title == "" {
		go s.generateTitle(chat.ID, model, content)
	}

	return &Reply{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Usage:            summary,
	}, nil
}

func (s *Service) buildRequest(modelID uuid.UUID, model config.ModelConfig, promptText string) llm.Request {
	providerType := model.Provider.Type
	if strings.TrimSpace(providerType) == "" {
		providerType = inferProviderType(model.Provider.Name)
	}
	return llm.Request{
		ModelID:         modelID,
		ModelName:       model.Name,
		ModelKey:        model.ModelKey,
		ProviderType:    providerType,
		ProviderName:    model.Provider.Name,
		ProviderBaseURL: model.Provider.BaseURL,
		ProviderAPIKey:  model.Provider.APIKey,
		Prompt:          promptText,
		ConfigJSON:      model.ConfigJSON,
	}
}

// inferProviderType derives a routing label from a provider display
// name when no explicit type is configured.
func inferProviderType(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "deepseek"):
		return "DEEPSEEK"
	case strings.Contains(lower, "openai"):
		return "OPENAI"
	case strings.Contains(lower, "gemini"), strings.Contains(lower, "google"):
		return "GEMINI"
	default:
		return "OPENAI_COMPAT"
	}
}

func (s *Service) estimatorFor(model config.ModelConfig) tokens.Estimator {
	if s.exact {
		if enc, err := tokens.ForModel(model.ModelKey); err == nil {
			return enc
		}
	}
	return tokens.Heuristic{}
}

// generateTitle asks the model for a short title and stores it. Runs
// detached from the originating request.
func (s *Service) generateTitle(chatID uuid.UUID, model config.ModelConfig, firstMessage string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("title generation panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
	defer cancel()

	seed := strings.Join(strings.Fields(firstMessage), " ")
	if len(seed) > titleSeedLimit {
		seed = seed[:titleSeedLimit]
	}

	req := s.buildRequest(uuid.Nil, model, fmt.Sprintf(titlePromptTmpl, seed))
	req.ConfigJSON = `{"maxOutputTokens": 32}`

	result, err := s.registry.Generate(ctx, req)
	if err != nil {
		log.Debug().Err(err).Str("chat_id", chatID.String()).Msg("title generation failed")
		return
	}

	title := sanitizeTitle(result.Content)
	if title == "" {
		return
	}
	if err := s.store.SetTitle(ctx, chatID, title); err != nil {
		log.Debug().Err(err).Str("chat_id", chatID.String()).Msg("title save failed")
	}
}

// sanitizeTitle reduces model output to a single clean line.
func sanitizeTitle(raw string) string {
	line := raw
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	line = strings.Trim(line, `"'`)
	line = strings.TrimLeft(line, "-*# ")
	if len(line) > titleMaxLen {
		line = strings.TrimSpace(line[:titleMaxLen])
	}
	return line
}

// toPromptMessages reverses the store's newest-first window to oldest
// first. The builder's stable re-sort then preserves the store's rowid
// tie-break for messages sharing a timestamp.
func toPromptMessages(history []store.Message) []prompt.Message {
	out := make([]prompt.Message, len(history))
	for i, m := range history {
		out[len(history)-1-i] = prompt.Message{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}
	return out
}
