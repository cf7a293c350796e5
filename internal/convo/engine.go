package convo

import (
	"context"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lumenwall/lumenwall/internal/config"
	"github.com/lumenwall/lumenwall/internal/trace"
)

// persona keeps replies short and renderable: the character speaks
// through a wall of lights, one letter at a time.
const persona = "You are a boy trapped on the other side of a wall of " +
	"Christmas lights, and the lights are your only way to speak. " +
	"Keep responses concise (under 50 characters when possible) and use " +
	"only letters, spaces, and exclamation points, because they will be " +
	"flashed one character at a time on individual bulbs. Stay in " +
	"character: scared, trying to reach the people on the other side, " +
	"but brave and resourceful."

// completer is the slice of the OpenAI client the engine uses.
type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Engine turns transcribed speech into a reply. Every reply is
// recorded in the history, including the fallback line, so the lights
// always have something to say and the model sees what was shown.
type Engine struct {
	client   completer
	history  *History
	model    string
	fallback string
	timeout  time.Duration
}

func NewEngine(cfg *config.Config, history *History) *Engine {
	var client completer
	if cfg.OpenAIKey != "" {
		client = openai.NewClient(cfg.OpenAIKey)
	}
	return &Engine{
		client:   client,
		history:  history,
		model:    cfg.OpenAIModel,
		fallback: cfg.FallbackReply,
		timeout:  cfg.ReplyTimeout,
	}
}

// History exposes the conversation log for the server API.
func (e *Engine) History() *History { return e.history }

// Respond appends the user turn, asks the model once, and returns the
// reply turn. Any failure yields the fallback line instead of an
// error; the turn must end with the lights saying something.
func (e *Engine) Respond(ctx context.Context, userText string) Turn {
	log := trace.Logger(ctx)
	e.history.Add(RoleUser, userText)

	text := e.complete(ctx, log)
	if text == "" {
		text = e.fallback
	}
	e.history.Add(RoleAssistant, text)
	return Turn{Role: RoleAssistant, Text: text, At: time.Now()}
}

func (e *Engine) complete(ctx context.Context, log *slog.Logger) string {
	if e.client == nil {
		log.Warn("no chat client configured, using fallback reply")
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	msgs := make([]openai.ChatCompletionMessage, 0, e.history.Len()+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: persona,
	})
	for _, t := range e.history.Window() {
		role := openai.ChatMessageRoleUser
		if t.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    e.model,
		Messages: msgs,
	})
	if err != nil {
		log.Warn("chat completion failed", "error", err)
		return ""
	}
	if len(resp.Choices) == 0 {
		log.Warn("chat completion returned no choices")
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}
