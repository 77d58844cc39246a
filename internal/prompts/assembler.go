package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// FallbackAnswer is the fixed reply when the context holds no answer.
const FallbackAnswer = "I don't know based on my portfolio content."

//go:embed template/concise.txt
var conciseSystemPrompt string

//go:embed template/detailed.txt
var detailedSystemPrompt string

//go:embed template/user.txt
var userPrompt string

// Policy pairs a system prompt template with an output token budget.
type Policy struct {
	Name           string
	SystemTemplate string
	MaxTokens      int
}

var policies = map[string]Policy{
	"concise":  {Name: "concise", SystemTemplate: conciseSystemPrompt, MaxTokens: 120},
	"detailed": {Name: "detailed", SystemTemplate: detailedSystemPrompt, MaxTokens: 300},
}

// LookupPolicy returns the named policy.
func LookupPolicy(name string) (Policy, error) {
	p, ok := policies[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Policy{}, fmt.Errorf("unknown prompt policy %q", name)
	}
	return p, nil
}

// Message is one entry of the prompt sent to the completion service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is a client-supplied conversation entry.
type Turn struct {
	Role    string
	Content string
}

type Options struct {
	OwnerName    string
	Projects     []string
	HistoryTurns int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Assembler turns retrieved context, history and the question into the
// system and user messages. It performs no I/O.
type Assembler struct {
	policy   Policy
	opts     Options
	template prompt.ChatTemplate
}

func NewAssembler(policy Policy, opts Options) *Assembler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assembler{
		policy: policy,
		opts:   opts,
		template: prompt.FromMessages(
			schema.GoTemplate,
			schema.SystemMessage(policy.SystemTemplate),
			schema.UserMessage(userPrompt),
		),
	}
}

func (a *Assembler) Policy() Policy {
	return a.policy
}

type historyLine struct {
	Role    string
	Content string
}

// Assemble renders the two prompt messages. rowCount is the number of rows
// rendered into contextBlock.
func (a *Assembler) Assemble(ctx context.Context, rowCount int, contextBlock string, history []Turn, question string) ([]Message, error) {
	vars := map[string]any{
		"Owner":       a.opts.OwnerName,
		"Projects":    a.opts.Projects,
		"CurrentYear": a.opts.Now().Year(),
		"Fallback":    FallbackAnswer,
		"RowCount":    rowCount,
		"Context":     contextBlock,
		"History":     a.historyLines(history),
		"Question":    question,
	}

	msgs, err := a.template.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("prompt render: %w", err)
	}
	if len(msgs) != 2 || msgs[0] == nil || msgs[1] == nil {
		return nil, fmt.Errorf("prompt render: expected 2 messages, got %d", len(msgs))
	}

	return []Message{
		{Role: string(schema.System), Content: strings.TrimSpace(msgs[0].Content)},
		{Role: string(schema.User), Content: strings.TrimSpace(msgs[1].Content)},
	}, nil
}

// historyLines keeps the last HistoryTurns entries, then drops any that are
// not plain user/assistant text.
func (a *Assembler) historyLines(history []Turn) []historyLine {
	lines := make([]historyLine, 0, len(history))
	for _, turn := range trimTail(history, a.opts.HistoryTurns) {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		switch role := schema.RoleType(strings.ToLower(strings.TrimSpace(turn.Role))); role {
		case schema.User, schema.Assistant:
			lines = append(lines, historyLine{Role: string(role), Content: content})
		}
	}
	return lines
}

func trimTail(turns []Turn, maxTurns int) []Turn {
	if maxTurns <= 0 {
		return nil
	}
	if len(turns) <= maxTurns {
		return turns
	}
	return turns[len(turns)-maxTurns:]
}
