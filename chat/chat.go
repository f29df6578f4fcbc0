// Package chat answers user questions grounded in a current document plus
// its graph neighbourhood. It is a thin consumer of the graph and metadata
// stores; sessions are in-memory only.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rfplabs/docgraph/document"
	"github.com/rfplabs/docgraph/graph"
	"github.com/rfplabs/docgraph/llm"
)

// ErrUnavailable is returned when the model cannot produce an answer.
var ErrUnavailable = errors.New("chat: assistant unavailable")

// historyWindow is how many recent turns are replayed into the prompt.
const historyWindow = 10

// maxQuestionLen bounds accepted user input.
const maxQuestionLen = 1000

// systemInstructions frame every answer.
const systemInstructions = "You are a helpful RFP assistant. Ground answers in the provided context " +
	"and cite filenames when relevant. Be concise and specific. If unsure, say what's missing."

// Turn is one exchange half in a session.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Session holds per-conversation state: the chat history and the document
// the user is currently asking about. Safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	turns   []Turn
	current *document.Document
}

// NewSession creates an empty session.
func NewSession() *Session { return &Session{} }

// Append records a turn.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Content: content})
}

// History returns a copy of all turns.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// last returns up to n most recent turns.
func (s *Session) last(n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) <= n {
		out := make([]Turn, len(s.turns))
		copy(out, s.turns)
		return out
	}
	out := make([]Turn, n)
	copy(out, s.turns[len(s.turns)-n:])
	return out
}

// Clear drops the history, keeping the current document.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

// SetCurrent makes doc the document the session is grounded in and resets
// the history, mirroring a fresh upload.
func (s *Session) SetCurrent(doc *document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = doc
	s.turns = nil
}

// Current returns the session's current document, or nil.
func (s *Session) Current() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Assistant answers questions over a session using the shared completion
// client and the graph store for neighbourhood context.
type Assistant struct {
	client *llm.Client
	store  *graph.Store
}

// NewAssistant wires the assistant to its collaborators.
func NewAssistant(client *llm.Client, store *graph.Store) *Assistant {
	return &Assistant{client: client, store: store}
}

// Answer builds a grounded prompt from the session's current document, its
// graph neighbours, and sample corpus summaries, then asks the model. The
// exchange is appended to the session on success.
func (a *Assistant) Answer(ctx context.Context, sess *Session, question string, corpus []*document.Document) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" || len(question) > maxQuestionLen {
		return "", fmt.Errorf("chat: invalid question")
	}

	grounding := a.buildContext(ctx, sess.Current(), corpus)
	prompt := buildPrompt(sess.last(historyWindow), grounding, question)

	res := a.client.Complete(ctx, prompt)
	if !res.OK() {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, res.Outcome)
	}

	sess.Append("user", question)
	sess.Append("assistant", res.Content)
	return res.Content, nil
}

// buildContext assembles the grounding block: current document summary and
// entities, related documents from the graph, and a few corpus summaries.
// Lookup failures degrade to a note in the context rather than failing the
// chat turn.
func (a *Assistant) buildContext(ctx context.Context, current *document.Document, corpus []*document.Document) string {
	var b strings.Builder

	if current != nil {
		fmt.Fprintf(&b, "User uploaded doc: %s (id %s)\n", current.Filename, current.ID)
		fmt.Fprintf(&b, "Summary: %s\n", current.OverviewSummary)
		if len(current.IndustryTags.Industries) > 0 {
			fmt.Fprintf(&b, "Industries: %s\n", strings.Join(current.IndustryTags.Industries, ", "))
		}
		writeEntityLine(&b, "technologies", current.Entities.Technologies)
		writeEntityLine(&b, "partners", current.Entities.Partners)
		writeEntityLine(&b, "products", current.Entities.Products)

		if a.store != nil {
			related, err := a.store.Related(ctx, current.ID, historyWindow)
			if err != nil {
				fmt.Fprintf(&b, "(graph lookup failed: %v)\n", err)
			} else if len(related) > 0 {
				b.WriteString("Related docs:\n")
				for _, r := range related {
					fmt.Fprintf(&b, "%s via %s\n", r.Filename, r.Via)
				}
			}
		}
	}

	// A few corpus summaries for broader grounding.
	for i, d := range corpus {
		if i == 0 {
			b.WriteString("Sample corpus summaries:\n")
		}
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "%s: %s\n", d.Filename, d.OverviewSummary)
	}

	return b.String()
}

func writeEntityLine(b *strings.Builder, kind string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s: %s\n", kind, strings.Join(names, ", "))
}

// buildPrompt renders the final prompt: instructions, history window,
// context block, question.
func buildPrompt(history []Turn, contextBlock, question string) string {
	var hist strings.Builder
	for _, t := range history {
		content := strings.TrimSpace(strings.ReplaceAll(t.Content, "\n", " "))
		fmt.Fprintf(&hist, "%s: %s\n", strings.ToUpper(t.Role), content)
	}

	return fmt.Sprintf(
		"SYSTEM: %s\n\nCONTEXT:\n%s\n\nHISTORY:\n%s\nUSER: %s\nASSISTANT:",
		systemInstructions, contextBlock, hist.String(), question)
}
