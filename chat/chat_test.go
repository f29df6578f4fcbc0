package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rfplabs/docgraph/document"
	"github.com/rfplabs/docgraph/llm"
)

func assistantWithAnswer(t *testing.T, answer string, status int) (*Assistant, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, answer)
	}))
	client := llm.New(llm.Config{Model: "m", Endpoints: []string{srv.URL}, Retries: 1, DelaySec: 1})
	return NewAssistant(client, nil), srv.Close
}

func TestSessionHistory(t *testing.T) {
	s := NewSession()
	s.Append("user", "hello")
	s.Append("assistant", "hi")

	h := s.History()
	if len(h) != 2 {
		t.Fatalf("len = %d, want 2", len(h))
	}
	if h[0].Role != "user" || h[1].Role != "assistant" {
		t.Errorf("history = %+v", h)
	}

	s.Clear()
	if len(s.History()) != 0 {
		t.Error("Clear did not drop history")
	}
}

func TestSessionSetCurrentResetsHistory(t *testing.T) {
	s := NewSession()
	s.Append("user", "about the old doc")

	doc := &document.Document{ID: "abc123def456", Filename: "new.pdf"}
	s.SetCurrent(doc)

	if got := s.Current(); got == nil || got.ID != doc.ID {
		t.Fatalf("Current = %+v", got)
	}
	if len(s.History()) != 0 {
		t.Error("history survived a document switch")
	}
}

func TestAnswerAppendsTurns(t *testing.T) {
	a, done := assistantWithAnswer(t, "the scope is cloud migration", http.StatusOK)
	defer done()

	sess := NewSession()
	got, err := a.Answer(context.Background(), sess, "what is the scope?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != "the scope is cloud migration" {
		t.Errorf("answer = %q", got)
	}

	h := sess.History()
	if len(h) != 2 {
		t.Fatalf("history len = %d, want 2", len(h))
	}
	if h[0].Role != "user" || h[0].Content != "what is the scope?" {
		t.Errorf("user turn = %+v", h[0])
	}
	if h[1].Role != "assistant" || h[1].Content != got {
		t.Errorf("assistant turn = %+v", h[1])
	}
}

func TestAnswerRejectsInvalidQuestion(t *testing.T) {
	a, done := assistantWithAnswer(t, "unused", http.StatusOK)
	defer done()

	sess := NewSession()
	if _, err := a.Answer(context.Background(), sess, "   ", nil); err == nil {
		t.Error("expected error for blank question")
	}
	if _, err := a.Answer(context.Background(), sess, strings.Repeat("x", maxQuestionLen+1), nil); err == nil {
		t.Error("expected error for oversized question")
	}
	if len(sess.History()) != 0 {
		t.Error("rejected question polluted the history")
	}
}

func TestAnswerUnavailable(t *testing.T) {
	a, done := assistantWithAnswer(t, "", http.StatusInternalServerError)
	defer done()

	sess := NewSession()
	_, err := a.Answer(context.Background(), sess, "anything there?", nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if len(sess.History()) != 0 {
		t.Error("failed exchange was recorded in the history")
	}
}

func TestBuildContext(t *testing.T) {
	doc := &document.Document{
		ID:              "abc123def456",
		Filename:        "proposal.pdf",
		OverviewSummary: "A cloud migration proposal.",
	}
	doc.IndustryTags.Industries = []string{"Banking"}
	doc.Entities.Technologies = []string{"Kubernetes"}

	a := NewAssistant(nil, nil)
	corpus := []*document.Document{
		{Filename: "one.pdf", OverviewSummary: "first"},
		{Filename: "two.pdf", OverviewSummary: "second"},
		{Filename: "three.pdf", OverviewSummary: "third"},
		{Filename: "four.pdf", OverviewSummary: "must be cut"},
	}
	got := a.buildContext(context.Background(), doc, corpus)

	for _, want := range []string{"proposal.pdf", "A cloud migration proposal.", "Banking", "Kubernetes", "one.pdf"} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
	// Only the first three corpus summaries are included.
	if strings.Contains(got, "four.pdf") {
		t.Errorf("context includes fourth corpus doc:\n%s", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	history := []Turn{
		{Role: "user", Content: "first\nquestion"},
		{Role: "assistant", Content: "first answer"},
	}
	got := buildPrompt(history, "CTX_BLOCK", "second question")

	for _, want := range []string{"SYSTEM:", "CONTEXT:\nCTX_BLOCK", "USER: first question", "ASSISTANT: first answer", "USER: second question", "ASSISTANT:"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestHistoryWindow(t *testing.T) {
	s := NewSession()
	for i := 0; i < historyWindow+5; i++ {
		s.Append("user", fmt.Sprintf("turn %d", i))
	}
	got := s.last(historyWindow)
	if len(got) != historyWindow {
		t.Fatalf("len = %d, want %d", len(got), historyWindow)
	}
	if got[0].Content != "turn 5" {
		t.Errorf("window start = %q, want turn 5", got[0].Content)
	}
}
