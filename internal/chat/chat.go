// Package chat holds a dataset-grounded LLM conversation.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/KaramelBytes/dataloom/internal/ai"
	"github.com/KaramelBytes/dataloom/internal/analysis"
	"github.com/KaramelBytes/dataloom/internal/table"
	"github.com/KaramelBytes/dataloom/internal/utils"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultModel is used when Options.Model is empty.
	DefaultModel = "gpt-4o"
	// sampleRecords is the number of head records embedded as structure info.
	sampleRecords = 5
	// defaultReplyReserve is kept free for the reply when MaxTokens is unset.
	defaultReplyReserve = 1024
)

var (
	ErrNoData        = errors.New("please upload a data file first to use the chat assistant")
	ErrEmptyQuestion = errors.New("question cannot be empty")
)

const guidelines = "IMPORTANT RESPONSE GUIDELINES:\n" +
	"1. Be extremely concise and professional in your responses\n" +
	"2. Present your answers with minimal explanation - focus on key insights\n" +
	"3. Use business terminology and metrics whenever possible\n" +
	"4. Format responses with bullet points and clear headings\n" +
	"5. Include percentages alongside raw numbers when relevant\n" +
	"6. Prioritize actionable business insights over detailed explanations\n" +
	"7. When possible, suggest a business action based on the findings\n" +
	"This is for business professionals who need clear, direct answers."

// Options controls the model request and prompt budget.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// ContextBudget caps the whole prompt in tokens. Zero uses the model
	// catalog's context size.
	ContextBudget int
}

// Conversation is safe for concurrent use.
type Conversation struct {
	mu        sync.Mutex
	name      string
	opts      Options
	system    string
	truncated bool
	messages  []ai.Message
	// gen increments on Clear so in-flight replies to a cleared history are dropped.
	gen int
}

type statsEntry struct {
	Mean analysis.Number `json:"mean"`
	Min  analysis.Number `json:"min"`
	Max  analysis.Number `json:"max"`
}

type dataInfo struct {
	Columns      []string              `json:"columns"`
	DataTypes    map[string]string     `json:"data_types"`
	SampleData   []map[string]any      `json:"sample_data"`
	Shape        [2]int                `json:"shape"`
	SummaryStats map[string]statsEntry `json:"summary_stats"`
}

// NewConversation builds the system prompt for t. name labels the dataset.
func NewConversation(name string, t *table.Table, opts Options) (*Conversation, error) {
	if ok, _ := table.Validate(t); !ok {
		return nil, ErrNoData
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	c := &Conversation{name: name, opts: opts}
	system, truncated, err := systemPrompt(t, opts)
	if err != nil {
		return nil, err
	}
	c.system, c.truncated = system, truncated
	return c, nil
}

func systemPrompt(t *table.Table, opts Options) (string, bool, error) {
	info := dataInfo{
		Columns:      t.Names(),
		DataTypes:    map[string]string{},
		SampleData:   table.Records(t, sampleRecords),
		Shape:        [2]int{t.NumRows(), t.NumCols()},
		SummaryStats: map[string]statsEntry{},
	}
	for _, c := range t.Columns() {
		info.DataTypes[c.Name] = c.Kind.String()
	}
	st, err := analysis.ComputeStats(t, nil)
	if err != nil {
		return "", false, fmt.Errorf("summary stats: %w", err)
	}
	if st != nil {
		for _, cs := range st.Columns {
			info.SummaryStats[cs.Column] = statsEntry{Mean: cs.Mean, Min: cs.Min, Max: cs.Max}
		}
	}
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return "", false, fmt.Errorf("marshal dataset info: %w", err)
	}

	var head strings.Builder
	head.WriteString("You are a professional business intelligence assistant with full access to the user's dataset. ")
	head.WriteString("You're helping business users analyze their data efficiently with actionable insights. ")
	fmt.Fprintf(&head, "The current dataset has %d rows and %d columns. ", t.NumRows(), t.NumCols())
	fmt.Fprintf(&head, "Here's information about the dataset structure: %s\n\n", infoJSON)
	head.WriteString("You have full access to the dataset to perform computations. ")
	head.WriteString("The complete dataset in CSV format is provided below between triple backticks:\n")

	var csvBuf bytes.Buffer
	if err := table.WriteCSV(&csvBuf, t); err != nil {
		return "", false, fmt.Errorf("encode dataset: %w", err)
	}
	budget := opts.ContextBudget
	if budget <= 0 {
		budget = ai.ContextBudget(opts.Model)
	}
	reserve := opts.MaxTokens
	if reserve <= 0 {
		reserve = defaultReplyReserve
	}
	room := budget - reserve - utils.CountTokens(head.String()) - utils.CountTokens(guidelines) - 32
	if room < 0 {
		room = 0
	}
	body, truncated := utils.TruncateLines(csvBuf.String(), room)

	var b strings.Builder
	b.WriteString(head.String())
	b.WriteString("```\n")
	b.WriteString(body)
	b.WriteString("\n```\n\n")
	if truncated {
		kept := strings.Count(body, "\n") - 1
		if kept < 0 {
			kept = 0
		}
		fmt.Fprintf(&b, "NOTE: only the first %d of %d rows fit in the context window; the summary statistics above cover all rows.\n\n", kept, t.NumRows())
	}
	b.WriteString(guidelines)
	return b.String(), truncated, nil
}

// Name returns the dataset label.
func (c *Conversation) Name() string { return c.name }

// Model is the model the conversation was built for.
func (c *Conversation) Model() string { return c.opts.Model }

// System returns the system prompt.
func (c *Conversation) System() string { return c.system }

// Truncated reports whether the dataset CSV was cut to fit the context budget.
func (c *Conversation) Truncated() bool { return c.truncated }

// Messages returns a copy of the user/assistant history.
func (c *Conversation) Messages() []ai.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ai.Message(nil), c.messages...)
}

// Clear drops the history. The system prompt is kept.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.gen++
}

// Ask sends question with the full history to rt and records the reply.
// onDelta, when non-nil, receives streamed chunks (or the whole reply for
// runtimes that do not stream). A runtime failure is recorded as an
// "Error: ..." assistant message and also returned.
func (c *Conversation) Ask(ctx context.Context, rt ai.Runtime, question string, onDelta func(string)) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}
	c.mu.Lock()
	c.messages = append(c.messages, ai.Message{Role: RoleUser, Content: question})
	req := ai.GenerateRequest{
		Model:       c.opts.Model,
		Messages:    append([]ai.Message{{Role: RoleSystem, Content: c.system}}, c.messages...),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	}
	gen := c.gen
	c.mu.Unlock()

	reply, err := generate(ctx, rt, req, onDelta)
	if err != nil {
		reply = "Error: " + err.Error()
	}

	c.mu.Lock()
	if c.gen == gen {
		c.messages = append(c.messages, ai.Message{Role: RoleAssistant, Content: reply})
	}
	c.mu.Unlock()
	return reply, err
}

func generate(ctx context.Context, rt ai.Runtime, req ai.GenerateRequest, onDelta func(string)) (string, error) {
	if rt == nil {
		return "", errors.New("no chat runtime configured")
	}
	if srt, ok := rt.(ai.StreamRuntime); ok {
		var b strings.Builder
		err := srt.GenerateStream(ctx, req, func(d string) {
			b.WriteString(d)
			if onDelta != nil {
				onDelta(d)
			}
		})
		return b.String(), err
	}
	resp, err := rt.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if onDelta != nil && text != "" {
		onDelta(text)
	}
	return text, nil
}
