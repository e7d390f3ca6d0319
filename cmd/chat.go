package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom/internal/ai"
	"github.com/KaramelBytes/dataloom/internal/chat"
	"github.com/KaramelBytes/dataloom/internal/utils"
)

var (
	chatLoad          loadFlags
	chatQuestion      string
	chatProvider      string
	chatModel         string
	chatMaxTokens     int
	chatTemp          float64
	chatContextBudget int
	chatStream        bool
	chatDryRun        bool
	chatBudgetLimit   float64
	chatOllamaHost    string
	chatTimeoutSec    int
	chatJSON          bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <file>",
	Short: "Ask an AI model questions about a dataset",
	Long: `chat sends the dataset's structure, summary statistics and as many CSV rows as
fit the model's context window, then answers questions. Without --question it
starts an interactive session; type /clear to reset the history and /exit to quit.`,
	Example: `  dataloom chat sales.csv -q "Which region sells the most units?"
  dataloom chat sales.csv --provider ollama --model llama3.1 --stream
  dataloom chat sales.csv --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if chatJSON {
			chatStream = false
		}
		t, err := loadTable(args[0], &chatLoad)
		if err != nil {
			return err
		}
		model := selectModel(cfg, chatModel)
		opts := chat.Options{
			Model:         model,
			MaxTokens:     chatMaxTokens,
			Temperature:   chatTemp,
			ContextBudget: chatContextBudget,
		}
		if !cmd.Flags().Changed("max-tokens") && cfg.MaxTokens > 0 {
			opts.MaxTokens = cfg.MaxTokens
		}
		if !cmd.Flags().Changed("temp") {
			opts.Temperature = cfg.Temperature
		}
		if opts.ContextBudget == 0 {
			opts.ContextBudget = cfg.ContextTokenBudget
		}
		conv, err := chat.NewConversation(filepath.Base(args[0]), t, opts)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		promptTokens := utils.CountTokens(conv.System())
		if conv.Truncated() {
			fmt.Fprintln(os.Stderr, "⚠ Dataset truncated to fit the model context window.")
		}

		if mi, ok := ai.LookupModel(model); ok {
			if cost, ok := ai.EstimateCostUSD(model, promptTokens, opts.MaxTokens); ok {
				fmt.Fprintf(os.Stderr, "Estimated max cost per question: ~$%.4f (in %.4f/out %.4f per 1K tokens)\n", cost, mi.InputPerK, mi.OutputPerK)
				if err := enforceBudget(cost, chatBudgetLimit); err != nil {
					return err
				}
			}
		}
		if chatDryRun {
			fmt.Fprintf(out, "--dry-run: no API call will be made. System prompt (≈%d tokens):\n\n", promptTokens)
			fmt.Fprintln(out, conv.System())
			head, body, _ := strings.Cut(conv.System(), "```")
			bd := utils.TokenBreakdown(map[string]string{"context": head, "dataset": body})
			fmt.Fprintf(out, "\nTokens: context ≈%d, dataset and guidelines ≈%d\n", bd["context"], bd["dataset"])
			return nil
		}

		rt, provider, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: chatProvider, OllamaHost: chatOllamaHost})
		if err != nil {
			return err
		}
		ask := func(q string) error {
			ctx, cancel := withTimeout(cmd.Context(), chatTimeoutSec)
			defer cancel()
			reply, err := conv.Ask(ctx, rt, q, streamTo(out, chatStream))
			if err != nil {
				return explainError(err, provider, model)
			}
			switch {
			case chatJSON:
				b, err := json.MarshalIndent(map[string]any{
					"model":         model,
					"provider":      provider,
					"question":      q,
					"reply":         reply,
					"prompt_tokens": promptTokens,
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal output: %w", err)
				}
				fmt.Fprintln(out, string(b))
			case chatStream:
				fmt.Fprintln(out)
			default:
				fmt.Fprintln(out, reply)
			}
			return nil
		}

		if chatQuestion != "" {
			return ask(chatQuestion)
		}
		return repl(cmd.InOrStdin(), out, conv, ask)
	},
}

// repl reads questions line by line until EOF or /exit.
func repl(in io.Reader, out io.Writer, conv *chat.Conversation, ask func(string) error) error {
	fmt.Fprintf(out, "Chatting about %s. /clear resets, /exit quits.\n", conv.Name())
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			conv.Clear()
			fmt.Fprintln(out, "History cleared.")
			continue
		}
		if err := ask(line); err != nil {
			fmt.Fprintln(out, "✗", err)
		}
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatLoad.register(chatCmd)
	f := chatCmd.Flags()
	f.StringVarP(&chatQuestion, "question", "q", "", "ask one question and exit")
	f.StringVar(&chatProvider, "provider", "", "provider: openai|openrouter|ollama (default config default_provider)")
	f.StringVar(&chatModel, "model", "", "model name (default config default_model)")
	f.IntVar(&chatMaxTokens, "max-tokens", 0, "max tokens for each reply")
	f.Float64Var(&chatTemp, "temp", 0, "sampling temperature")
	f.IntVar(&chatContextBudget, "context-budget", 0, "prompt token budget (default from the model catalog)")
	f.BoolVar(&chatStream, "stream", false, "stream replies if supported by the provider")
	f.BoolVar(&chatDryRun, "dry-run", false, "print the system prompt without calling the API")
	f.Float64Var(&chatBudgetLimit, "budget-limit", 0, "fail if estimated max cost (USD) per question exceeds this budget")
	f.StringVar(&chatOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	f.IntVar(&chatTimeoutSec, "timeout-sec", 180, "request timeout in seconds")
	f.BoolVar(&chatJSON, "json", false, "emit each reply as JSON")
}
