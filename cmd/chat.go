package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fundqa/internal/assistant"
	"github.com/sells-group/fundqa/internal/model"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question loop",
	Long:  "Reads questions from stdin until quit, exit or EOF. With --save the conversation is written to a JSON file on exit.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initQA(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		a, err := env.NewAssistant("")
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "UTI mutual fund assistant (%d records, llm=%t). Type 'quit' to exit.\n",
			env.Engine.Len(), a.UsesLLM())
		if err := chatLoop(ctx, a, os.Stdin, os.Stdout); err != nil {
			return err
		}

		if dir, _ := cmd.Flags().GetString("save"); dir != "" {
			path, err := saveConversation(dir, a.History(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Conversation saved to %s\n", path)
		}
		return nil
	},
}

// chatLoop answers lines from r until a quit command or EOF.
func chatLoop(ctx context.Context, a *assistant.Assistant, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "\n> ")
		if !sc.Scan() {
			fmt.Fprintln(w)
			return eris.Wrap(sc.Err(), "chat: read input")
		}
		q := strings.TrimSpace(sc.Text())
		switch strings.ToLower(q) {
		case "":
			continue
		case "quit", "exit", "q":
			return nil
		}

		resp, err := a.Ask(ctx, q)
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			continue
		}
		printAnswer(w, resp)
	}
}

// conversation is the saved chat file.
type conversation struct {
	SavedAt      time.Time           `json:"saved_at"`
	Interactions []model.Interaction `json:"interactions"`
}

// saveConversation writes history to dir as conversation_<timestamp>.json.
func saveConversation(dir string, history []model.Interaction, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "chat: create save dir")
	}
	if history == nil {
		history = []model.Interaction{}
	}
	data, err := json.MarshalIndent(conversation{SavedAt: now.UTC(), Interactions: history}, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "chat: marshal conversation")
	}
	path := filepath.Join(dir, "conversation_"+now.UTC().Format("20060102_150405")+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrap(err, "chat: write conversation")
	}
	return path, nil
}

func init() {
	chatCmd.Flags().String("save", "", "directory to save the conversation to on exit")
	rootCmd.AddCommand(chatCmd)
}
