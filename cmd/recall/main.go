// Copyright 2026 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	recall "github.com/poiesic/recall"
	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/ai/openai"
	"github.com/poiesic/recall/core"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "recall",
		Usage: "Contextual memory and retrieval engine for conversational data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "OpenAI-compatible API host URL",
				Value: "https://api.openai.com/v1",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
				Value: "text-embedding-3-small",
			},
			&cli.StringFlag{
				Name:  "completion-model",
				Usage: "Completion model name",
				Value: "gpt-4o-mini",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Provider API key",
				EnvVars: []string{"RECALL_API_KEY", "OPENAI_API_KEY"},
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "User id for this session",
				Value: "local",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "chat",
				Usage:  "Interactive chat with context retrieval",
				Action: chatCommand,
			},
			{
				Name:      "ingest",
				Usage:     "Ingest a text document into the vector index",
				ArgsUsage: "FILE",
				Action:    ingestCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level: %s", c.String("log-level"))
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

func aiConfig(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithCompletionModel(c.String("completion-model")),
	)
}

func chatCommand(c *cli.Context) error {
	ctx := context.Background()
	cfg := aiConfig(c)
	credential := c.String("api-key")
	userID := c.String("user")

	engine, err := recall.NewEngine(recall.WithAIConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer engine.Close()

	var completer ai.Completer
	if credential != "" {
		completer, err = openai.NewCompleter(cfg, credential)
		if err != nil {
			return fmt.Errorf("failed to create completer: %w", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "no api key supplied; messages will queue until one is provided")
	}

	fmt.Fprintln(os.Stderr, "commands: /new (reset conversation), /info, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/new":
			id, err := engine.StartNewConversation(userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "started conversation %s\n", id)
			continue
		case line == "/info":
			info := engine.SessionInfo(userID)
			if info == nil {
				fmt.Fprintln(os.Stderr, "no active session")
			} else {
				fmt.Fprintf(os.Stderr, "session %s, %d messages, last activity %s\n",
					info.SessionID, info.MessageCount, info.LastActivity.Format("15:04:05"))
			}
			continue
		}

		err := engine.AddChatMessage(ctx, core.ChatMessage{
			Role:     core.RoleUser,
			Contents: line,
			UserID:   userID,
		}, credential)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		bundle, err := engine.SearchContext(ctx, line, userID, credential, 5)
		if err != nil {
			fmt.Fprintf(os.Stderr, "context error: %v\n", err)
			continue
		}

		if completer == nil {
			fmt.Println(strings.Join(bundle.Segments, "\n\n"))
			continue
		}

		prompt := buildPrompt(bundle, line)
		reply, err := completer.Complete(ctx, prompt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "completion error: %v\n", err)
			continue
		}
		fmt.Println(reply)

		if err := engine.AddChatMessage(ctx, core.ChatMessage{
			Role:     core.RoleAssistant,
			Contents: reply,
			UserID:   userID,
		}, credential); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	path := c.Args().First()
	credential := c.String("api-key")
	userID := c.String("user")

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	engine, err := recall.NewEngine(recall.WithAIConfig(aiConfig(c)))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer engine.Close()

	ctx := context.Background()
	doc, err := engine.ProcessDocument(ctx, data, filepath.Base(path), mimeForPath(path), userID, credential)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "ingested %s as document %s (%d chunks)\n",
		path, doc.DocumentID, doc.TotalChunks)
	return nil
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "text/plain"
	}
}

// buildPrompt concatenates the context bundle and the user's message into a
// single completion prompt.
func buildPrompt(bundle *core.ContextBundle, userMessage string) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant. Use the context below when it is relevant.\n\n")
	for _, segment := range bundle.Segments {
		b.WriteString(segment)
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(userMessage)
	b.WriteString("\nAssistant:")
	return b.String()
}
