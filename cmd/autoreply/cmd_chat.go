package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/pawmate/autoreply/src/app"
	"github.com/pawmate/autoreply/src/storage"
)

var (
	youStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	replyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	faintStyle = lipgloss.NewStyle().Faint(true)
)

// ChatCmd opens an interactive chat against the reply pipeline
type ChatCmd struct {
	Flavor string `help:"Conversation flavor" default:"agent" enum:"peer,system,agent"`
	Agent  string `help:"Agent persona for agent conversations" default:"adoption-consultant"`
	Fast   bool   `help:"Skip the human-like reply delays"`
}

// Run executes the chat command
func (c *ChatCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if c.Fast {
		cfg.Reply.PeerDelay.MinMs, cfg.Reply.PeerDelay.MaxMs = 0, 0
		cfg.Reply.AgentDelay.MinMs, cfg.Reply.AgentDelay.MaxMs = 0, 0
	}

	logger := createCLILogger(cli.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	conv := &storage.Conversation{
		Flavor:    c.Flavor,
		AgentType: agentTypeFor(c),
		Title:     "cli chat",
	}
	if err := application.Store.CreateConversation(ctx, conv); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	events := application.Server.Hub().Subscribe(conv.ID)
	defer application.Server.Hub().Unsubscribe(conv.ID, events)

	go func() {
		for msg := range events {
			if msg.Role == "user" {
				continue
			}
			fmt.Printf("\r%s %s\n%s", replyStyle.Render("对方:"), msg.Content, youStyle.Render("你: "))
		}
	}()

	fmt.Println(faintStyle.Render(fmt.Sprintf("conversation %s (%s), /quit to exit", conv.ID, conv.Flavor)))
	fmt.Print(youStyle.Render("你: "))

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" || line == "/exit" {
			break
		}
		if line == "" {
			fmt.Print(youStyle.Render("你: "))
			continue
		}

		if _, err := application.Orchestrator.HandleUserMessage(ctx, conv, line); err != nil {
			fmt.Println(faintStyle.Render(fmt.Sprintf("发送失败: %v", err)))
		}
		fmt.Print(youStyle.Render("你: "))
	}

	fmt.Println()
	return scanner.Err()
}

func agentTypeFor(c *ChatCmd) string {
	if c.Flavor != storage.FlavorAgent {
		return ""
	}
	return c.Agent
}
