package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Vovarama1992/notebot/internal/assistant"
)

var conversationID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal",
	Long: `Reads one message per line from stdin and prints the reply.
Type /reset to clear the conversation, /quit to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.store.Close()

		return repl(ctx, a.router, conversationID, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVar(&conversationID, "conversation", "cli", "conversation id to use")
}

func repl(ctx context.Context, router *assistant.Router, id string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "/quit", "/exit":
			return nil
		case "/reset":
			router.Reset(id)
			fmt.Fprint(out, "(conversation reset)\n> ")
			continue
		}

		reply, err := router.Handle(ctx, id, line)
		if err != nil {
			return err
		}
		if !reply.Discarded {
			fmt.Fprintln(out, reply.Text)
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
