// cmd/assistant/ask.go
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"banking-assistant/internal/models"

	"github.com/spf13/cobra"
)

type askOptions struct {
	customerID    string
	correlationID string
	asJSON        bool
	reset         bool
}

func newAskCmd(root *rootOptions) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send messages to the assistant from the terminal",
		Long:  "ask sends one message, or reads one message per line from stdin when no message is given, and prints each reply.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			a, err := wireApp(cmd.Context(), cfg, wireOptions{retries: 1})
			if err != nil {
				return err
			}
			defer a.close()

			if opts.reset {
				if err := a.sessions.Delete(cmd.Context(), opts.customerID); err != nil {
					return fmt.Errorf("reset session: %w", err)
				}
			}

			ask := func(text string) error {
				resp, err := a.orch.ProcessMessage(cmd.Context(), opts.customerID, opts.correlationID, text)
				opts.correlationID = ""
				if err != nil {
					return err
				}
				return writeReply(cmd.OutOrStdout(), resp, opts.asJSON)
			}

			if len(args) == 1 {
				return ask(args[0])
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if err := ask(line); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&opts.customerID, "customer", "", "customer id the conversation belongs to")
	cmd.Flags().StringVar(&opts.correlationID, "correlation-id", "", "correlation id for the first message")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the full response as JSON")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "delete the stored session before asking")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

func writeReply(w io.Writer, resp *models.AssistantResponse, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	if _, err := fmt.Fprintln(w, resp.Answer); err != nil {
		return err
	}
	for _, t := range resp.Tables {
		if _, err := fmt.Fprintf(w, "\n%s\n", t.Title); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, strings.Join(t.Columns, " | ")); err != nil {
			return err
		}
		for _, row := range t.Rows {
			if _, err := fmt.Fprintln(w, strings.Join(row, " | ")); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "[%s] %s\n", resp.Exit, resp.CorrelationID)
	return err
}
