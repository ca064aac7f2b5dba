package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCmd(a *app) *cobra.Command {
	var (
		language string
		reset    bool
	)
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one message to the triage chat",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if reset {
				if err := a.api.ResetChat(ctx); err != nil {
					return err
				}
				if len(args) == 0 {
					_, err := fmt.Fprintln(out, "conversation reset")
					return err
				}
			}
			msg := strings.TrimSpace(strings.Join(args, " "))
			if msg == "" {
				return errors.New("message is required")
			}
			reply, err := a.api.Chat(ctx, msg, language)
			if err != nil {
				return err
			}
			if reply.TriageResult != nil {
				return printJSON(out, reply.TriageResult)
			}
			fmt.Fprintln(out, reply.Text)
			for i, s := range reply.Suggestions {
				fmt.Fprintf(out, "  %d) %s\n", i+1, s)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&language, "lang", "l", "en", "conversation language (BCP 47)")
	cmd.Flags().BoolVar(&reset, "reset", false, "discard the conversation first")
	return cmd
}
