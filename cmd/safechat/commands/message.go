package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"safechat/internal/domain"
	"safechat/internal/services/message"
)

// send <contact> <message>: print the envelope to deliver, or queue it.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <contact> <message>",
		Short: "Encrypt a message and print its envelope",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := wire.Contacts.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			env, err := wire.Messages.Send(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			if env == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "queued: run flush once the contact has written to you")
				return nil
			}
			return printEnvelope(cmd.OutOrStdout(), *env)
		},
	}
}

// flush <contact>: print envelopes for queued messages.
func flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush <contact>",
		Short: "Send queued messages once the conversation is ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := wire.Contacts.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			envs, err := wire.Messages.Flush(cmd.Context(), id)
			for _, env := range envs {
				if perr := printEnvelope(cmd.OutOrStdout(), env); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}

func printEnvelope(w io.Writer, env domain.Envelope) error {
	text, err := message.EncodeEnvelopeText(env)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}

// recv [envelope...]: decrypt envelopes from the arguments, or one per line
// on stdin. Already received envelopes are skipped.
func recvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recv [envelope...]",
		Short: "Decrypt and store received envelopes",
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := args
			if len(texts) == 0 {
				sc := bufio.NewScanner(cmd.InOrStdin())
				sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
				for sc.Scan() {
					if line := strings.TrimSpace(sc.Text()); line != "" {
						texts = append(texts, line)
					}
				}
				if err := sc.Err(); err != nil {
					return err
				}
			}
			for _, text := range texts {
				env, err := message.DecodeEnvelopeText(text)
				if err != nil {
					return err
				}
				m, err := wire.Messages.Receive(cmd.Context(), env)
				if errors.Is(err, message.ErrAlreadyReceived) || errors.Is(err, message.ErrDuplicatedMessage) {
					logrus.WithField("contact", env.RecipientID).Info("envelope already received")
					continue
				}
				if err != nil {
					return err
				}
				printMessage(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

// history <contact>: print the conversation in order.
func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <contact>",
		Short: "Print the conversation with a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := wire.Contacts.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			msgs, err := wire.Messages.History(cmd.Context(), id)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printMessage(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

func printMessage(w io.Writer, m domain.PlainMessage) {
	if m.Corrupted {
		fmt.Fprintf(w, "[%-8s] <unreadable>\n", m.Direction)
		return
	}
	fmt.Fprintf(w, "[%-8s %s] %s\n", m.Direction, m.SentAt.Local().Format(time.DateTime), m.Content)
}
