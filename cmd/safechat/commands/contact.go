package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"safechat/internal/services/contact"
)

// invite <name>: create a contact and print the invitation to hand out.
func inviteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invite <name>",
		Short: "Create a contact and print an invitation for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := wire.Contacts.Invite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			text, err := contact.EncodeInvitation(inv)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

// accept <name> <invitation>: accept an invitation from <name>.
func acceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <name> <invitation>",
		Short: "Accept an invitation; you can send right away",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := contact.DecodeInvitation(args[1])
			if err != nil {
				return err
			}
			id, pub, err := wire.Contacts.Accept(cmd.Context(), args[0], inv)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "contact: %s\n", id)
			fmt.Fprintf(out, "key:     %s\n", contact.EncodeKey(pub))
			return nil
		},
	}
}

// confirm <contact> <key>: complete the handshake out of band.
func confirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <contact> <key>",
		Short: "Complete a handshake with the key printed by accept",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := wire.Contacts.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			pub, err := contact.DecodeKey(args[1])
			if err != nil {
				return err
			}
			if err := wire.Contacts.Confirm(cmd.Context(), id, pub); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "confirmed")
			return nil
		},
	}
}

func contactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := wire.Contacts.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tID\tPHASE\tFINGERPRINT")
			for _, c := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.ID, c.Phase, c.Fingerprint)
			}
			return tw.Flush()
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <contact>",
		Short: "Delete a contact with its messages and keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := wire.Contacts.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := wire.Contacts.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
}
