package commands

import (
	"context"
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"safechat/internal/app"
)

var (
	home       string
	passphrase string
	logLevel   string
	cipher     string
	wire       *app.Wire
)

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:           "safechat",
		Short:         "End-to-end encrypted chat with out-of-band message delivery",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				home = app.DefaultHome()
			}
			cfg, err := app.LoadConfig(home)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("cipher") {
				cfg.Cipher = cipher
			}
			if err := cfg.ApplyLogging(); err != nil {
				return err
			}
			if passphrase == "" {
				passphrase = os.Getenv("SAFECHAT_PASSPHRASE")
			}
			if passphrase == "" {
				return errors.New("passphrase required (-p or SAFECHAT_PASSPHRASE)")
			}
			wire, err = app.NewWire(cmd.Context(), cfg, passphrase)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return closeWire()
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "data dir (default $SAFECHAT_HOME or ~/.safechat)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting local keys")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (overrides config)")
	root.PersistentFlags().StringVar(&cipher, "cipher", "auto", "auto, aes-gcm or chacha20-poly1305 (overrides config)")

	root.AddCommand(
		inviteCmd(), acceptCmd(), confirmCmd(),
		sendCmd(), recvCmd(), flushCmd(),
		historyCmd(), contactsCmd(), deleteCmd(),
	)

	err := root.ExecuteContext(ctx)
	// PersistentPostRunE does not run when the command fails.
	if cerr := closeWire(); err == nil {
		err = cerr
	}
	if err != nil {
		logrus.WithError(err).Error("command failed")
	}
	return err
}

func closeWire() error {
	if wire == nil {
		return nil
	}
	err := wire.Close()
	wire = nil
	return err
}
