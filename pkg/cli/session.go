package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/drivelens/pkg/adapter"
	"github.com/m-mizutani/drivelens/pkg/usecase/canvas"
	"github.com/m-mizutani/drivelens/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func whoamiCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, lensFlags(&cfg)...)

	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the Lens account of the saved session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cleanup, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}
			defer cleanup()

			resolver, err := cfg.newResolver()
			if err != nil {
				return err
			}

			identity, err := resolver.Resolve(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to resolve identity")
			}
			if identity == nil {
				fmt.Fprintf(c.Root().Writer, "Not logged in\n")
				return nil
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", canvas.IdentityLine(identity))
			return nil
		},
	}
}

func loginCommand() *cli.Command {
	var (
		cfg     config
		app     string
		account string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "app",
			Usage:       "Lens app address to log in to",
			Sources:     cli.EnvVars("DRIVELENS_LENS_APP"),
			Destination: &app,
		},
		&cli.StringFlag{
			Name:        "account",
			Usage:       "Lens account address owned by the wallet. Logs in as builder if empty",
			Sources:     cli.EnvVars("DRIVELENS_LENS_ACCOUNT"),
			Destination: &account,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, lensFlags(&cfg)...)
	flags = append(flags, walletFlags(&cfg)...)

	return &cli.Command{
		Name:  "login",
		Usage: "Log in to Lens with the wallet and save the session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cleanup, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}
			defer cleanup()

			signer, err := cfg.newSigner()
			if err != nil {
				return err
			}
			store, err := cfg.newSessionStore()
			if err != nil {
				return err
			}

			auth := adapter.NewLensAuthenticator(cfg.lensConfig())
			creds, err := auth.Login(ctx, adapter.LoginInput{
				App:     app,
				Account: account,
				Signer:  signer,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to log in", goerr.V("wallet", signer.Address()))
			}
			if err := store.Save(creds); err != nil {
				return err
			}
			logging.From(ctx).Info("lens session saved", "wallet", signer.Address(), "account", account)

			resolver, err := cfg.newResolver()
			if err != nil {
				return err
			}
			identity, err := resolver.Resolve(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to resolve identity")
			}
			if identity == nil {
				fmt.Fprintf(c.Root().Writer, "Logged in as %s\n", signer.Address())
				return nil
			}
			fmt.Fprintf(c.Root().Writer, "Logged in: %s\n", canvas.IdentityLine(identity))
			return nil
		},
	}
}

func logoutCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, lensFlags(&cfg)...)

	return &cli.Command{
		Name:  "logout",
		Usage: "Remove the saved Lens session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cleanup, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}
			defer cleanup()

			store, err := cfg.newSessionStore()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}

			logging.From(ctx).Debug("lens session removed")
			fmt.Fprintf(c.Root().Writer, "Logged out\n")
			return nil
		},
	}
}
