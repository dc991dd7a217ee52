package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/nodio/internal/app"
	"github.com/florianilch/nodio/internal/secretstore"
)

func secretCommand() *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "manage stored app secrets",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "store a secret read from the terminal or stdin",
				ArgsUsage: "<" + strings.Join(secretstore.Names, "|") + ">",
				Action:    withConfig(secretSetAction),
			},
		},
	}
}

func secretSetAction(ctx context.Context, cmd *cli.Command, cfg *app.Config) error {
	name := cmd.Args().First()
	if cmd.NArg() != 1 || !slices.Contains(secretstore.Names, name) {
		return fmt.Errorf("expected one of: %s", strings.Join(secretstore.Names, ", "))
	}

	store, err := cfg.Secrets.NewSecretStore(cfg.Credentials.AppID)
	if err != nil {
		return fmt.Errorf("failed to create secret store: %w", err)
	}

	value, err := readSecret(os.Stdin, cmd.Root().ErrWriter, name)
	if err != nil {
		return err
	}

	if err := store.Write(ctx, name, value); err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}

	slog.InfoContext(ctx, "secret stored", "secret", name, "storage", cfg.Secrets.Storage)
	return nil
}

// readSecret prompts without echo when in is a terminal, otherwise reads the
// first line of in.
func readSecret(in *os.File, prompt io.Writer, name string) (string, error) {
	var value string
	if fd := int(in.Fd()); term.IsTerminal(fd) {
		_, _ = fmt.Fprintf(prompt, "%s: ", name)
		raw, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}
		value = string(raw)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}
		value = line
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s cannot be empty", name)
	}
	return value, nil
}
