package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/florianilch/nodio/internal/app"
)

// maxConcurrentFetches bounds parallel requests of "item get".
const maxConcurrentFetches = 4

func itemCommand() *cli.Command {
	return &cli.Command{
		Name:  "item",
		Usage: "read and write app items",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "fetch one or more items",
				ArgsUsage: "<item_id>...",
				Action:    withApp(itemGetAction),
			},
			{
				Name:  "create",
				Usage: "create an item in the app",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "fields",
						Usage:    "field values as JSON object",
						Required: true,
					},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, application *app.App) error {
					fields, err := jsonFlag(cmd, "fields")
					if err != nil {
						return err
					}
					data, err := application.Client().Items.Create(ctx, fields)
					if err != nil {
						return err
					}
					return printJSON(cmd.Root().Writer, data)
				}),
			},
			{
				Name:  "filter",
				Usage: "query items of the app",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "filters",
						Usage: "filter criteria as JSON object",
						Value: "{}",
					},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, application *app.App) error {
					filters, err := jsonFlag(cmd, "filters")
					if err != nil {
						return err
					}
					data, err := application.Client().Items.Filter(ctx, filters)
					if err != nil {
						return err
					}
					return printJSON(cmd.Root().Writer, data)
				}),
			},
		},
	}
}

// itemGetAction fetches all requested items concurrently and prints them in
// argument order. The first failure cancels the remaining fetches.
func itemGetAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	if cmd.NArg() == 0 {
		return fmt.Errorf("at least one item id required")
	}

	ids := make([]int64, cmd.NArg())
	for i, arg := range cmd.Args().Slice() {
		id, err := parseItemID(arg)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	results := make([]json.RawMessage, len(ids))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, id := range ids {
		g.Go(func() error {
			data, err := application.Client().Items.Get(gCtx, id)
			if err != nil {
				return fmt.Errorf("item %d: %w", id, err)
			}
			results[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, data := range results {
		if err := printJSON(cmd.Root().Writer, data); err != nil {
			return err
		}
	}
	return nil
}

func commentCommand() *cli.Command {
	return &cli.Command{
		Name:  "comment",
		Usage: "read and write item comments",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "list the comments of an item",
				ArgsUsage: "<item_id>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, application *app.App) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("expected exactly one item id")
					}
					id, err := parseItemID(cmd.Args().First())
					if err != nil {
						return err
					}
					data, err := application.Client().Items.Comments(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(cmd.Root().Writer, data)
				}),
			},
			{
				Name:      "add",
				Usage:     "comment on an item",
				ArgsUsage: "<item_id> <text>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, application *app.App) error {
					if cmd.NArg() != 2 {
						return fmt.Errorf("expected item id and comment text")
					}
					id, err := parseItemID(cmd.Args().Get(0))
					if err != nil {
						return err
					}
					text := cmd.Args().Get(1)
					if text == "" {
						return fmt.Errorf("comment text cannot be empty")
					}
					data, err := application.Client().Items.AddComment(ctx, id, text)
					if err != nil {
						return err
					}
					return printJSON(cmd.Root().Writer, data)
				}),
			},
		},
	}
}

func taskCommand() *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "manage tasks",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create a task",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "task",
						Usage:    "task attributes as JSON object",
						Required: true,
					},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, application *app.App) error {
					task, err := jsonFlag(cmd, "task")
					if err != nil {
						return err
					}
					data, err := application.Client().Tasks.Create(ctx, task)
					if err != nil {
						return err
					}
					return printJSON(cmd.Root().Writer, data)
				}),
			},
		},
	}
}

func parseItemID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", s)
	}
	return id, nil
}

// jsonFlag returns the named flag as a JSON object.
func jsonFlag(cmd *cli.Command, name string) (json.RawMessage, error) {
	raw := json.RawMessage(cmd.String(name))
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("--%s must be a JSON object: %w", name, err)
	}
	return raw, nil
}

// printJSON writes data indented, followed by a newline. Empty results print nothing.
func printJSON(w io.Writer, data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
