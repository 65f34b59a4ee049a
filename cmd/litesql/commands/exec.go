package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/litesql/internal/ui"
	"github.com/satishbabariya/litesql/internal/watch"
	"github.com/satishbabariya/litesql/pkg/client"
)

// newExecCommand creates the exec command.
func newExecCommand(a *app) *cobra.Command {
	var (
		sqlText string
		inTx    bool
		watchIt bool
	)

	cmd := &cobra.Command{
		Use:   "exec [script.sql]",
		Short: "Execute a SQL script",
		Long:  "Execute every statement of a SQL script in order, stopping at the first error",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (sqlText == "") {
				return fmt.Errorf("give either a script file or --sql")
			}
			if watchIt && len(args) == 0 {
				return fmt.Errorf("--watch needs a script file")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer c.Close(context.WithoutCancel(ctx))

			run := func(ctx context.Context) error {
				script := sqlText
				if len(args) == 1 {
					data, err := os.ReadFile(args[0])
					if err != nil {
						return err
					}
					script = string(data)
				}
				return runScript(ctx, c, script, inTx)
			}

			if !watchIt {
				return run(ctx)
			}

			w, err := watch.NewWatcher(args[0], 0, func(ctx context.Context) error {
				ui.PrintSection("Running " + args[0])
				if err := run(ctx); err != nil {
					ui.PrintError("%v", err)
				}
				return nil
			})
			if err != nil {
				return err
			}
			ui.PrintInfo("Watching %s for changes, press Ctrl+C to stop", args[0])
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&sqlText, "sql", "e", "", "SQL text to execute instead of a file")
	cmd.Flags().BoolVar(&inTx, "tx", false, "Run the whole script in one transaction")
	cmd.Flags().BoolVarP(&watchIt, "watch", "w", false, "Re-run the script whenever the file changes")

	return cmd
}

func runScript(ctx context.Context, c *client.Client, script string, inTx bool) error {
	conn, err := c.Checkout(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var results []*client.Result
	if inTx {
		err = conn.Transaction(ctx, func(tx *client.Conn) error {
			var err error
			results, err = tx.ExecScript(ctx, script)
			return err
		})
	} else {
		results, err = conn.ExecScript(ctx, script)
	}

	for _, res := range results {
		if printErr := printResult(res); printErr != nil {
			return printErr
		}
	}
	if err != nil {
		return err
	}
	ui.PrintSuccess("%d %s executed", len(results), plural(len(results), "statement", "statements"))
	return nil
}

func printResult(res *client.Result) error {
	if len(res.Columns) == 0 {
		ui.PrintResult(res)
		return nil
	}
	records, err := client.DecodeResult(res, nil)
	if err != nil {
		return err
	}
	return ui.PrintRecords(res.Columns, records)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
