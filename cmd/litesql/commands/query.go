package commands

import (
	"github.com/spf13/cobra"
)

func newQueryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql> [args...]",
		Short: "Run one statement and print its rows",
		Long: `Run one statement with positional ? arguments and print the result.

Arguments that look like numbers are bound as numbers, true/false as booleans and
null as NULL; everything else is bound as text.`,
		Example: `  litesql query 'SELECT * FROM "users" WHERE "id" = ?' 42`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer c.Close(ctx)

			res, err := c.ExecSQL(ctx, args[0], parseArgs(args[1:])...)
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
}
