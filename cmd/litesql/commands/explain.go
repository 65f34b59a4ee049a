package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/litesql/internal/ui"
	"github.com/satishbabariya/litesql/pkg/client"
)

func newExplainCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <sql> [args...]",
		Short: "Show the query plan of a statement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer c.Close(ctx)

			res, err := c.ExecSQL(ctx, "EXPLAIN QUERY PLAN "+args[0], parseArgs(args[1:])...)
			if err != nil {
				return err
			}
			records, err := client.DecodeResult(res, nil)
			if err != nil {
				return err
			}
			return ui.PrintMarkdown(planMarkdown(args[0], records))
		},
	}
}

type planStep struct {
	id, parent int64
	detail     string
}

// planMarkdown renders EXPLAIN QUERY PLAN rows (id, parent, notused, detail) as a nested
// list under the statement.
func planMarkdown(sql string, records []client.Record) string {
	var steps []planStep
	for _, rec := range records {
		id, _ := rec.Get("id")
		parent, _ := rec.Get("parent")
		detail, _ := rec.Get("detail")
		steps = append(steps, planStep{id: id.Int64(), parent: parent.Int64(), detail: detail.Str()})
	}

	var b strings.Builder
	b.WriteString("# Query plan\n\n```sql\n")
	b.WriteString(strings.TrimSpace(sql))
	b.WriteString("\n```\n\n")
	if len(steps) == 0 {
		b.WriteString("_No plan steps._\n")
		return b.String()
	}

	var walk func(parent int64, depth int)
	walk = func(parent int64, depth int) {
		for _, s := range steps {
			if s.parent != parent {
				continue
			}
			fmt.Fprintf(&b, "%s- %s\n", strings.Repeat("  ", depth), s.detail)
			walk(s.id, depth+1)
		}
	}
	walk(0, 0)
	return b.String()
}
