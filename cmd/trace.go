package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/structs"
	"github.com/spf13/cobra"

	"github.com/sarchlab/flowsim/datarecording"
	"github.com/sarchlab/flowsim/sim/simerr"
)

var traceTables = map[string]string{
	"events": datarecording.EventTableName,
	"runs":   datarecording.RunTableName,
	"pacer":  datarecording.PacerTableName,
	"exec":   "exec_info",
}

func newTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace FILE",
		Short: "Print rows of a recorded trace.",
		Long: "`trace out.sqlite3 --table events --event depart --limit 20` " +
			"pages through a trace written by `run --output`.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, page, err := tracePage(cmd)
			if err != nil {
				return err
			}

			reader, err := datarecording.OpenTrace(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			rows, total, err := reader.Read(
				contextOrBackground(cmd.Context()), table, page)
			if err != nil {
				return err
			}

			printRows(cmd.OutOrStdout(), rows, total, page.Offset)

			return nil
		},
	}

	f := cmd.Flags()
	f.String("table", "events", "table to print: events, runs, pacer, or exec")
	f.String("event", "", "only print instances of this event")
	f.String("where", "", "extra SQL condition with ? placeholders")
	f.StringArray("arg", nil, "value for a placeholder in --where")
	f.String("order-by", "", "sort columns")
	f.Int("limit", 50, "maximum rows to print, 0 for all")
	f.Int("offset", 0, "rows to skip")

	return cmd
}

func init() {
	rootCmd.AddCommand(newTraceCmd())
}

func tracePage(cmd *cobra.Command) (string, datarecording.Page, error) {
	f := cmd.Flags()
	page := datarecording.Page{}

	name, _ := f.GetString("table")

	table, ok := traceTables[name]
	if !ok {
		return "", page, simerr.Argument("unknown trace table %q", name)
	}

	var conds []string

	if event, _ := f.GetString("event"); event != "" {
		if table != datarecording.EventTableName {
			return "", page, simerr.Argument("--event only applies to events")
		}

		conds = append(conds, "Event = ?")
		page.Args = append(page.Args, event)
	}

	if where, _ := f.GetString("where"); where != "" {
		conds = append(conds, "("+where+")")

		args, _ := f.GetStringArray("arg")
		for _, a := range args {
			page.Args = append(page.Args, traceArg(a))
		}
	}

	page.Filter = strings.Join(conds, " AND ")
	page.OrderBy, _ = f.GetString("order-by")
	page.Limit, _ = f.GetInt("limit")
	page.Offset, _ = f.GetInt("offset")

	return table, page, nil
}

// traceArg binds numbers as numbers. Trace columns have no type affinity, so a
// text argument never equals a numeric value.
func traceArg(s string) any {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}

	return s
}

func printRows(w io.Writer, rows []any, total, offset int) {
	for _, row := range rows {
		fields := structs.New(row).Fields()

		pairs := make([]string, 0, len(fields))
		for _, field := range fields {
			pairs = append(pairs, fmt.Sprintf("%s=%v", field.Name(), field.Value()))
		}

		fmt.Fprintln(w, strings.Join(pairs, " "))
	}

	first := 0
	if len(rows) > 0 {
		first = offset + 1
	}

	fmt.Fprintf(w, "rows %d-%d of %d\n", first, offset+len(rows), total)
}
