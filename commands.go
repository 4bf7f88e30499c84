package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/handler"
)

var (
	selectFilters []string
	selectColumns []string
	selectLimit   int
	insertRows    []string
	insertFile    string
)

var checkCmd = &cobra.Command{
	Use:   "check [connection...]",
	Short: "Check connections",
	Long:  `Confirm that the connections are reachable and their credentials are valid. Checks run concurrently.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHandler(func(h *handler.Handler) error {
			var ids []core.ConnectionID
			for _, name := range args {
				c, err := findConnection(h, name)
				if err != nil {
					return err
				}
				ids = append(ids, c.GetID())
			}

			statuses := h.CheckConnections(cmd.Context(), ids)

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.SetStyle(table.StyleLight)
			tw.AppendHeader(table.Row{"connection", "status", "error"})

			failed := 0
			for _, s := range statuses {
				status, errMsg := "ok", ""
				if !s.OK {
					status = "unhealthy"
					failed++
				}
				if s.Err != nil {
					status = "failed"
					errMsg = s.Err.Error()
				}
				tw.AppendRow(table.Row{s.Name, status, errMsg})
			}
			tw.Render()

			if failed > 0 {
				return fmt.Errorf("%d of %d connections failed", failed, len(statuses))
			}
			return nil
		})
	},
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables and native commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConnection(func(h *handler.Handler, c *core.Connection) error {
			structure, err := h.ConnectionGetStructure(cmd.Context(), c.GetID())
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.SetStyle(table.StyleLight)
			tw.AppendHeader(table.Row{"name", "type", "description"})
			var walk func(nodes []*core.Structure, indent string)
			walk = func(nodes []*core.Structure, indent string) {
				for _, n := range nodes {
					tw.AppendRow(table.Row{indent + n.Name, n.Type.String(), n.Description})
					walk(n.Children, indent+"  ")
				}
			}
			walk(structure, "")
			tw.Render()

			return nil
		})
	},
}

var columnsCmd = &cobra.Command{
	Use:   "columns [table]",
	Short: "Describe the columns of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConnection(func(h *handler.Handler, c *core.Connection) error {
			columns, err := h.ConnectionGetColumns(cmd.Context(), c.GetID(), args[0])
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.SetStyle(table.StyleLight)
			tw.AppendHeader(table.Row{"name", "type", "description"})
			for _, col := range columns {
				tw.AppendRow(table.Row{col.Name, col.Type, col.Description})
			}
			tw.Render()

			return nil
		})
	},
}

var selectCmd = &cobra.Command{
	Use:   "select [table]",
	Short: "Read rows of a table",
	Long: `Read rows of a table. Filters have the form "field operator value", for example:

  resttable select search -w "query = 'invoice total'" -w "number_of_results = 5"
  resttable select contexts -w "name like 'Doc%'" --columns name,type`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := &core.Query{
			Operation:  core.Operation{Type: core.OperationSelect},
			Table:      args[0],
			Projection: selectColumns,
			Limit:      selectLimit,
		}
		for _, f := range selectFilters {
			p, err := parsePredicate(f)
			if err != nil {
				return err
			}
			query.Predicates = append(query.Predicates, p)
		}

		return runQuery(cmd, query)
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert [table]",
	Short: "Insert rows into a table",
	Long:  `Insert json rows into a table. Rows are submitted one by one and every row reports its own status.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs := insertRows
		if insertFile != "" {
			data, err := os.ReadFile(insertFile)
			if err != nil {
				return fmt.Errorf("os.ReadFile: %w", err)
			}
			inputs = append(inputs, string(data))
		}

		rows, err := parseRows(inputs)
		if err != nil {
			return err
		}

		return runQuery(cmd, &core.Query{
			Operation: core.Operation{Type: core.OperationInsert},
			Table:     args[0],
			Rows:      rows,
		})
	},
}

var nativeCmd = &cobra.Command{
	Use:   "native [command] [args...]",
	Short: "Run a native administrative command",
	Long:  `Run a native command of the backend. Use "tables" to list the available commands.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := core.NewNativeQuery(strings.Join(quoteArgs(args), " "))
		if err != nil {
			return err
		}

		return runQuery(cmd, query)
	},
}

func init() {
	selectCmd.Flags().StringArrayVarP(&selectFilters, "where", "w", nil, "Filter in the form \"field operator value\" (repeatable)")
	selectCmd.Flags().StringSliceVar(&selectColumns, "columns", nil, "Columns to return")
	selectCmd.Flags().IntVarP(&selectLimit, "limit", "l", 0, "Maximum number of rows")

	insertCmd.Flags().StringArrayVarP(&insertRows, "row", "r", nil, "Json object (or array of objects) to insert (repeatable)")
	insertCmd.Flags().StringVarP(&insertFile, "file", "f", "", "File with a json array of rows")
}

var argEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// quoteArgs re-quotes shell arguments so they survive command splitting.
func quoteArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n'\"\\") {
			a = "'" + argEscaper.Replace(a) + "'"
		}
		out[i] = a
	}
	return out
}

func withHandler(fn func(h *handler.Handler) error) error {
	h, err := newHandler()
	if err != nil {
		return err
	}
	defer h.Close()

	return fn(h)
}

func withConnection(fn func(h *handler.Handler, c *core.Connection) error) error {
	return withHandler(func(h *handler.Handler) error {
		c, err := findConnection(h, connectionName)
		if err != nil {
			return err
		}
		return fn(h, c)
	})
}

// findConnection returns the named connection, or the first one if name is empty.
func findConnection(h *handler.Handler, name string) (*core.Connection, error) {
	conns := h.GetConnections(nil)
	if name == "" && len(conns) > 0 {
		return h.GetCurrentConnection()
	}
	for _, c := range conns {
		if c.GetName() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown connection %q", name)
}

// runQuery executes the query as a call and prints its result.
func runQuery(cmd *cobra.Command, query *core.Query) error {
	return withConnection(func(h *handler.Handler, c *core.Connection) error {
		call, err := h.ConnectionExecute(c.GetID(), query)
		if err != nil {
			return err
		}

		if err := waitCall(cmd.Context(), call); err != nil {
			return err
		}

		return h.CallStoreResult(call.GetID(), outputFormat, cmd.OutOrStdout(), 0, -1)
	})
}

// waitCall cancels the call when ctx is done.
func waitCall(ctx context.Context, call *core.Call) error {
	if err := call.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			call.Cancel()
		}
		return err
	}
	return nil
}
