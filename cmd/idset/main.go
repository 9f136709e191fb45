// Command idset is a small demonstration shell for the idset package:
// it loads ids from a JSON array file into a Set, attaches the Set to a
// SQLite database, runs the given SQL statements against it (the literal
// {set} is replaced with the Set's table name), and prints the resulting
// contents as JSON.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/walres/wrsql/engine"
	"github.com/walres/wrsql/idset"
)

type options struct {
	dbPath  string
	idsPath string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "idset [flags] SQL...",
		Short: "run SQL against an in-process id set",
		Long: `Loads a JSON array of integer ids into an in-process sorted set,
exposes it to the database as a live table, and runs the given SQL
statements against it. Use {set} in statements where the table name
belongs. SELECT output is printed row by row; after all statements run,
the final set contents are printed as a JSON array.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.dbPath, "db", ":memory:", "SQLite database path")
	cmd.Flags().StringVar(&opts.idsPath, "ids", "", "JSON file holding the initial id array")
	return cmd
}

func run(ctx context.Context, opts *options, statements []string) error {
	db, err := engine.OpenSingle(opts.dbPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", opts.dbPath, err)
	}
	defer db.Close()

	set := idset.New()
	if opts.idsPath != "" {
		data, err := os.ReadFile(opts.idsPath)
		if err != nil {
			return err
		}
		if err := set.UnmarshalJSON(data); err != nil {
			return err
		}
	}
	if err := set.Attach(db); err != nil {
		return err
	}
	defer set.Close()

	for _, stmt := range statements {
		stmt = strings.ReplaceAll(stmt, "{set}", set.SQLName())
		if isQuery(stmt) {
			if err := printQuery(ctx, db, stmt); err != nil {
				return err
			}
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt, err)
		}
	}

	out, err := set.MarshalJSON()
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func isQuery(stmt string) bool {
	head := strings.ToUpper(strings.TrimSpace(stmt))
	return strings.HasPrefix(head, "SELECT") || strings.HasPrefix(head, "WITH")
}

func printQuery(ctx context.Context, db *sql.DB, stmt string) error {
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("querying %q: %w", stmt, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			parts[i] = fmt.Sprint(v)
		}
		fmt.Println(strings.Join(parts, "\t"))
	}
	return rows.Err()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "idset:", err)
		os.Exit(1)
	}
}
