// Command incresql-cli is the lighter single-shot scripting entrypoint:
// no subcommands, just "read SQL, run it, print results, exit" --
// the same reduced shape as the teacher's cli/main.go next to its fuller
// cmd/smf/main.go.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"incresql/internal/config"
	"incresql/internal/kv"
	"incresql/internal/runtime"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var sql string
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("incresql-cli: read %q: %w", args[0], err)
		}
		sql = string(data)
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("incresql-cli: read stdin: %w", err)
		}
		sql = string(data)
	}

	cfg := config.Default()
	rt, err := runtime.Open(kv.Config{InMemory: cfg.Storage.InMemory, Path: cfg.Storage.DataDir}, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	conn := rt.Connect(cfg.Session.DefaultDatabase)
	defer conn.Close()

	results, err := conn.Execute(sql)
	if err != nil {
		return err
	}
	for _, r := range results {
		if len(r.Columns) == 0 {
			fmt.Printf("(%d row(s) affected)\n", r.RowsAffected)
			continue
		}
		fmt.Println(strings.Join(r.Columns, "\t"))
		for _, row := range r.Rows {
			fmt.Println(strings.Join(row, "\t"))
		}
	}
	return nil
}
