// Command incresql is the engine's interactive entrypoint: a cobra CLI
// offering a REPL, single-statement exec, and batch-file execution
// against one runtime.Runtime. Mirrors the teacher's cmd/smf/main.go
// (rootCmd plus one cobra.Command per subcommand, flags bound with
// cmd.Flags().*Var).
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"incresql/internal/config"
	"incresql/internal/kv"
	"incresql/internal/runtime"
)

type rootFlags struct {
	configPath string
}

func main() {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "incresql",
		Short: "Incremental SQL database engine",
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a TOML bootstrap config file")

	rootCmd.AddCommand(replCmd(flags))
	rootCmd.AddCommand(execCmd(flags))
	rootCmd.AddCommand(batchCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(flags *rootFlags) (config.Config, error) {
	if flags.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(flags.configPath)
}

func openRuntime(flags *rootFlags) (*runtime.Runtime, config.Config, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, config.Config{}, err
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("incresql: build logger: %w", err)
	}
	rt, err := runtime.Open(kv.Config{
		Path:     cfg.Storage.DataDir,
		InMemory: cfg.Storage.InMemory,
	}, logger.Sugar())
	if err != nil {
		return nil, config.Config{}, err
	}
	return rt, cfg, nil
}

func replCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive SQL prompt",
		RunE: func(_ *cobra.Command, _ []string) error {
			rt, cfg, err := openRuntime(flags)
			if err != nil {
				return err
			}
			defer rt.Close()

			conn := rt.Connect(cfg.Session.DefaultDatabase)
			defer conn.Close()

			return runREPL(conn, os.Stdin, os.Stdout)
		},
	}
}

func runREPL(conn *runtime.Connection, in *os.File, out *os.File) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintf(out, "incresql> ")
	var buf strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteString("\n")
		if !strings.Contains(line, ";") {
			continue
		}
		sql := strings.TrimSpace(buf.String())
		buf.Reset()
		if sql == "" {
			fmt.Fprintf(out, "incresql> ")
			continue
		}
		if sql == "exit;" || sql == "quit;" {
			return nil
		}
		results, err := conn.Execute(sql)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		} else {
			for _, r := range results {
				printResult(out, r)
			}
		}
		fmt.Fprintf(out, "incresql> ")
	}
	return scanner.Err()
}

func execCmd(flags *rootFlags) *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Execute a single SQL statement and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rt, cfg, err := openRuntime(flags)
			if err != nil {
				return err
			}
			defer rt.Close()

			db := database
			if db == "" {
				db = cfg.Session.DefaultDatabase
			}
			conn := rt.Connect(db)
			defer conn.Close()

			results, err := conn.Execute(args[0])
			if err != nil {
				return err
			}
			for _, r := range results {
				printResult(os.Stdout, r)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&database, "database", "", "database the statement runs against (default: config default_database)")
	return cmd
}

func batchCmd(flags *rootFlags) *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "batch <file.sql>",
		Short: "Execute every statement in a SQL file in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("incresql: read %q: %w", args[0], err)
			}

			rt, cfg, err := openRuntime(flags)
			if err != nil {
				return err
			}
			defer rt.Close()

			db := database
			if db == "" {
				db = cfg.Session.DefaultDatabase
			}
			conn := rt.Connect(db)
			defer conn.Close()

			results, err := conn.Execute(string(content))
			if err != nil {
				return err
			}
			for _, r := range results {
				printResult(os.Stdout, r)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&database, "database", "", "database the batch runs against (default: config default_database)")
	return cmd
}

func printResult(out *os.File, r runtime.Result) {
	if len(r.Columns) == 0 {
		fmt.Fprintf(out, "(%d row(s) affected)\n", r.RowsAffected)
		return
	}
	fmt.Fprintln(out, strings.Join(r.Columns, "\t"))
	for _, row := range r.Rows {
		fmt.Fprintln(out, strings.Join(row, "\t"))
	}
}
