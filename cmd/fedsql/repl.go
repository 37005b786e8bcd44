package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/fedsql/fedsql/internal/engine"
)

const historyFile = ".fedsql_history"

var metaCommands = []string{"\\sources", "\\stats", "\\reset", "\\explain", "\\cache", "\\help", "\\q"}

// runREPL drives the interactive shell. Statements end with a
// semicolon and may span lines; backslash commands act immediately.
func runREPL(ctx context.Context, eng *engine.Engine) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) (out []string) {
		if !strings.HasPrefix(prefix, "\\") {
			return nil
		}
		for _, cmd := range metaCommands {
			if strings.HasPrefix(cmd, prefix) {
				out = append(out, cmd)
			}
		}
		return out
	})

	histPath := historyPath()
	if f, err := os.Open(histPath); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Printf("fedsql v%s. Type \\help for help, \\q to quit.\n", version)

	var buf strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		prompt := "fedsql> "
		if buf.Len() > 0 {
			prompt = "   ...> "
		}

		input, err := line.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			buf.Reset()
			continue
		}
		if err != nil {
			// io.EOF on ^D
			fmt.Println()
			return nil
		}

		trimmed := strings.TrimSpace(input)
		if buf.Len() == 0 && strings.HasPrefix(trimmed, "\\") {
			line.AppendHistory(trimmed)
			if quit := runMeta(ctx, eng, trimmed); quit {
				return nil
			}
			continue
		}
		if trimmed == "" && buf.Len() == 0 {
			continue
		}

		buf.WriteString(input)
		buf.WriteString("\n")
		if !strings.HasSuffix(trimmed, ";") {
			continue
		}

		stmt := strings.TrimSuffix(strings.TrimSpace(buf.String()), ";")
		buf.Reset()
		line.AppendHistory(strings.ReplaceAll(stmt, "\n", " ") + ";")

		result, err := eng.Execute(ctx, stmt, engine.Options{UseCache: true})
		if err != nil {
			fmt.Println(renderError(err))
			continue
		}
		fmt.Print(renderResult(result))
	}
}

// runMeta handles one backslash command and reports whether to quit.
func runMeta(ctx context.Context, eng *engine.Engine, cmd string) bool {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "\\q", "\\quit", "\\exit":
		return true
	case "\\help", "\\?":
		printHelp()
	case "\\sources":
		for _, src := range eng.Sources() {
			fmt.Println(src)
		}
	case "\\stats":
		fmt.Print(renderStats(eng.Statistics()))
	case "\\reset":
		eng.ResetStatistics()
		fmt.Println("Statistics reset.")
	case "\\cache":
		if arg != "clear" {
			fmt.Println("Usage: \\cache clear")
			break
		}
		eng.ClearCache()
		fmt.Println("Cache cleared.")
	case "\\explain":
		if arg == "" {
			fmt.Println("Usage: \\explain SELECT ...")
			break
		}
		plan, err := eng.Explain(ctx, strings.TrimSuffix(arg, ";"))
		if err != nil {
			fmt.Println(renderError(err))
			break
		}
		fmt.Print(renderPlan(plan))
	default:
		fmt.Printf("Unknown command: %s. Type \\help for help.\n", name)
	}
	return false
}

func printHelp() {
	fmt.Print(`Commands:
  \sources          List registered data sources
  \stats            Show engine statistics
  \reset            Reset engine statistics
  \cache clear      Clear the result cache
  \explain QUERY    Show the execution plan without running the query
  \help             Show this help
  \q                Quit

Queries end with a semicolon and may span multiple lines.
`)
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFile
	}
	return filepath.Join(home, historyFile)
}
