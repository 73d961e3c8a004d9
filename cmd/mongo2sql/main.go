// Command mongo2sql translates a MongoDB aggregation pipeline (read from a
// file or stdin) into Oracle SQL/JSON text, printed to stdout or a file.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rhoulihan/mongoracle"
	"github.com/rhoulihan/mongoracle/oraclesql"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("mongo2sql", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	collection := fs.String("collection", "", "collection name (required unless the input document supplies one)")
	fs.StringVar(collection, "c", "", "shorthand for --collection")
	inline := fs.Bool("inline", false, "inline bind variables as SQL literals instead of :n placeholders")
	fs.BoolVar(inline, "i", false, "shorthand for --inline")
	pretty := fs.Bool("pretty", false, "reindent the generated SQL")
	fs.BoolVar(pretty, "p", false, "shorthand for --pretty")
	noHints := fs.Bool("no-hints", false, "omit the /*+ NO_XMLQUERY_REWRITE */ hint")
	strict := fs.Bool("strict", false, "treat unsupported operators as fatal errors")
	dataColumn := fs.String("data-column", "data", "JSON data column name")
	output := fs.String("output", "", "write result to this file instead of stdout")
	fs.StringVar(output, "o", "", "shorthand for --output")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.BoolVar(showVersion, "v", false, "shorthand for --version")
	showHelp := fs.Bool("help", false, "print usage and exit")
	fs.BoolVar(showHelp, "h", false, "shorthand for --help")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, usage())
		return 1
	}

	if *showVersion {
		fmt.Println("mongo2sql version " + version)
		return 0
	}
	if *showHelp {
		fmt.Println(usage())
		return 0
	}

	raw, err := readInput(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "mongo2sql: %v\n", err)
		return 2
	}
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		fmt.Fprintln(os.Stderr, "mongo2sql: no input provided")
		return 1
	}

	options := mongoracle.DefaultOptions()
	options.InlineBindVariables = *inline
	options.PrettyPrint = *pretty
	options.IncludeHints = !*noHints
	options.StrictMode = *strict
	options.DataColumnName = *dataColumn
	options.TargetDialect = oraclesql.Oracle26ai

	results, err := mongoracle.Translate(*collection, string(raw), options)
	if err != nil {
		// Users often paste improperly escaped JSON on the command line
		// (e.g. `{\"age\": {\"$gte\": 18}}`); retry once with a naive unescape.
		if strings.Contains(string(raw), `\"`) {
			unescaped := strings.ReplaceAll(string(raw), `\"`, `"`)
			unescaped = strings.ReplaceAll(unescaped, `\\`, `\`)
			if retryResults, retryErr := mongoracle.Translate(*collection, unescaped, options); retryErr == nil {
				results, err = retryResults, nil
			}
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mongo2sql: translation error: %v\n", err)
		return 3
	}

	text := formatResults(results, options.InlineBindVariables)
	if *output != "" {
		if err := os.WriteFile(*output, []byte(text), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "mongo2sql: %v\n", err)
			return 2
		}
		return 0
	}
	fmt.Print(text)
	return 0
}

func readInput(positional []string) ([]byte, error) {
	if len(positional) > 0 {
		return os.ReadFile(positional[0])
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		return io.ReadAll(os.Stdin)
	}
	return nil, fmt.Errorf("no input file given and stdin is not piped")
}

func formatResults(results []mongoracle.TranslationResult, inline bool) string {
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(res.SQL)
		b.WriteString(";\n")
		if !inline {
			for n, bind := range res.BindVariables {
				fmt.Fprintf(&b, "-- :%d = %v\n", n+1, bind)
			}
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "-- warning [%s]: %s\n", w.Code, w.Message)
		}
	}
	return b.String()
}

func usage() string {
	return `Usage: mongo2sql [options] <file>

Translates a MongoDB aggregation pipeline into Oracle SQL/JSON text.
Reads <file> if given, otherwise stdin.

Options:
  -c, --collection <name>   collection name
  -i, --inline               inline bind variables as SQL literals
  -p, --pretty                reindent the generated SQL
      --no-hints             omit the NO_XMLQUERY_REWRITE hint
      --strict               treat unsupported operators as fatal
      --data-column <name>   JSON data column name (default "data")
  -o, --output <file>        write result to file instead of stdout
  -v, --version              print version and exit
  -h, --help                 print this message and exit

Exit codes: 0 success, 1 invalid arguments, 2 input-file error, 3 translation error.`
}
