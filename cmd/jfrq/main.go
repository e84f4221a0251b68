// Command jfrq is the non-interactive command-execution surface for the
// query engine: jfrq query <recording> '<qpath>' streams a recording,
// evaluates a QPath query against it, and prints the resulting rows as
// JSON. The interactive REPL/line-editor surface is out of scope; this is
// the one-shot execution contract the evaluator must serve.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"jfrq/internal/config"
	"jfrq/internal/jfr/chunk"
	"jfrq/internal/jfrlog"
	"jfrq/internal/query/pipeline"
	"jfrq/internal/session"
)

var (
	recordingGlob string
	pretty        bool
)

var rootCmd = &cobra.Command{
	Use:   "jfrq",
	Short: "jfrq - a query engine for JFR recordings",
	Long: `jfrq parses Java Flight Recorder (.jfr) recordings and evaluates
QPath queries against them without loading the whole event stream into a UI.`,
}

var queryCmd = &cobra.Command{
	Use:   "query <recording> <qpath>",
	Short: "evaluate a QPath query against a recording and print the resulting rows as JSON",
	Args:  cobra.ExactArgs(2),
	RunE:  runQuery,
}

var eventsCmd = &cobra.Command{
	Use:   "events <recording>",
	Short: "list the event types declared in a recording's metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvents,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print jfrq's version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("jfrq (dev)")
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	queryCmd.Flags().StringVar(&recordingGlob, "recording", "", "glob pattern (over the given directory) selecting the recording to query, instead of an exact path")
	queryCmd.Flags().BoolVar(&pretty, "pretty", false, "pretty-print JSON output")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveRecordingPath returns arg unchanged unless --recording was given, in
// which case arg is treated as a directory and --recording as a doublestar
// glob (matching app/fileloader/directory.go's DiscoverFiles convention) to
// resolve a single recording file beneath it.
func resolveRecordingPath(arg string) (string, error) {
	if recordingGlob == "" {
		return arg, nil
	}
	matches, err := doublestar.FilepathGlob(filepath.Join(arg, recordingGlob))
	if err != nil {
		return "", fmt.Errorf("--recording pattern: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("--recording pattern %q matched no files", recordingGlob)
	}
	sort.Strings(matches)
	return matches[0], nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	path, err := resolveRecordingPath(args[0])
	if err != nil {
		return err
	}
	query := args[1]

	cfg := config.Load(configPathOrDefault())
	sess, err := session.OpenWithCacheSize(path, cfg.CacheSizeLimitBytes())
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	jfrlog.Tagf("CLI_RUN", "id=%s recording=%s", runID, path)

	rows, err := sess.Evaluate(query)
	if err != nil {
		return err
	}

	out := rowsToJSONable(rows)
	b, err := oj.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, b, "", "  "); err == nil {
			b = buf.Bytes()
		}
	}
	fmt.Println(string(b))
	return nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	path, err := resolveRecordingPath(args[0])
	if err != nil {
		return err
	}
	cfg := config.Load(configPathOrDefault())
	sess, err := session.OpenWithCacheSize(path, cfg.CacheSizeLimitBytes())
	if err != nil {
		return err
	}
	types, err := sess.AvailableEventTypes()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func configPathOrDefault() string {
	path, err := config.DefaultPath()
	if err != nil {
		return ""
	}
	return path
}

// rowsToJSONable converts materialized rows into plain Go values oj.Marshal
// can render, resolving every constant-pool reference along the way so the
// emitted JSON never carries an opaque Reference.
func rowsToJSONable(rows []*pipeline.Row) []map[string]interface{} {
	out := make([]map[string]interface{}, len(rows))
	for i, r := range rows {
		m := make(map[string]interface{}, len(r.Keys()))
		for _, k := range r.Keys() {
			v, _ := r.Get(k)
			m[k] = valueToJSONable(v)
		}
		out[i] = m
	}
	return out
}

func valueToJSONable(v chunk.Value) interface{} {
	v = v.Resolve()
	switch v.Kind {
	case chunk.KindNull:
		return nil
	case chunk.KindScalar:
		return v.Scalar
	case chunk.KindMap:
		m := make(map[string]interface{}, len(v.Map))
		for k, fv := range v.Map {
			m[k] = valueToJSONable(fv)
		}
		return m
	case chunk.KindArray:
		arr := make([]interface{}, len(v.Array))
		for i, ev := range v.Array {
			arr[i] = valueToJSONable(ev)
		}
		return arr
	case chunk.KindReference:
		return fmt.Sprintf("%s#%d", v.Ref.PoolType, v.Ref.ID)
	default:
		return nil
	}
}
