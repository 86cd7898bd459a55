// Command classinfo inspects compiled classes on a class path without
// running them.
//
//	classinfo inspect -c build/classes:lib/dep.jar com.example.Widget
//	classinfo supers java.util.ArrayList
//	classinfo assignable java.util.List java.util.ArrayList
//	classinfo annotations --inherited com.example.Widget
//	classinfo browse
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wippyai/classmeta/classinfo"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "classinfo",
		Short: "Inspect class metadata without loading classes",
		Long: `classinfo resolves classes from directories, jars and jmods and answers
structural questions: superclass, interfaces, modifiers, constructors,
transitive supertypes and assignability.

Settings are read from classinfo.yaml, CLASSINFO_* environment variables and
flags, in increasing priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (default ./classinfo.yaml)")
	pf.StringSliceP("classpath", "c", nil, "Class path entries (directories, jars, jmods)")
	pf.String("remap", "", "TOML class name mapping")
	pf.String("remap-wasm", "", "WebAssembly remapper plugin")
	pf.StringP("format", "f", "text", "Output format: text, json or cbor")
	pf.Duration("idle-ttl", classinfo.DefaultIdleTTL, "Evict cached classes unused for this long")
	pf.Duration("retry-backoff", time.Duration(0), "Hold failed lookups for this long")
	pf.Int("cache-size", 1024, "Class file bytes cache entries")
	pf.BoolP("verbose", "v", false, "Log resolution steps")

	root.AddCommand(newInspectCommand())
	root.AddCommand(newSupersCommand())
	root.AddCommand(newAssignableCommand())
	root.AddCommand(newAnnotationsCommand())
	root.AddCommand(newBrowseCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
