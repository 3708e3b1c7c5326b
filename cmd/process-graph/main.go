// Command process-graph renders a manifest's dependency graph to an image
// via Graphviz (spec.md §6 "CLI surface (graph tool)"). It is a read-only
// consumer of the manifest: it never spawns, signals, or probes anything.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/engineerjames/process-pilot/internal/graph"
	"github.com/engineerjames/process-pilot/internal/manifest"
)

const (
	exitOK              = 0
	exitManifestInvalid = 1
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		format    string
		outputDir string
		detailed  bool
	)

	exitCode := exitOK
	cmd := &cobra.Command{
		Use:          "process-graph <manifest-path>",
		Short:        "Render a manifest's dependency graph to an image",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			m, err := manifest.Load(posArgs[0])
			if err != nil {
				exitCode = exitManifestInvalid
				return err
			}

			f := graph.Format(format)
			if !f.Valid() {
				exitCode = exitManifestInvalid
				return fmt.Errorf("unsupported --format %q (want png, svg, or pdf)", format)
			}

			r := graph.Renderer{}
			path, err := r.Render(m, f, outputDir, detailed)
			if err != nil {
				exitCode = exitManifestInvalid
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "png", "output image format: png, svg, or pdf")
	cmd.Flags().StringVar(&outputDir, "output-dir", ".", "directory to write the rendered image into")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include per-process detail in node labels (svg only)")

	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "process-graph:", err)
		if exitCode == exitOK {
			exitCode = exitManifestInvalid
		}
		return exitCode
	}
	return exitCode
}
