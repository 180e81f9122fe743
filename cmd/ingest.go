package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ratfun/tripgraph/internal/graph"
)

var ingestStrict bool

// Dump is the file shape accepted by ingest.
type Dump struct {
	Trips    []graph.Trip       `json:"trips" yaml:"trips"`
	Outcomes []graph.RawOutcome `json:"outcomes" yaml:"outcomes"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Load trips and outcomes from JSON or YAML dumps into the store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenOrCreateDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		var trips, outcomes, skipped int
		for _, file := range args {
			dump, err := readDump(file)
			if err != nil {
				return err
			}

			for _, t := range dump.Trips {
				if t.ID == "" {
					return fmt.Errorf("%s: trip without id", file)
				}
				if t.WorldID == "" {
					t.WorldID = worldID
				}
				if err := d.UpsertTrip(ctx, graph.RowFromTrip(t)); err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				trips++
			}

			for i, raw := range dump.Outcomes {
				if _, err := graph.Normalize(raw); err != nil {
					if ingestStrict {
						return fmt.Errorf("%s: outcome %d: %w", file, i, err)
					}
					logger.Warn("skipping outcome", "file", file, "index", i, "error", err)
					skipped++
					continue
				}
				row, err := graph.RowFromRaw(worldID, raw)
				if err != nil {
					return fmt.Errorf("%s: outcome %d: %w", file, i, err)
				}
				if _, err := d.InsertOutcome(ctx, row); err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				outcomes++
			}
		}

		fmt.Printf("Ingested %d trip%s and %d outcome%s into world %s (%d skipped)\n",
			trips, plural(trips), outcomes, plural(outcomes), worldID, skipped)
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestStrict, "strict", false, "Fail on the first malformed outcome instead of skipping it")
	rootCmd.AddCommand(ingestCmd)
}

func readDump(file string) (*Dump, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	var dump Dump
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &dump)
	default:
		err = json.Unmarshal(data, &dump)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	return &dump, nil
}
