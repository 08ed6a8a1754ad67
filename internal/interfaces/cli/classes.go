package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/linkrx/formident/internal/domain/equivalence"
)

func newClassesCommand() *cobra.Command {
	var (
		snapshot string
		classID  int
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List or inspect equivalence classes from a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			if snapshot == "" {
				snapshot = app.cfg.Resolution.SnapshotPath
			}
			registry, err := loadRegistry(snapshot)
			if err != nil {
				return err
			}

			if classID >= 0 {
				c, err := registry.Class(equivalence.ClassID(classID))
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(snapshotRecordOf(c))
				}
				fmt.Println(c)
				for _, k := range c.FormulationKeys() {
					fmt.Printf("  %s\n", k)
				}
				for _, a := range c.ApplicationKeys() {
					fmt.Printf("  %s\n", a)
				}
				return nil
			}

			if asJSON {
				return printJSON(registry.Snapshot())
			}
			printed := 0
			registry.Classes(func(c *equivalence.Class) bool {
				fmt.Printf("%d\t%s\n", c.ID(), c)
				printed++
				return limit <= 0 || printed < limit
			})
			return nil
		},
	}

	cmd.Flags().StringVarP(&snapshot, "snapshot", "s", "", "snapshot file to read")
	cmd.Flags().IntVar(&classID, "id", -1, "inspect a single class by id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum classes to list (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of text")
	return cmd
}

func snapshotRecordOf(c *equivalence.Class) equivalence.ClassRecord {
	rec := equivalence.ClassRecord{ID: c.ID()}
	for _, k := range c.FormulationKeys() {
		rec.FormulationKeys = append(rec.FormulationKeys,
			[]string{k.Ingredient, k.FormRoute, k.Strength})
	}
	for _, a := range c.ApplicationKeys() {
		rec.ApplicationKeys = append(rec.ApplicationKeys,
			[]string{a.ApplNo, a.ProductNo})
	}
	return rec
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
