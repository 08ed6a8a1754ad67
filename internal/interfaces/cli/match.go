package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linkrx/formident/internal/domain/equivalence"
	"github.com/linkrx/formident/internal/domain/formulation"
	"github.com/linkrx/formident/internal/domain/matching"
	"github.com/linkrx/formident/pkg/errors"
)

func newMatchCommand() *cobra.Command {
	var (
		snapshot   string
		classID    int
		ingredient string
		formRoute  string
		strength   string

		recIngredient string
		recFormRoute  string
		recStrength   string
		recUnit       string
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Test an NDC-shaped record against a class or formulation key",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			if recIngredient == "" || recFormRoute == "" {
				return errors.New(errors.ErrCodeMatchInvalidRecord,
					"--rec-ingredient and --rec-form-route are required")
			}
			rec := matching.Record{
				Ingredient: recIngredient,
				FormRoute:  recFormRoute,
				Strength:   recStrength,
				Unit:       recUnit,
			}

			var candidate matching.Candidate
			switch {
			case classID >= 0:
				if snapshot == "" {
					snapshot = app.cfg.Resolution.SnapshotPath
				}
				registry, err := loadRegistry(snapshot)
				if err != nil {
					return err
				}
				c, err := registry.Class(equivalence.ClassID(classID))
				if err != nil {
					return err
				}
				candidate = c
			case ingredient != "":
				key, err := formulation.NewKey(ingredient, formRoute, strength)
				if err != nil {
					return err
				}
				candidate = matching.Single{Key: key}
			default:
				return errors.InvalidParam("either --class or --ingredient is required")
			}

			if matching.Equivalent(candidate, rec) {
				fmt.Println("equivalent")
			} else {
				fmt.Println("not equivalent")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&snapshot, "snapshot", "s", "", "snapshot file to read")
	cmd.Flags().IntVar(&classID, "class", -1, "class id to test against")
	cmd.Flags().StringVar(&ingredient, "ingredient", "", "formulation ingredient text")
	cmd.Flags().StringVar(&formRoute, "form-route", "", "formulation form/route text")
	cmd.Flags().StringVar(&strength, "strength", "", "formulation strength text")
	cmd.Flags().StringVar(&recIngredient, "rec-ingredient", "", "record ingredient name(s)")
	cmd.Flags().StringVar(&recFormRoute, "rec-form-route", "", "record form/route text")
	cmd.Flags().StringVar(&recStrength, "rec-strength", "", "record numeric strength(s)")
	cmd.Flags().StringVar(&recUnit, "rec-unit", "", "record unit string(s)")
	return cmd
}
