package cli

import (
	"github.com/spf13/cobra"

	"github.com/linkrx/formident/internal/domain/equivalence"
	"github.com/linkrx/formident/internal/domain/formulation"
	"github.com/linkrx/formident/pkg/errors"
)

func newResolveCommand() *cobra.Command {
	var (
		snapshot   string
		applNo     string
		productNo  string
		ingredient string
		formRoute  string
		strength   string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve an application or formulation key to its class",
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

			var c *equivalence.Class
			switch {
			case applNo != "" && productNo != "":
				c = registry.LookupApplication(formulation.ApplicationKey{
					ApplNo: applNo, ProductNo: productNo,
				})
			case ingredient != "":
				key, err := formulation.NewKey(ingredient, formRoute, strength)
				if err != nil {
					return err
				}
				c = registry.LookupFormulation(key)
			default:
				return errors.InvalidParam(
					"either --appl-no/--product-no or --ingredient/--form-route/--strength is required")
			}

			if c == nil {
				return errors.NotFound("no class owns the given key")
			}
			return printJSON(snapshotRecordOf(c))
		},
	}

	cmd.Flags().StringVarP(&snapshot, "snapshot", "s", "", "snapshot file to read")
	cmd.Flags().StringVar(&applNo, "appl-no", "", "application number")
	cmd.Flags().StringVar(&productNo, "product-no", "", "product number")
	cmd.Flags().StringVar(&ingredient, "ingredient", "", "formulation ingredient text")
	cmd.Flags().StringVar(&formRoute, "form-route", "", "formulation form/route text")
	cmd.Flags().StringVar(&strength, "strength", "", "formulation strength text")
	return cmd
}
