package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/codefair/internal/config"
	"github.com/danielolaszy/codefair/internal/spdx"
)

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Inspect the SPDX license catalog",
	Long: `Inspect the SPDX license catalog that maintainers pick identifiers from.

The bundled catalog is used unless SPDX_CATALOG_PATH points at a
licenses.json file from the SPDX license-list-data repository.`,
}

var licenseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List license identifiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		osiOnly, err := cmd.Flags().GetBool("osi")
		if err != nil {
			return err
		}

		catalog, err := loadCatalog(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, l := range catalog.Licenses() {
			if osiOnly && !l.OSIApproved {
				continue
			}
			fmt.Fprintf(out, "%-24s %s\n", l.ID, l.Name)
		}
		return nil
	},
}

var licenseShowCmd = &cobra.Command{
	Use:   "show <spdx-id>",
	Short: "Show one license",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withText, err := cmd.Flags().GetBool("text")
		if err != nil {
			return err
		}

		catalog, err := loadCatalog(cmd)
		if err != nil {
			return err
		}

		license, err := catalog.Lookup(args[0])
		if errors.Is(err, spdx.ErrUnknownLicense) {
			return fmt.Errorf("%q is not in SPDX license list %s", args[0], catalog.Version())
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printLicense(out, license)

		if withText {
			text, err := catalog.FetchText(cmd.Context(), license.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%s\n", strings.TrimRight(text, "\n"))
		}
		return nil
	},
}

func init() {
	licenseCmd.PersistentFlags().String("catalog", "", "Path to an SPDX licenses.json (default: bundled catalog or SPDX_CATALOG_PATH)")
	licenseListCmd.Flags().Bool("osi", false, "Only list OSI approved licenses")
	licenseShowCmd.Flags().Bool("text", false, "Download and print the license text")

	licenseCmd.AddCommand(licenseListCmd)
	licenseCmd.AddCommand(licenseShowCmd)
}

// loadCatalog reads the catalog named by --catalog, then SPDX_CATALOG_PATH,
// then the bundled one.
func loadCatalog(cmd *cobra.Command) (*spdx.Catalog, error) {
	path, err := cmd.Flags().GetString("catalog")
	if err != nil {
		return nil, err
	}
	if path == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.SPDX.CatalogPath
	}
	return spdx.Load(path)
}

func printLicense(w io.Writer, l spdx.License) {
	fmt.Fprintf(w, "ID:           %s\n", l.ID)
	fmt.Fprintf(w, "Name:         %s\n", l.Name)
	fmt.Fprintf(w, "OSI approved: %t\n", l.OSIApproved)
	fmt.Fprintf(w, "Deprecated:   %t\n", l.Deprecated)
	fmt.Fprintf(w, "Reference:    %s\n", l.Reference)
	for _, u := range l.SeeAlso {
		fmt.Fprintf(w, "See also:     %s\n", u)
	}
}
