package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pellelindal/FEEDJetshop/pkg/discovery"
)

var (
	discoverSince     string
	discoverProductNo string
	discoverOutput    string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Suggest mapping entries from a sample feed product",
	Long: `Fetch one product from the feed, compare its attributes and
texts against the mapping document and write a YAML file of unmapped
fields, each with a suggested target type and transforms.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&discoverSince, "since", "",
		"Export-from timestamp for the sample fetch")
	discoverCmd.Flags().StringVar(&discoverProductNo, "product-no", "",
		"Use this product as the sample instead of the first returned")
	discoverCmd.Flags().StringVar(&discoverOutput, "output", "",
		"Suggestions file path (default: mappings/mapping_suggestions.yaml)")
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.Close()

	suggestions, err := discovery.Discover(cmd.Context(), newFeedClient(rt), newJetshopClient(rt), rt.mapping, discovery.Options{
		ExportFrom: discoverSince,
		ProductNo:  discoverProductNo,
		OutputPath: discoverOutput,
	})
	if err != nil {
		return err
	}

	total := len(suggestions.UnmappedAttributes) + len(suggestions.UnmappedTexts)
	fmt.Fprintf(os.Stdout, "Mapping suggestions written with %d attributes.\n", total)
	return nil
}
