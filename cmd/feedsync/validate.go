package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and the mapping document",
	Long: `Load the environment configuration and the mapping document,
run all structural checks and exit non-zero on the first problem.`,
	RunE: runValidate,
}

func runValidate(_ *cobra.Command, _ []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Fprintln(os.Stdout, "Mapping validation: OK")
	return nil
}
