package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and the course catalogue",
	Long: `Validate loads the service configuration and every course document,
running schema and structural checks (agent rosters, LLM policies) without
dispatching any backend call.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ids := a.courses.List()
	fmt.Printf("configuration OK, %d course(s) valid: %v\n", len(ids), ids)
	fmt.Printf("backends: %v (primary: %s)\n", a.router.Backends(), a.router.Primary())

	return nil
}
