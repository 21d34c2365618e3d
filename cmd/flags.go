package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustFlag reads a flag registered in init(). A lookup error means the flag
// name is misspelled or has another type, so it panics instead of returning.
func mustFlag[T any](cmd *cobra.Command, name string, get func(string) (T, error)) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("%s: flag --%s: %v", cmd.CommandPath(), name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustFlag(cmd, name, cmd.Flags().GetBool)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return mustFlag(cmd, name, cmd.Flags().GetInt)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustFlag(cmd, name, cmd.Flags().GetString)
}

// mustGetFloat64 is used for --tolerance; zero means the configured value.
func mustGetFloat64(cmd *cobra.Command, name string) float64 {
	return mustFlag(cmd, name, cmd.Flags().GetFloat64)
}
