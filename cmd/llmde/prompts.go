package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llmde/llmde/internal/prompts"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List built-in prompts and system instructions",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Built-in prompts:")
		for _, name := range prompts.Builtin() {
			asset, err := prompts.Resolve(name)
			if err != nil {
				return err
			}
			marker := ""
			if asset.Schema != nil {
				marker = " (schema)"
			}
			fmt.Printf("  %s%s\n", name, marker)
		}

		fmt.Println("\nBuilt-in system instructions:")
		for _, name := range prompts.BuiltinSystem() {
			fmt.Printf("  %s\n", name)
		}
		return nil
	},
}
