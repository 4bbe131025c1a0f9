package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/riqlabs/labmatch-cli/internal/config"
)

var institutionsCmd = &cobra.Command{
	Use:   "institutions",
	Short: "List configured institutions",
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := config.LoadInstitutions(cfg.Institutions.File)
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(table))
		for k := range table {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			inst := table[key]
			fmt.Printf("%-12s %s (%s)\n", key, inst.Name, inst.OpenAlexID)
			fmt.Printf("%-12s   domains: %v, directories: %d\n", "", inst.EmailDomains, len(inst.Directories))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(institutionsCmd)
}
