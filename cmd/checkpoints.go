package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riqlabs/labmatch-cli/internal/checkpoint"
)

var checkpointsInstitution string

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Inspect and manage phase checkpoints",
}

var checkpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved checkpoints for an institution",
	RunE: func(cmd *cobra.Command, args []string) error {
		inst, err := loadInstitution(checkpointsInstitution)
		if err != nil {
			return err
		}
		store, err := checkpoint.NewStore(cfg.Checkpoint.Dir, inst.Name, "")
		if err != nil {
			return err
		}

		phases := store.List()
		if len(phases) == 0 {
			fmt.Println("no checkpoints")
			return nil
		}
		for _, phase := range phases {
			snap, err := store.Load(phase)
			if err != nil {
				fmt.Printf("%-16s (unreadable)\n", phase)
				continue
			}
			fmt.Printf("%-16s %4d records  %s\n",
				phase, snap.Count, snap.Meta.Timestamp.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var checkpointsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all checkpoints for an institution",
	RunE: func(cmd *cobra.Command, args []string) error {
		inst, err := loadInstitution(checkpointsInstitution)
		if err != nil {
			return err
		}
		store, err := checkpoint.NewStore(cfg.Checkpoint.Dir, inst.Name, "")
		if err != nil {
			return err
		}
		return store.Clear()
	},
}

func init() {
	checkpointsCmd.PersistentFlags().StringVarP(&checkpointsInstitution, "institution", "i", "", "institution key (required)")
	_ = checkpointsCmd.MarkPersistentFlagRequired("institution")

	checkpointsCmd.AddCommand(checkpointsListCmd, checkpointsClearCmd)
	rootCmd.AddCommand(checkpointsCmd)
}
