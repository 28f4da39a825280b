package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkalas/centavo/internal/cli"
)

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the local cache and queued changes",
		Long: `Clears every cached entity, queued mutation, and sync marker. Queued
changes that were never synced are lost. The remote store is untouched.`,
		RunE: runReset,
	}
	cmd.Flags().Bool("force", false, "skip confirmation")
	return cmd
}

func runReset(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if force, _ := cmd.Flags().GetBool("force"); !force {
		fmt.Print(cli.FormatWarning("this deletes all local data including unsynced changes; continue? [y/N] "))
		reader := bufio.NewReader(os.Stdin)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("aborted")
			return nil
		}
	}

	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close()

	if err := application.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear local data: %w", err)
	}
	fmt.Println(cli.FormatSuccess("local data cleared"))
	return nil
}
