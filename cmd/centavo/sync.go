package main

import (
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mkalas/centavo/internal/cli"
	"github.com/mkalas/centavo/internal/common"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Flush queued offline changes to the remote store",
		Long: `Replays mutations queued while offline against the remote store and
reconciles temporary identifiers with the server-assigned ones. Failed
operations stay queued for the next run.`,
		RunE: runSync,
	}
	cmd.Flags().Bool("watch", false, "keep running and sync on connectivity changes")
	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close()

	watch, _ := cmd.Flags().GetBool("watch")
	if watch {
		fmt.Println(cli.SubtleStyle.Render("watching for connectivity changes, ctrl-c to stop"))
		go application.connectivity.Run(ctx)
		application.engine.Watch(ctx)
		return nil
	}

	pending := application.engine.Status().PendingOperations
	if pending == 0 {
		fmt.Println(cli.FormatSuccess("nothing to sync"))
		return application.engine.SyncNow(ctx)
	}

	bar := progressbar.NewOptions(pending,
		progressbar.OptionSetDescription("syncing"),
		progressbar.OptionClearOnFinish(),
	)

	err = application.engine.SyncNow(ctx)
	_ = bar.Finish()

	status := application.engine.Status()
	switch {
	case errors.Is(err, common.ErrOffline):
		fmt.Println(cli.FormatWarning("offline; changes remain queued"))
		return nil
	case errors.Is(err, common.ErrRemoteUnavailable):
		fmt.Println(cli.FormatWarning("remote store unreachable; changes remain queued"))
		return nil
	case err != nil:
		return common.NewUserError(
			fmt.Sprintf("sync incomplete: %d operations still pending", status.PendingOperations), err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("synced %d operations", pending)))
	return nil
}
