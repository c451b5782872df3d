package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	gameDI "github.com/fd1az/flashblocks-catcher/business/game/di"
	"github.com/fd1az/flashblocks-catcher/business/game/infra"
)

func raceCommand() *cobra.Command {
	var warmup time.Duration

	cmd := &cobra.Command{
		Use:   "race",
		Short: "Send one test transaction and print how fast each cadence confirms it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return race(cmd.Context(), warmup)
		},
	}
	cmd.Flags().DurationVar(&warmup, "warmup", 3*time.Second, "time to let both block streams settle before sending")
	return cmd
}

func race(ctx context.Context, warmup time.Duration) error {
	app, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer app.stop()

	if err := app.start(ctx); err != nil {
		return err
	}

	select {
	case <-time.After(warmup):
	case <-ctx.Done():
		return ctx.Err()
	}

	session := gameDI.GetSession(app.mono.Services())
	tx, err := session.Submit(ctx)
	if err != nil {
		return err
	}
	app.log.Info(ctx, "transaction sent", "tx", tx.String())

	result, err := session.AwaitRace(ctx, tx)
	if err != nil {
		return err
	}

	fmt.Println(infra.FormatRaceSummary(result))
	return nil
}
