package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli"

	"ontime/internal/history"
	logx "ontime/pkg/logx"
)

func showHistory(c *cli.Context) error {
	opts, err := options(c)
	if err != nil {
		return err
	}
	store, err := openHistory(opts, logx.NewConsole(opts.LogLevel))
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("history is disabled; set --history-driver and --history-path")
	}
	defer store.Close()
	return printHistory(context.Background(), c.App.Writer, store, c.Int("limit"))
}

func printHistory(ctx context.Context, w io.Writer, store history.Store, limit int) error {
	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}
	for _, r := range runs {
		status := "ok"
		if !r.OK {
			status = fmt.Sprintf("fail(%d)", r.Code)
		}
		fmt.Fprintf(w, "%s  %-9s %-5s %-8s %6dms  %s\n",
			r.At.Local().Format(time.DateTime), r.Weekday, r.Action, status, r.TookMS, r.Command)
	}
	return nil
}
