package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/klemjul/promptforge/cmd"
	"github.com/klemjul/promptforge/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := app.NewDefaultApp()
	if err := cmd.RootCommand(app).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
