package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("coursesync"),
		kong.Description("Synchronize a tree of Markdown courses into HTML/PDF artifacts and the course catalog."),
		kong.UsageOnError(),
	)
	err := kctx.Run(&Global{Ctx: ctx, Out: os.Stdout})
	stop()
	kctx.FatalIfErrorf(err)
}
