package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/alecthomas/kong"

	"github.com/shared-utils/mediasession/mediasession"
)

// CLI is a kong.Parse-driven entry point with two commands: serve (the
// HTTP front door over a single media URL) and fetch (a one-shot smoke
// test that opens a URL and dumps a byte range).
type CLI struct {
	Serve ServeCmd `cmd:"" help:"Serve a single media URL over HTTP with Range support."`
	Fetch FetchCmd `cmd:"" help:"Open a media URL and read a byte range to stdout."`
	Debug bool     `help:"Enable debug logging" env:"DEBUG"`
}

// ServeCmd opens a media URL and serves it over HTTP with Range support.
type ServeCmd struct {
	URL        string `arg:"" help:"Media URL to open"`
	Listen     string `help:"Listen address" default:":8080" env:"LISTEN_ADDR"`
	PacketSize int64  `help:"Packet size in bytes" default:"65536" name:"packet-size"`
	NearWindow int    `help:"Abort-and-replan lookahead, in packets" default:"64" name:"near-window"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg := mediasession.DefaultConfig()
	cfg.PacketSize = c.PacketSize
	cfg.NearWindow = c.NearWindow

	resource, err := mediasession.NewMediaResource(cfg, nil)
	if err != nil {
		return err
	}
	defer resource.Close()

	session, err := resource.Open(context.Background(), c.URL)
	if err != nil {
		return err
	}
	defer session.Close()

	slog.Info("session opened",
		"title", session.Title(),
		"content_length", session.ContentLength(),
		"content_type", session.ContentType(),
	)

	handler := &mediasession.Handler{Session: session}
	slog.Info("server started", "addr", c.Listen, "url", c.URL)
	return http.ListenAndServe(c.Listen, handler)
}

// FetchCmd opens a media URL and writes a single (offset, length) read to
// stdout, for smoke-testing a resolver/fetch pipeline without a server.
type FetchCmd struct {
	URL    string `arg:"" help:"Media URL to open"`
	Offset int64  `help:"Byte offset to read from" default:"0"`
	Length int64  `help:"Number of bytes to read" default:"65536"`
}

func (c *FetchCmd) Run(cli *CLI) error {
	resource, err := mediasession.NewMediaResource(nil, nil)
	if err != nil {
		return err
	}
	defer resource.Close()

	ctx := context.Background()
	session, err := resource.Open(ctx, c.URL)
	if err != nil {
		return err
	}
	defer session.Close()

	dest := make([]byte, c.Length)
	n, err := session.Read(ctx, c.Offset, dest)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(dest[:n])
	return err
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("mediaplay"),
		kong.Description("Randomly seekable HTTP media session with a range-driven packet cache"),
		kong.UsageOnError(),
	)

	level := slog.LevelInfo
	if cli.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := ctx.Run(&cli); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
