// Command widget загружает виджет гильдии Discord и выводит его содержимое.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discord-widget/internal/adapters/exporter"
	"discord-widget/internal/adapters/parser"
	"discord-widget/internal/adapters/source"
	"discord-widget/internal/adapters/transport"
	"discord-widget/internal/domain"
	applog "discord-widget/internal/log"
	"discord-widget/internal/pkg/config"
	"discord-widget/internal/ports"
	"discord-widget/internal/widget"

	"github.com/MatusOllah/slogcolor"
	"golang.org/x/term"
)

type options struct {
	configPath string
	guildID    int64
	url        string
	file       string
	async      bool
	format     string
	timeout    time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("widget", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "c", config.DefaultPath, "path to config file")
	fs.Int64Var(&opts.guildID, "guild", 0, "guild ID")
	fs.StringVar(&opts.url, "url", "", "widget endpoint URL, https://discord.com/api/guilds/<id>/widget.json")
	fs.StringVar(&opts.file, "file", "", "saved widget JSON file, '-' for stdin")
	fs.BoolVar(&opts.async, "async", false, "fetch in background and wait for the result")
	fs.StringVar(&opts.format, "format", "text", "output format: text or json")
	fs.DurationVar(&opts.timeout, "timeout", 0, "fetch timeout, 0 for none")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	sources := 0
	for _, set := range []bool{opts.guildID != 0, opts.url != "", opts.file != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return opts, errors.New("exactly one of -guild, -url or -file is required")
	}
	if opts.guildID < 0 {
		return opts, fmt.Errorf("invalid guild ID %d", opts.guildID)
	}
	if opts.format != "text" && opts.format != "json" {
		return opts, fmt.Errorf("unknown format %q", opts.format)
	}
	if opts.timeout < 0 {
		return opts, errors.New("timeout must not be negative")
	}

	return opts, nil
}

// run разбирает аргументы, получает снимок и выводит его в stdout.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(stderr, cfg.Logging)

	var snapshot domain.Snapshot
	if opts.file != "" {
		snapshot, err = readSnapshot(opts.file, stdin)
	} else {
		snapshot, err = fetchSnapshot(ctx, opts, cfg, logger)
	}
	if err != nil {
		return err
	}

	var exp ports.Exporter
	if opts.format == "json" {
		exp = exporter.NewJSONExporter(stdout, true)
	} else {
		exp = exporter.NewConsoleExporter(stdout)
	}
	return exp.Export(snapshot)
}

func readSnapshot(path string, stdin io.Reader) (domain.Snapshot, error) {
	var src ports.DataSource
	if path == "-" {
		src = source.NewReaderSource(stdin)
	} else {
		src = source.NewFileSource(path)
	}

	data, err := src.Fetch()
	if err != nil {
		return domain.Snapshot{}, err
	}

	snapshot, err := parser.NewWidgetParser().ParseBytes(data)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return *snapshot, nil
}

func fetchSnapshot(ctx context.Context, opts options, cfg *config.Config, logger *slog.Logger) (domain.Snapshot, error) {
	widgetOpts := []widget.Option{
		widget.WithAPIBaseURL(cfg.Discord.APIBaseURL),
		widget.WithWidgetPageURL(cfg.Discord.WidgetPageURL),
		widget.WithLogger(logger),
		widget.WithTransport(transport.New(
			transport.WithUserAgent(cfg.Discord.UserAgent),
			transport.WithLogger(logger),
		)),
	}

	var w *widget.Widget
	if opts.url != "" {
		var err error
		if w, err = widget.FromURL(opts.url, widgetOpts...); err != nil {
			return domain.Snapshot{}, err
		}
	} else {
		w = widget.New(opts.guildID, widgetOpts...)
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	var err error
	if opts.async {
		err = <-w.FetchAsync(ctx, nil)
	} else {
		err = w.Fetch(ctx)
	}
	if err != nil {
		return domain.Snapshot{}, err
	}

	logger.Info(w.String(), "widget_url", w.WidgetURL())
	return w.Snapshot(), nil
}

// newLogger выбирает цветной вывод для терминала и текстовый для всего остального.
func newLogger(stderr io.Writer, cfg config.Logging) *slog.Logger {
	level := applog.ParseLevel(cfg.Level)

	var handler slog.Handler
	if f, ok := stderr.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		colorOpts := *slogcolor.DefaultOptions
		colorOpts.Level = level
		handler = slogcolor.NewHandler(stderr, &colorOpts)
	} else {
		handler = slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	}

	if cfg.MaskInvites {
		return applog.NewMaskedLogger(handler)
	}
	return slog.New(handler)
}
