package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"preppertrack/internal/app"
	"preppertrack/internal/notification"
	logx "preppertrack/pkg/logx"
	"preppertrack/pkg/systemd"
)

const usage = `usage: preppertrack [-config path] <command> [args]

commands:
  run                          run the daemon (default); SIGHUP reloads the config
  scan                         run one alert scan now
  notifications [-type T]      list notifications (expiration, lowStock, system, security)
  read <id>|all                mark notifications as read
  clear <id>|all               remove notifications
  permission                   request notification permission
  settings [key=value ...]     show or change notification settings
  import <file> [-yes]         import a JSON backup (replaces all data)
  export json|csv|xlsx [-out dir]
`

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config json or yaml")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	code := dispatch(ctx, a, flag.Args(), os.Stdin, os.Stdout)
	a.Close()
	os.Exit(code)
}

func dispatch(ctx context.Context, a *app.App, args []string, in io.Reader, out io.Writer) int {
	cmd := "run"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	var err error
	switch cmd {
	case "run":
		err = run(ctx, a)
	case "scan":
		err = scan(ctx, a, out)
	case "notifications", "ls":
		err = list(a, args, out)
	case "read":
		err = withID(args, func(id string) error { return a.Read(ctx, id) })
	case "clear":
		err = withID(args, func(id string) error { return a.Clear(ctx, id) })
	case "permission":
		err = permission(ctx, a, out)
	case "settings":
		err = settings(ctx, a, args, out)
	case "import":
		err = importFile(ctx, a, args, in, out)
	case "export":
		err = export(ctx, a, args, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, a *app.App) error {
	log := a.Logger()
	go func() {
		if err := systemd.Watchdog(ctx); err != nil {
			log.Warn("systemd watchdog stopped", logx.Err(err))
		}
	}()
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := a.Reload(ctx); err != nil {
					log.Warn("config reload rejected", logx.Err(err))
				}
			}
		}
	}()
	err := a.Run(ctx, func() {
		if _, err := systemd.Ready(); err != nil {
			log.Warn("sd_notify ready failed", logx.Err(err))
		}
	})
	_, _ = systemd.Stopping()
	return err
}

func scan(ctx context.Context, a *app.App, out io.Writer) error {
	rep, err := a.Scan(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "scan %s: %d derived, %d new (%s)\n", rep.ID, rep.Derived, len(rep.Added), rep.Took.Round(time.Millisecond))
	for _, r := range rep.Added {
		fmt.Fprintf(out, "  [%s] %s: %s\n", r.Priority, r.Title, r.Message)
	}
	for _, o := range rep.Outcomes {
		if len(o.Errors) > 0 {
			fmt.Fprintf(out, "  delivery %s: %s\n", o.RecordID, strings.Join(o.Errors, "; "))
		}
	}
	return nil
}

func list(a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("notifications", flag.ContinueOnError)
	typ := fs.String("type", "", "only this type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	recs, err := a.Notifications(*typ)
	if err != nil {
		return err
	}
	printRecords(out, recs)
	fmt.Fprintf(out, "%d notifications, %d unread\n", len(recs), a.UnreadCount())
	return nil
}

func printRecords(out io.Writer, recs []notification.Record) {
	if len(recs) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tPRIORITY\tREAD\tTIME\tMESSAGE")
	for _, r := range recs {
		read := ""
		if r.Read {
			read = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Type, r.Priority, read, r.Timestamp.Format(time.DateTime), r.Message)
	}
	_ = tw.Flush()
}

func withID(args []string, fn func(id string) error) error {
	if len(args) != 1 {
		return errors.New("expected exactly one argument: <id> or all")
	}
	return fn(args[0])
}

func permission(ctx context.Context, a *app.App, out io.Writer) error {
	p, err := a.Permission(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "notification permission:", p)
	return nil
}

func settings(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) == 0 {
		vals, err := a.Settings(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, v := range vals {
			fmt.Fprintf(tw, "%s\t%s\n", v.Key, v.Value)
		}
		return tw.Flush()
	}
	values := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return fmt.Errorf("expected key=value, got %q", arg)
		}
		values[k] = v
	}
	res, err := a.UpdateSettings(ctx, values)
	for _, k := range res.Applied {
		fmt.Fprintf(out, "set %s\n", k)
	}
	keys := make([]string, 0, len(res.Errors))
	for k := range res.Errors {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "rejected %s: %s\n", k, res.Errors[k])
	}
	return err
}

func importFile(ctx context.Context, a *app.App, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("expected a backup file")
	}
	file := fs.Arg(0)
	// Flags may follow the file name.
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errors.New("expected exactly one backup file")
	}
	confirm := func(s app.ImportSummary) bool {
		if *yes {
			return true
		}
		fmt.Fprintf(out, "%s contains %s.\nThis will replace all current data. Continue? [y/N] ", s.File, s)
		line, _ := bufio.NewReader(in).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
	rep, err := a.Import(ctx, file, confirm)
	if errors.Is(err, app.ErrImportCancelled) {
		fmt.Fprintln(out, "import cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "imported:", rep)
	for _, f := range rep.Failures {
		fmt.Fprintln(out, "  failed:", f)
	}
	return nil
}

func export(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("expected a format: json, csv or xlsx")
	}
	format := args[0]
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	dir := fs.String("out", ".", "output directory")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	path, err := a.Export(ctx, format, *dir)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, path)
	return nil
}
