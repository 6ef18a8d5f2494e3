// Command assistant is a terminal front end for the Pronote assistant
// backend: it logs in, shows homework, timetable and grades, and chats
// with the assistant.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/Ultrahd-dev/pronote-assistant/internal/client"
)

type options struct {
	server      string
	portalURL   string
	username    string
	ent         string
	accountType int
	period      string
	from        string
	to          string
	model       string
	timeout     time.Duration
	verbose     bool
}

const usageText = `Usage: assistant [flags] <command>

Commands:
  providers   list the ENTs usable with --ent
  health      show the backend status
  homework    list homework (default: next 14 days)
  timetable   show the timetable (default: current week)
  grades      list grades and averages (--period to filter)
  dashboard   homework, timetable and grades at once
  chat        talk with the assistant (empty line or Ctrl-D quits)

The password is read from ASSISTANT_PASSWORD or prompted for.

Flags:
`

func main() {
	var opts options
	flags := pflag.NewFlagSet("assistant", pflag.ExitOnError)
	flags.StringVarP(&opts.server, "server", "s", envOr("ASSISTANT_SERVER", "http://localhost:8000"), "backend base URL")
	flags.StringVar(&opts.portalURL, "url", os.Getenv("ASSISTANT_PRONOTE_URL"), "Pronote URL of the establishment")
	flags.StringVarP(&opts.username, "user", "u", os.Getenv("ASSISTANT_USERNAME"), "Pronote username")
	flags.StringVar(&opts.ent, "ent", "", "log in through this ENT (see the providers command)")
	flags.IntVar(&opts.accountType, "account-type", client.AccountStudent, "1 teacher, 2 parent, 3 student")
	flags.StringVar(&opts.period, "period", "", "grade period, e.g. \"Trimestre 1\"")
	flags.StringVar(&opts.from, "from", "", "start date (YYYY-MM-DD)")
	flags.StringVar(&opts.to, "to", "", "end date (YYYY-MM-DD)")
	flags.StringVar(&opts.model, "model", client.DefaultModel, "AI model used by chat")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "HTTP timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log requests to stderr")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usageText)
		flags.PrintDefaults()
	}
	flags.Parse(os.Args[1:])

	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flags.Arg(0), opts); err != nil {
		fmt.Fprintln(os.Stderr, "erreur:", describe(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, opts options) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	c := client.New(opts.server,
		client.WithTimeout(opts.timeout),
		client.WithModel(opts.model),
		client.WithLogger(logger),
	)
	out := os.Stdout

	switch command {
	case "providers":
		providers, err := c.Providers(ctx)
		if err != nil {
			return err
		}
		printProviders(out, providers)
		return nil
	case "health":
		health, err := c.Health(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "status: %s\nstore: %s\n", health.Status, health.Store)
		if !health.Healthy() {
			return errors.New("le serveur ne signale pas un état sain")
		}
		return nil
	case "homework", "timetable", "grades", "dashboard", "chat":
	default:
		return fmt.Errorf("commande inconnue %q", command)
	}

	from, to, err := dateRange(opts.from, opts.to)
	if err != nil {
		return err
	}
	if err := login(ctx, c, opts); err != nil {
		return err
	}
	defer c.Logout(context.Background())

	switch command {
	case "homework":
		homework, err := c.FetchHomework(ctx, from, to)
		if err != nil {
			return err
		}
		printHomework(out, homework)
	case "timetable":
		lessons, err := c.FetchTimetable(ctx, from, to)
		if err != nil {
			return err
		}
		printTimetable(out, lessons)
	case "grades":
		grades, err := c.FetchGrades(ctx, opts.period)
		if err != nil {
			return err
		}
		printGrades(out, grades)
	case "dashboard":
		snapshot, err := c.FetchAll(ctx, from, to, opts.period)
		if err != nil {
			return err
		}
		printDashboard(out, c.Student(), snapshot)
	case "chat":
		return chat(ctx, c, os.Stdin, out)
	}
	return nil
}

func login(ctx context.Context, c *client.Client, opts options) error {
	if opts.portalURL == "" || opts.username == "" {
		return errors.New("--url et --user sont requis")
	}
	password, err := readPassword()
	if err != nil {
		return err
	}

	var student *client.Student
	if opts.ent != "" {
		student, err = c.LoginFederated(ctx, client.FederatedLogin{
			PortalURL: opts.portalURL,
			Username:  opts.username,
			Password:  password,
			Provider:  opts.ent,
		})
	} else {
		student, err = c.LoginDirect(ctx, client.DirectLogin{
			PortalURL:   opts.portalURL,
			Username:    opts.username,
			Password:    password,
			AccountKind: opts.accountType,
		})
	}
	if err != nil {
		return err
	}
	c.SetStudent(student)
	fmt.Fprintf(os.Stderr, "Connecté: %s", student.StudentName)
	if student.ClassName != "" {
		fmt.Fprintf(os.Stderr, " (%s)", student.ClassName)
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

func readPassword() (string, error) {
	if password := os.Getenv("ASSISTANT_PASSWORD"); password != "" {
		return password, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("mot de passe requis: définissez ASSISTANT_PASSWORD")
	}
	fmt.Fprint(os.Stderr, "Mot de passe: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("lecture du mot de passe: %w", err)
	}
	return string(password), nil
}

func chat(ctx context.Context, c *client.Client, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "Posez votre question (ligne vide pour quitter).")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			return nil
		}

		payload, err := c.BuildChatContext(ctx, text, time.Now())
		if errors.Is(err, client.ErrSessionExpired) {
			return err
		}
		if err != nil {
			// Sans contexte, le message part quand même
			payload = nil
		}
		reply, err := c.SendChatMessage(ctx, text, payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s\n\n", reply)
	}
}

// dateRange parses the optional --from/--to bounds as local dates.
// --to is inclusive: the range ends at the following midnight.
func dateRange(from, to string) (*time.Time, *time.Time, error) {
	parse := func(flag, value string) (*time.Time, error) {
		if value == "" {
			return nil, nil
		}
		t, err := time.ParseInLocation("2006-01-02", value, time.Local)
		if err != nil {
			return nil, fmt.Errorf("--%s: date invalide %q (attendu AAAA-MM-JJ)", flag, value)
		}
		return &t, nil
	}
	start, err := parse("from", from)
	if err != nil {
		return nil, nil, err
	}
	end, err := parse("to", to)
	if err != nil {
		return nil, nil, err
	}
	if end != nil {
		next := end.AddDate(0, 0, 1)
		end = &next
	}
	return start, end, nil
}

func describe(err error) string {
	switch client.KindOf(err) {
	case client.KindAuthenticationRejected:
		return "identifiants refusés par Pronote"
	case client.KindSessionExpired:
		return "session expirée, relancez la commande"
	case client.KindNetworkUnavailable:
		return "serveur injoignable"
	}
	return err.Error()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
