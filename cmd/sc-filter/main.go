package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/andesco/sc-proxy/pkg/logging"
	"github.com/andesco/sc-proxy/pkg/soundcloud"

	"github.com/akamensky/argparse"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	labelStyle = lipgloss.NewStyle().Faint(true)
)

func main() {
	_ = godotenv.Load()

	parser := argparse.NewParser("sc-filter", "Find SoundCloud users by location from a user's followings")

	username := parser.String("u", "user", &argparse.Options{
		Required: true,
		Help:     "SoundCloud username to analyze",
	})
	location := parser.String("l", "location", &argparse.Options{
		Required: true,
		Help:     `Location to filter by, e.g. "Berlin" or "GE"`,
	})
	quiet := parser.Flag("q", "quiet", &argparse.Options{
		Help: "Minimal output",
	})
	proxyURL := parser.String("", "proxy", &argparse.Options{
		Default: os.Getenv("SC_PROXY_URL"),
		Help:    "Route requests through an sc-proxy deployment at this URL",
	})
	clientID := parser.String("", "client-id", &argparse.Options{
		Default: os.Getenv("SC_CLIENT_ID"),
		Help:    "SoundCloud client id. Discovered from soundcloud.com when empty",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	if err := logging.FromEnv("warn"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Stdout, os.Stderr, options{
		username: *username,
		location: *location,
		quiet:    *quiet,
		proxyURL: *proxyURL,
		clientID: *clientID,
	}))
}

type options struct {
	username string
	location string
	quiet    bool
	proxyURL string
	clientID string
}

func run(ctx context.Context, out, errOut io.Writer, opts options) int {
	rule := strings.Repeat("=", ruleWidth())
	progress := func(format string, args ...interface{}) {
		if !opts.quiet {
			fmt.Fprintf(out, format+"\n", args...)
		}
	}

	progress("\n%s", rule)
	progress("%s", titleStyle.Render("SoundCloud Location Filter"))
	progress("%s", rule)
	progress("User: %s", opts.username)
	progress("Location: %s", opts.location)
	progress("%s\n", rule)

	var clientOpts []soundcloud.Option
	if opts.proxyURL != "" {
		clientOpts = append(clientOpts, soundcloud.WithProxy(opts.proxyURL))
	}
	if opts.clientID != "" {
		clientOpts = append(clientOpts, soundcloud.WithClientID(opts.clientID))
	}
	client := soundcloud.New(clientOpts...)

	progress("Fetching followings from SoundCloud API...")
	followings, err := client.FollowingsByUsername(ctx, opts.username)
	if err != nil {
		fmt.Fprintf(errOut, "%s %v\n", failStyle.Render("Error:"), err)
		return 1
	}
	progress("Found %d followings\n", len(followings))

	withLocation := 0
	for _, u := range followings {
		if u.Location() != "" {
			withLocation++
		}
	}
	progress("%d/%d users have location data\n", withLocation, len(followings))

	progress("Filtering for '%s'...", opts.location)
	matched := soundcloud.FilterByLocation(followings, opts.location)
	progress("Found %d matches\n", len(matched))

	display(out, matched, opts.location, rule)

	if len(matched) == 0 {
		return 1
	}
	return 0
}

func display(out io.Writer, users []soundcloud.User, location, rule string) {
	if len(users) == 0 {
		fmt.Fprintf(out, "\n%s No users found in '%s'\n\n", failStyle.Render("x"), location)
		return
	}

	fmt.Fprintf(out, "\n%s\n", rule)
	fmt.Fprintf(out, "%s Found %d users in '%s':\n", okStyle.Render("ok"), len(users), location)
	fmt.Fprintf(out, "%s\n\n", rule)

	for i, u := range users {
		fmt.Fprintf(out, "%d. %s\n", i+1, nameStyle.Render(orNA(u.Permalink)))
		if u.FullName != "" {
			fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("Name:"), u.FullName)
		}
		fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("Location:"), orNA(u.Location()))
		fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("Followers:"), thousands(u.FollowersCount))
		fmt.Fprintf(out, "   %s %s\n\n", labelStyle.Render("URL:"), orNA(u.PermalinkURL))
	}
}

// ruleWidth is the terminal width capped at 80, or 80 when stdout is not a
// terminal.
func ruleWidth() int {
	const maxWidth = 80
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return maxWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 || w > maxWidth {
		return maxWidth
	}
	return w
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// thousands formats n with comma separators.
func thousands(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
