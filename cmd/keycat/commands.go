package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/starford/keycat/internal"
	"github.com/starford/keycat/internal/markup"
	"github.com/starford/keycat/internal/modal"
	"github.com/starford/keycat/internal/models"
	"github.com/starford/keycat/internal/search"
	"github.com/starford/keycat/internal/session"
	pkgconfig "github.com/starford/keycat/pkg/config"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "keycat",
		Usage: "Keyed catalog of short descriptions with inline link, image and sound tags",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Catalog file (overrides catalog.path)",
				Sources: cli.EnvVars("KEYCAT_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Print every entry in catalog order",
				Action: listEntries,
			},
			{
				Name:      "search",
				Usage:     "Fuzzy search entries",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "field", Usage: "key or description (defaults to search.field)"},
				},
				Action: searchEntries,
			},
			{
				Name:      "show",
				Usage:     "Print one entry with its markup resources",
				ArgsUsage: "<key>",
				Action:    showEntry,
			},
			{
				Name:      "add",
				Usage:     "Add an entry",
				ArgsUsage: "<key> <description>",
				Action:    addEntry,
			},
			{
				Name:      "edit",
				Usage:     "Replace the description of an entry",
				ArgsUsage: "<key> <description>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Usage: "Rename the entry"},
				},
				Action: editEntry,
			},
			{
				Name:      "rm",
				Usage:     "Remove an entry",
				ArgsUsage: "<key>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Skip confirmation"},
				},
				Action: removeEntry,
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the catalog over MCP on stdio",
				Action: serveMCP,
			},
		},
	}
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if f := cmd.String("file"); f != "" {
		cfg.Catalog.Path = f
	}
	return cfg, nil
}

// openSession loads the catalog for a one-shot command. Logs go to stderr so
// stdout carries only command output.
func openSession(cmd *cli.Command) (*session.Session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := internal.NewLogger(cfg.App.LogLevel, os.Stderr)
	sess := session.New(session.WithLogger(logger), session.WithField(cfg.Search.SearchField()))
	if err := sess.Open(cfg.Catalog.Path); err != nil {
		return nil, err
	}
	return sess, nil
}

func out(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func printEntries(w io.Writer, entries []models.Entry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.Key, markup.PlainText(e.Description()))
	}
}

func listEntries(_ context.Context, cmd *cli.Command) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	printEntries(out(cmd), sess.Visible())
	return nil
}

func searchEntries(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("search: query is required")
	}
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	if f := cmd.String("field"); f != "" {
		field, err := search.ParseField(f)
		if err != nil {
			return err
		}
		sess.SetField(field)
	}
	sess.SetQuery(strings.Join(cmd.Args().Slice(), " "))
	printEntries(out(cmd), sess.Visible())
	return nil
}

func showEntry(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("show: exactly one key is required")
	}
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	e, ok := sess.Catalog().FindByKey(cmd.Args().First())
	if !ok {
		return fmt.Errorf("show: no entry with key %q", cmd.Args().First())
	}
	w := out(cmd)
	fmt.Fprintf(w, "id:          %s\n", e.ID)
	fmt.Fprintf(w, "key:         %s\n", e.Key)
	fmt.Fprintf(w, "description: %s\n", e.DescriptionRaw())
	fmt.Fprintf(w, "text:        %s\n", markup.PlainText(e.Description()))
	for _, seg := range markup.Resources(e.Description()) {
		fmt.Fprintf(w, "%-12s %s (%s)\n", seg.Kind.String()+":", seg.Target, seg.Text)
	}
	return nil
}

func addEntry(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 2 {
		return fmt.Errorf("add: key and description are required")
	}
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	key := cmd.Args().Get(0)
	if _, exists := sess.Catalog().FindByKey(key); exists {
		return fmt.Errorf("add: key %q already exists, use edit", key)
	}
	if err := commitEdit(sess, uuid.Nil, key, cmd.Args().Get(1)); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "added %s\n", key)
	return nil
}

func editEntry(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 2 {
		return fmt.Errorf("edit: key and description are required")
	}
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	e, ok := sess.Catalog().FindByKey(cmd.Args().Get(0))
	if !ok {
		return fmt.Errorf("edit: no entry with key %q", cmd.Args().Get(0))
	}
	key := e.Key
	if k := cmd.String("key"); k != "" {
		key = k
	}
	if err := commitEdit(sess, e.ID, key, cmd.Args().Get(1)); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "updated %s\n", key)
	return nil
}

// commitEdit drives the entry editor the way an interactive loop would and
// saves the catalog.
func commitEdit(sess *session.Session, id uuid.UUID, key, description string) error {
	if _, err := sess.OpenEditor(id); err != nil {
		return err
	}
	if err := sess.EditDraft(session.DraftKey, key); err != nil {
		return err
	}
	if err := sess.EditDraft(session.DraftDescription, description); err != nil {
		return err
	}
	if err := sess.Apply(session.CommitDraft{}); err != nil {
		if d, ok := sess.Draft(); ok && len(d.Errors) > 0 {
			return fmt.Errorf("invalid entry: %s", formatFieldErrors(d.Errors))
		}
		return err
	}
	return sess.Apply(session.SaveCatalog{})
}

func formatFieldErrors(errs map[string]string) string {
	var parts []string
	for _, field := range []string{"key", "description"} {
		if msg, ok := errs[field]; ok {
			parts = append(parts, field+": "+msg)
		}
	}
	return strings.Join(parts, "; ")
}

func removeEntry(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("rm: exactly one key is required")
	}
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	e, ok := sess.Catalog().FindByKey(cmd.Args().First())
	if !ok {
		return fmt.Errorf("rm: no entry with key %q", cmd.Args().First())
	}
	if err := sess.Apply(session.DeleteEntry{ID: e.ID}); err != nil {
		return err
	}
	m, ok := sess.Modals().Top()
	if !ok || m.Kind != modal.KindWarning {
		return fmt.Errorf("rm: expected a confirmation prompt")
	}

	w := out(cmd)
	if !cmd.Bool("yes") && !confirm(cmd.Root().Reader, w, m.Title+" "+m.Body) {
		sess.Cancel(m.ID)
		fmt.Fprintln(w, "aborted")
		return nil
	}
	action, ok := sess.Confirm(m.ID)
	if !ok {
		return fmt.Errorf("rm: confirmation carried no action")
	}
	if err := sess.Apply(action); err != nil {
		return err
	}
	if err := sess.Apply(session.SaveCatalog{}); err != nil {
		return err
	}
	fmt.Fprintf(w, "removed %s\n", e.Key)
	return nil
}

func confirm(r io.Reader, w io.Writer, prompt string) bool {
	if r == nil {
		r = os.Stdin
	}
	fmt.Fprintf(w, "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(r).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}
