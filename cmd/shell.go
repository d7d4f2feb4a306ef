package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pable/codstats/internal/filter"
	"github.com/pable/codstats/internal/model"
	"github.com/pable/codstats/internal/report"
	"github.com/pable/codstats/internal/session"
	"github.com/pable/codstats/internal/storage"
)

var (
	cPrompt   = color.New(color.FgCyan, color.Bold)
	cMuted    = color.New(color.Faint)
	cError    = color.New(color.FgRed, color.Bold)
	cWarn     = color.New(color.FgYellow)
	cHeader   = color.New(color.FgCyan, color.Bold)
	cCmd      = color.New(color.FgYellow, color.Bold)
	cGreeting = color.New(color.Bold)
)

var shellCmd = &cobra.Command{
	Use:   "shell [file]",
	Short: "Start an interactive REPL session",
	Long:  "Open a persistent session: load exports, adjust the selection and rerun queries. Type 'help' for available commands.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	sess, err := newSession(db)
	if err != nil {
		return err
	}
	sh := &shell{ctx: cmd.Context(), sess: sess, db: db, out: os.Stdout, errOut: os.Stderr}

	cGreeting.Println("codstats shell")
	cMuted.Println("type 'help' or 'exit'")
	fmt.Println()

	if len(args) == 1 {
		sh.exec("load " + args[0])
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		cPrompt.Print("codstats")
		cMuted.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		if quit := sh.exec(scanner.Text()); quit {
			return nil
		}
	}
	return scanner.Err()
}

// shell is the REPL state: one session and the current selection.
type shell struct {
	ctx    context.Context
	sess   *session.Session
	db     *storage.DB
	spec   model.FilterSpec
	out    io.Writer
	errOut io.Writer
}

// exec runs one input line and reports whether the shell should exit.
func (sh *shell) exec(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "exit", "quit":
		return true
	case "help":
		sh.help()
	case "load":
		if rest == "" {
			cError.Fprintln(sh.errOut, "usage: load <file>")
			return false
		}
		sh.load(rest)
	case "select":
		sh.selectValues(rest)
	case "clear":
		sh.spec = sh.sess.DefaultFilter()
		cMuted.Fprintln(sh.out, "selection reset to everything")
	case "from", "to":
		sh.bound(name, rest)
	case "run":
		sh.run(rest == "matches")
	case "stats":
		sh.stats()
	case "sql":
		sh.sql(rest)
	default:
		cWarn.Fprintf(sh.errOut, "unknown command %q, type 'help'\n", name)
	}
	return false
}

func (sh *shell) help() {
	fmt.Fprintln(sh.out)
	type entry struct{ cmd, desc string }
	rows := []entry{
		{"load <file>", "load an export, replacing the current dataset"},
		{"select <operators|game-types|maps> <a, b|all|none>", "set one category of the selection"},
		{"from <date> / to <date>", "set the date window (YYYY-MM-DD[ HH:MM])"},
		{"clear", "select everything again"},
		{"run [matches]", "query the selection and print statistics"},
		{"stats", "show the dataset and current selection"},
		{"sql <query>", "run raw SQL against the loaded matches"},
		{"help", "show this message"},
		{"exit / quit", "close the session"},
	}
	for _, r := range rows {
		fmt.Fprint(sh.out, "  ")
		cCmd.Fprintf(sh.out, "%-52s", r.cmd)
		fmt.Fprintln(sh.out, r.desc)
	}
	fmt.Fprintln(sh.out)
}

func (sh *shell) load(path string) {
	out, err := loadFile(sh.ctx, sh.sess, path, "")
	if err != nil {
		cError.Fprintf(sh.errOut, "error: %v\n", err)
		return
	}
	sh.spec = sh.sess.DefaultFilter()
	report.PrintLoadOutcome(sh.out, out)
}

func (sh *shell) selectValues(rest string) {
	category, values, _ := strings.Cut(rest, " ")
	if sh.sess.Dataset() == nil {
		cError.Fprintln(sh.errOut, "no dataset loaded")
		return
	}
	all := sh.sess.DefaultFilter()

	var dst *[]string
	var avail []string
	switch category {
	case "operators", "operator":
		dst, avail = &sh.spec.Operators, all.Operators
	case "game-types", "game-type":
		dst, avail = &sh.spec.GameTypes, all.GameTypes
	case "maps", "map":
		dst, avail = &sh.spec.Maps, all.Maps
	default:
		cError.Fprintln(sh.errOut, "usage: select <operators|game-types|maps> <a, b|all|none>")
		return
	}

	switch values = strings.TrimSpace(values); values {
	case "all":
		*dst = avail
	case "none", "":
		*dst = nil
	default:
		var picked []string
		for _, v := range strings.Split(values, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if !contains(avail, v) {
				cWarn.Fprintf(sh.errOut, "%q is not in the dataset\n", v)
			}
			picked = append(picked, v)
		}
		*dst = picked
	}
	cMuted.Fprintf(sh.out, "%s: %s\n", category, describe(*dst))
}

func (sh *shell) bound(which, value string) {
	t, err := filter.ParseBound(value, which == "to")
	if err != nil {
		cError.Fprintf(sh.errOut, "error: %v\n", err)
		return
	}
	if which == "to" {
		sh.spec.End = t
	} else {
		sh.spec.Start = t
	}
}

func (sh *shell) run(matches bool) {
	res, err := sh.sess.Query(sh.ctx, sh.spec)
	switch {
	case errors.Is(err, model.ErrEmptyResult):
		cWarn.Fprintln(sh.out, err)
	case err != nil:
		cError.Fprintf(sh.errOut, "error: %v\n", err)
	default:
		report.PrintQueryResult(sh.out, res, matches)
	}
}

func (sh *shell) stats() {
	out, err := sh.sess.Outcome()
	if err != nil {
		cError.Fprintf(sh.errOut, "error: %v\n", err)
		return
	}
	report.PrintLoadOutcome(sh.out, out)
	fmt.Fprintln(sh.out)
	cHeader.Fprintln(sh.out, "Selection")
	fmt.Fprintf(sh.out, "  operators:  %s\n", describe(sh.spec.Operators))
	fmt.Fprintf(sh.out, "  game types: %s\n", describe(sh.spec.GameTypes))
	fmt.Fprintf(sh.out, "  maps:       %s\n", describe(sh.spec.Maps))
	fmt.Fprintf(sh.out, "  window:     %s .. %s\n", sh.spec.Start.Format("2006-01-02 15:04"), sh.spec.End.Format("2006-01-02 15:04"))
	sh.mirrorStats()
}

// mirrorStats prints what the SQLite mirror holds for the loaded dataset.
func (sh *shell) mirrorStats() {
	id, err := sh.db.DatasetID(sh.ctx)
	if err != nil {
		cError.Fprintf(sh.errOut, "error: %v\n", err)
		return
	}
	n, err := sh.db.MatchCount(sh.ctx)
	if err != nil {
		cError.Fprintf(sh.errOut, "error: %v\n", err)
		return
	}
	totals, err := sh.db.MapTotals(sh.ctx)
	if err != nil {
		cError.Fprintf(sh.errOut, "error: %v\n", err)
		return
	}
	fmt.Fprintln(sh.out)
	cHeader.Fprintln(sh.out, "SQL mirror")
	fmt.Fprintf(sh.out, "  dataset %s, %d matches\n", id, n)
	rows := make([][]string, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []string{t.Map, strconv.Itoa(t.Matches), strconv.Itoa(t.Kills), strconv.Itoa(t.Deaths)})
	}
	report.PrintRows(sh.out, []string{"Map", "Matches", "Kills", "Deaths"}, rows)
}

func (sh *shell) sql(query string) {
	if query == "" {
		cError.Fprintln(sh.errOut, "usage: sql <query>")
		return
	}
	cols, rows, err := sh.db.QueryRaw(sh.ctx, query)
	if err != nil {
		cError.Fprintf(sh.errOut, "error: %v\n", err)
		return
	}
	report.PrintRows(sh.out, cols, rows)
}

func describe(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
