package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/ewilliams-labs/songtagger/internal/app"
	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/core/graph"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func paint(s, color string, colorize bool) string {
	if !colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

func statusColor(s graph.Status) string {
	switch s {
	case graph.StatusComputed:
		return ansiGreen
	case graph.StatusFailed:
		return ansiRed
	case graph.StatusSkipped, graph.StatusCanceled:
		return ansiYellow
	default:
		return ""
	}
}

func keyOf(g *graph.Graph, id graph.ID) string {
	n, ok := g.Node(id)
	if !ok {
		return strconv.Itoa(int(id))
	}
	return n.Binding().Key()
}

// renderGraphStatus lists every node with its validity and inputs.
func renderGraphStatus(g *graph.Graph, colorize bool) string {
	var rows [][]string
	for _, id := range g.Nodes() {
		n, _ := g.Node(id)
		var inputs []string
		for _, in := range g.Inputs(id) {
			inputs = append(inputs, keyOf(g, in))
		}
		valid := paint("yes", ansiGreen, colorize)
		if !g.IsValid(id) {
			valid = paint("no", ansiRed, colorize)
		}
		rows = append(rows, []string{keyOf(g, id), n.Kind(), valid, strings.Join(inputs, ", ")})
	}
	table := renderTable([]string{"Node", "Kind", "Valid", "Inputs"}, rows, nil)
	runnable := paint("runnable", ansiGreen, colorize)
	if !g.Runnable() {
		runnable = paint("not runnable", ansiRed, colorize)
	}
	return table + "\n" + runnable
}

// renderTracks lists the tracks of one terminal.
func renderTracks(title string, tracks []domain.Track, colorize bool) string {
	header := paint(fmt.Sprintf("== %s (%d tracks) ==", title, len(tracks)), ansiBlue, colorize)
	if tracks == nil {
		return header + "\n" + paint("unset", ansiYellow, colorize)
	}
	rows := make([][]string, 0, len(tracks))
	for i, t := range tracks {
		year := ""
		if y, ok := t.Album.ReleaseYear(); ok {
			year = strconv.Itoa(y)
		}
		dance := ""
		if p, ok := t.AudioFeatures.DanceabilityPercent(); ok {
			dance = strconv.Itoa(p)
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), t.Name, t.ArtistNames(), year, dance})
	}
	return header + "\n" + renderTable(
		[]string{"#", "Track", "Artists", "Year", "Dance"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
	)
}

// renderRun prints terminal outputs followed by node statuses and
// diagnostics.
func renderRun(w io.Writer, g *graph.Graph, res *graph.RunResult) {
	colorize := shouldColorize(w)

	terminals := make([]graph.ID, 0, len(res.Outputs))
	for id := range res.Outputs {
		terminals = append(terminals, id)
	}
	sort.Slice(terminals, func(i, j int) bool { return terminals[i] < terminals[j] })
	for _, id := range terminals {
		fmt.Fprintln(w, renderTracks(keyOf(g, id), res.Outputs[id], colorize))
	}

	ids := make([]graph.ID, 0, len(res.Status))
	for id := range res.Status {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var rows [][]string
	for _, id := range ids {
		st := res.Status[id]
		rows = append(rows, []string{keyOf(g, id), paint(st.String(), statusColor(st), colorize)})
	}
	fmt.Fprintln(w, renderTable([]string{"Node", "Status"}, rows, nil))

	for _, d := range res.Diagnostics {
		fmt.Fprintln(w, paint(fmt.Sprintf("warning: %s: %s", keyOf(g, d.Node), d.Message), ansiYellow, colorize))
	}
	for _, err := range res.Failures {
		fmt.Fprintln(w, paint("error: "+err.Error(), ansiRed, colorize))
	}
}

func runAndRender(ctx context.Context, cc *commandContext, a *app.App, g *graph.Graph, opts graph.RunOptions) error {
	tags, err := a.Store.Tags(ctx)
	if err != nil {
		return err
	}
	g.SetKnownTags(tags)

	res, err := a.Driver.Run(ctx, g, opts)
	if res != nil {
		renderRun(cc.out, g, res)
	}
	if err != nil {
		return err
	}
	return res.Err()
}
