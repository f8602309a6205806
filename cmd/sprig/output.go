package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"sprig/internal/commit"
	"sprig/internal/digest"
	"sprig/internal/repo"
)

const logDateFormat = "Mon Jan 2 15:04:05 2006 -0700"

func printBranches(out io.Writer, current string, names []string) {
	green := color.New(color.FgGreen).SprintFunc()
	for _, n := range names {
		if n == current {
			fmt.Fprintf(out, "*%s\n", green(n))
			continue
		}
		fmt.Fprintln(out, n)
	}
}

func printLog(out io.Writer, commits []*commit.Commit) {
	yellow := color.New(color.FgYellow).SprintFunc()

	for _, c := range commits {
		fmt.Fprintln(out, "===")
		fmt.Fprintf(out, "commit %s\n", yellow(c.Digest))
		if c.IsMerge() {
			fmt.Fprintf(out, "Merge: %s %s\n", digest.Short(c.Parents[0]), digest.Short(c.Parents[1]))
		}
		if c.Author != "" {
			fmt.Fprintf(out, "Author: %s\n", c.Author)
		}
		fmt.Fprintf(out, "Date: %s\n", c.Timestamp.Local().Format(logDateFormat))
		fmt.Fprintln(out, c.Message)
		fmt.Fprintln(out)
	}
}

func printStatus(out io.Writer, st *repo.Status) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	blue := color.New(color.FgBlue).SprintFunc()

	fmt.Fprintln(out, "=== Branches ===")
	for _, b := range st.Branches {
		if b == st.Branch {
			fmt.Fprintf(out, "*%s\n", green(b))
		} else {
			fmt.Fprintln(out, b)
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "=== Staged Files ===")
	for _, n := range st.Staged {
		fmt.Fprintln(out, green(n))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "=== Removed Files ===")
	for _, n := range st.Removed {
		fmt.Fprintln(out, red(n))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "=== Modifications Not Staged For Commit ===")
	for _, m := range st.Modified {
		if m.Deleted {
			fmt.Fprintf(out, "%s (deleted)\n", red(m.Name))
		} else {
			fmt.Fprintf(out, "%s (modified)\n", yellow(m.Name))
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "=== Untracked Files ===")
	for _, n := range st.Untracked {
		fmt.Fprintln(out, blue(n))
	}
	fmt.Fprintln(out)
}

func printDiff(out io.Writer, d repo.FileDiff) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)
	bold := color.New(color.Bold)

	bold.Fprintf(out, "--- a/%s\n", d.Name)
	bold.Fprintf(out, "+++ b/%s\n", d.Name)

	for _, line := range strings.Split(strings.TrimSuffix(d.Result.Format(), "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			header.Fprintln(out, line)
		case strings.HasPrefix(line, "+"):
			added.Fprintln(out, line)
		case strings.HasPrefix(line, "-"):
			removed.Fprintln(out, line)
		default:
			fmt.Fprintln(out, line)
		}
	}
}
