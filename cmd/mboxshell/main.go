// Copyright 2022 Daniel Erat.
// All rights reserved.

// Command mboxshell lists and queries MBOX archives, single .eml files,
// and directories of .eml files from the command line, driving the
// mboxshell package's Core API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcarrero/mboxshell"
	"github.com/dcarrero/mboxshell/index"
	"github.com/dcarrero/mboxshell/mlog"
)

// Exit codes.
const (
	exitOK             = 0
	exitBadArgs        = 2
	exitNotFound       = 3
	exitUnreadable     = 4
	exitIndexUndecided = 5
	exitCancelled      = 6
	exitIOError        = 7
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flag]... <archive> [query]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Lists or queries an MBOX archive, .eml file, or directory of .eml files.\n\n")
		flag.PrintDefaults()
	}
	rebuild := flag.Bool("rebuild", false, "Force a fresh index build before listing or querying")
	sortKey := flag.String("sort", "id", "Sort key for listing: id, date, subject, from")
	desc := flag.Bool("desc", false, "Sort in descending order")
	verbose := flag.Bool("verbose", false, "Log progress to stderr")
	timeout := flag.Duration("timeout", 0, "Abort after this long (0 disables the deadline)")
	flag.Parse()

	os.Exit(run(flag.Args(), *rebuild, *sortKey, *desc, *verbose, *timeout))
}

func run(args []string, rebuild bool, sortKey string, desc, verbose bool, timeout time.Duration) int {
	if len(args) < 1 {
		flag.Usage()
		return exitBadArgs
	}
	archivePath, queryString := args[0], ""
	if len(args) > 1 {
		queryString = args[1]
	}

	if _, err := os.Stat(archivePath); os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "Archive not found:", err)
		return exitNotFound
	}

	log := mlog.Discard()
	if verbose {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		log = mlog.New(l)
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	handle, err := mboxshell.OpenArchive(ctx, archivePath, mboxshell.OpenOptions{Logger: log})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed opening archive:", err)
		return exitUnreadable
	}
	defer handle.Close()

	if rebuild {
		if err := handle.Rebuild(ctx, nil); err != nil {
			fmt.Fprintln(os.Stderr, "Failed rebuilding index:", err)
			return exitIOError
		}
	}

	var recs []index.Record
	if queryString != "" {
		matches, err := handle.Query(ctx, queryString)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(os.Stderr, "Query cancelled:", err)
				return exitCancelled
			}
			fmt.Fprintln(os.Stderr, "Bad query:", err)
			return exitBadArgs
		}
		recs = matches
	} else {
		recs = handle.ListRecords(sortKey, direction(desc))
	}

	for _, r := range recs {
		printRecord(r)
	}
	return exitOK
}

func printRecord(r index.Record) {
	date := "?"
	if r.HasDate {
		date = r.Date.Format("2006-01-02 15:04")
	}
	fmt.Printf("%d\t%s\t%-30s\t%s\n", r.ID, date, truncate(r.FromAddr, 30), r.Subject)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func direction(desc bool) string {
	if desc {
		return "desc"
	}
	return "asc"
}
