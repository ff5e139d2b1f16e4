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
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"eventflow/internal/app"
)

const stopTimeout = 5 * time.Second

var errQuit = errors.New("quit")

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./eventflow.yaml", "path to config (yaml or json)")
	flag.Parse()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var (
		reasonMu sync.Mutex
		reason   = app.StopUnknown
	)
	setReason := func(r app.StopReason) {
		reasonMu.Lock()
		if reason == app.StopUnknown {
			reason = r
		}
		reasonMu.Unlock()
	}

	// stdin reads can't be canceled, so the reader lives outside the group.
	input := readLines(os.Stdin)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case s := <-sigCh:
			if s == syscall.SIGTERM {
				setReason(app.StopSIGTERM)
			} else {
				setReason(app.StopSIGINT)
			}
			return errQuit
		}
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-a.Done():
			setReason(app.StopFatalError)
			return a.Err()
		}
	})
	g.Go(func() error {
		err := commandLoop(gctx, a, input, os.Stdout)
		switch {
		case errors.Is(err, io.EOF):
			setReason(app.StopInputEOF)
			return errQuit
		case errors.Is(err, errQuit):
			setReason(app.StopQuit)
		}
		return err
	})

	runErr := g.Wait()

	reasonMu.Lock()
	r := reason
	reasonMu.Unlock()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	_ = a.Stop(stopCtx, r)

	if runErr != nil && !errors.Is(runErr, errQuit) && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintln(os.Stderr, "fatal:", runErr)
		os.Exit(1)
	}
}

func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

const help = `commands:
  <enter>, c    click (dispatch the next count after the producer delay)
  p             print panels
  h [panel] [n] print journal history
  q             quit
`

// commandLoop handles console gestures until quit, EOF (io.EOF) or ctx end.
func commandLoop(ctx context.Context, a *app.App, input <-chan string, out io.Writer) error {
	fmt.Fprint(out, help)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-input:
			if !ok {
				return io.EOF
			}
			if err := runCommand(ctx, a, strings.Fields(line), out); err != nil {
				return err
			}
		}
	}
}

func runCommand(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	cmd := ""
	if len(args) > 0 {
		cmd = strings.ToLower(args[0])
	}
	switch cmd {
	case "", "c", "click":
		n, err := a.Click()
		if err != nil {
			fmt.Fprintln(out, "click failed:", err)
			return nil
		}
		fmt.Fprintf(out, "clicked: count %d scheduled\n", n)
	case "p", "print":
		fmt.Fprint(out, a.Render())
	case "h", "history":
		panel, limit := "", 10
		for _, arg := range args[1:] {
			if n, err := strconv.Atoi(arg); err == nil {
				limit = n
			} else {
				panel = arg
			}
		}
		hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		entries, err := a.History(hctx, panel, limit)
		if err != nil {
			fmt.Fprintln(out, "history unavailable:", err)
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%s  %-16s %4d  #%d  %s\n",
				e.At.Format(time.RFC3339), e.Panel, e.Value, e.Seq, e.Session)
		}
	case "q", "quit", "exit":
		return errQuit
	case "?", "help":
		fmt.Fprint(out, help)
	default:
		fmt.Fprintf(out, "unknown command %q\n", cmd)
	}
	return nil
}
