package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/n2code/virusbegone"
	"github.com/pborman/getopt"
)

var errExit = errors.New("exit requested")

type shellCommand struct {
	parameters string
	summary    string
	run        func(sh *shell, set *getopt.Set, args []string) error
}

type shell struct {
	ctx      context.Context
	api      virusbegone.VirusBeGone
	out      io.Writer
	lines    <-chan string
	session  *virusbegone.MonitorSession
	unsched  func()
	commands map[string]shellCommand
}

// runShell reads commands line by line from in until it is exhausted, "exit" is entered or ctx ends.
// Questions asked while a command runs are answered by the next line, in is never read elsewhere.
func runShell(ctx context.Context, api virusbegone.VirusBeGone, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	sh := &shell{ctx: ctx, api: api, out: out, lines: lines, commands: shellCommands()}
	defer sh.shutdown()

	fmt.Fprint(out, "virusbegone shell, type \"help\" for commands\n> ")
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, open := <-lines:
			if !open {
				fmt.Fprintln(out)
				return nil
			}
			if err := sh.execute(line); err != nil {
				if errors.Is(err, errExit) {
					return nil
				}
				fmt.Fprintf(out, "Error: %s\n", err)
			}
			fmt.Fprint(out, "> ")
		}
	}
}

func (sh *shell) shutdown() {
	if sh.unsched != nil {
		sh.unsched()
	}
	if sh.session != nil {
		sh.session.Stop()
	}
}

// confirm asks on the shell's own output and takes the next input line as answer,
// either an option or its highlighted letter. An exhausted input or ctx cancels with "".
func (sh *shell) confirm(request string, options []string, cleanup bool) string {
	letterToChoice, display := shortcuts(options, func(letter rune) string { return fmt.Sprintf("[%c]", letter) })
	for {
		fmt.Fprintf(sh.out, "%s (%s): ", request, strings.Join(display, " / "))
		select {
		case <-sh.ctx.Done():
			fmt.Fprintln(sh.out, "<CANCELLED>")
			return ""
		case line, open := <-sh.lines:
			if !open {
				fmt.Fprintln(sh.out, "<CANCELLED>")
				return ""
			}
			answer := strings.TrimSpace(line)
			for _, option := range options {
				if strings.EqualFold(answer, option) {
					return option
				}
			}
			if letters := []rune(answer); len(letters) == 1 {
				if choice, found := letterToChoice[letters[0]]; found {
					return choice
				}
			}
		}
	}
}

func (sh *shell) execute(line string) error {
	words, err := splitWords(line)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return nil
	}
	name := words[0]
	command, known := sh.commands[name]
	if !known {
		return fmt.Errorf("unknown command %q", name)
	}
	set := getopt.New()
	set.SetProgram(name)
	set.SetParameters(command.parameters)
	return command.run(sh, set, words[1:])
}

// parse evaluates the options defined on set and yields the remaining arguments.
func parse(set *getopt.Set, name string, args []string) ([]string, error) {
	if err := set.Getopt(append([]string{name}, args...), nil); err != nil {
		return nil, err
	}
	return set.Args(), nil
}

func shellCommands() map[string]shellCommand {
	return map[string]shellCommand{
		"scan": {"--full [PATH] | --quick | --custom PATH [MAXFILES]", "scan and quarantine matches", func(sh *shell, set *getopt.Set, args []string) error {
			full := set.BoolLong("full", 'f', "everything below PATH or the default root")
			quick := set.BoolLong("quick", 'q', "first files of the default root")
			custom := set.BoolLong("custom", 'c', "first MAXFILES files below PATH")
			rest, err := parse(set, "scan", args)
			if err != nil {
				return err
			}
			request := virusbegone.ScanRequest{}
			switch {
			case *full && !*quick && !*custom:
				request.Mode = virusbegone.FullScan
				if len(rest) > 1 {
					return errors.New("full scan accepts at most one PATH")
				}
			case *quick && !*full && !*custom:
				request.Mode = virusbegone.QuickScan
				if len(rest) > 0 {
					return errors.New("quick scan accepts no arguments")
				}
			case *custom && !*full && !*quick:
				request.Mode = virusbegone.CustomScan
				if len(rest) < 1 || len(rest) > 2 {
					return errors.New("custom scan requires PATH and optionally MAXFILES")
				}
				if len(rest) == 2 {
					limit, err := strconv.Atoi(rest[1])
					if err != nil || limit <= 0 {
						return fmt.Errorf("MAXFILES must be a positive number, got %q", rest[1])
					}
					request.MaxFiles = limit
				}
			default:
				return errors.New("exactly one of --full, --quick and --custom is required")
			}
			if len(rest) > 0 {
				request.Root = rest[0]
			}
			_, err = sh.api.Scan(sh.ctx, request)
			return err
		}},
		"quarantine": {"PATH...", "quarantine files unconditionally", func(sh *shell, set *getopt.Set, args []string) error {
			rest, err := parse(set, "quarantine", args)
			if err != nil {
				return err
			}
			if len(rest) == 0 {
				return errors.New("no targets given")
			}
			for _, target := range rest {
				if _, err := sh.api.Quarantine(target); err != nil {
					return err
				}
			}
			return nil
		}},
		"list": {"[--tree]", "show quarantine records", func(sh *shell, set *getopt.Set, args []string) error {
			tree := set.BoolLong("tree", 't', "arrange by original location")
			if _, err := parse(set, "list", args); err != nil {
				return err
			}
			return sh.api.PrintQuarantine(*tree)
		}},
		"restore": {"[--overwrite] NAME", "move a quarantined file back", func(sh *shell, set *getopt.Set, args []string) error {
			overwrite := set.BoolLong("overwrite", 'o', "replace whatever occupies the original location")
			rest, err := parse(set, "restore", args)
			if err != nil {
				return err
			}
			if len(rest) != 1 {
				return errors.New("exactly one NAME expected")
			}
			_, err = sh.api.Restore(rest[0], *overwrite)
			if errors.Is(err, virusbegone.ErrConflict) && !*overwrite {
				const replace, keep = "Overwrite", "Keep"
				if sh.confirm("Original location is occupied. Overwrite?", []string{replace, keep}, false) == replace {
					_, err = sh.api.Restore(rest[0], true)
				}
			}
			return err
		}},
		"delete": {"NAME... | --all", "permanently delete quarantined files", func(sh *shell, set *getopt.Set, args []string) error {
			all := set.BoolLong("all", 'a', "delete every quarantined file")
			rest, err := parse(set, "delete", args)
			if err != nil {
				return err
			}
			if *all {
				if len(rest) > 0 {
					return errors.New("no NAMEs must be given together with --all")
				}
				_, _, err = sh.api.DeleteAll(sh.confirm)
				return err
			}
			if len(rest) == 0 {
				return errors.New("no targets given")
			}
			for _, name := range rest {
				if err := sh.api.Delete(name); err != nil {
					return err
				}
			}
			return nil
		}},
		"reload": {"", "reload signatures", func(sh *shell, set *getopt.Set, args []string) error {
			if _, err := parse(set, "reload", args); err != nil {
				return err
			}
			stats := sh.api.ReloadSignatures()
			fmt.Fprintf(sh.out, "%d signatures from %d documents\n", stats.Signatures, stats.Files)
			return nil
		}},
		"schedule": {"SPEC | off", "reload signatures periodically", func(sh *shell, set *getopt.Set, args []string) error {
			rest, err := parse(set, "schedule", args)
			if err != nil {
				return err
			}
			if len(rest) == 0 {
				return errors.New("schedule missing")
			}
			if sh.unsched != nil {
				sh.unsched()
				sh.unsched = nil
			}
			spec := strings.Join(rest, " ")
			if spec == "off" {
				return nil
			}
			sh.unsched, err = sh.api.ScheduleSignatureReload(spec)
			return err
		}},
		"monitor": {"start [DIR] | stop", "real-time monitoring in the background", func(sh *shell, set *getopt.Set, args []string) error {
			rest, err := parse(set, "monitor", args)
			if err != nil {
				return err
			}
			if len(rest) == 0 {
				return errors.New("start or stop expected")
			}
			switch rest[0] {
			case "start":
				if sh.session != nil {
					select {
					case <-sh.session.Done():
					default:
						return fmt.Errorf("already monitoring %s", sh.session.Root)
					}
				}
				root := ""
				if len(rest) > 1 {
					root = rest[1]
				}
				sh.session, err = sh.api.Monitor(sh.ctx, root)
				return err
			case "stop":
				if sh.session == nil {
					return errors.New("not monitoring")
				}
				summary, err := sh.session.Stop()
				sh.session = nil
				fmt.Fprintf(sh.out, "%d events, %d quarantined, %d dropped\n", summary.Events, len(summary.Infected), summary.Dropped)
				return err
			}
			return fmt.Errorf("unknown monitor command %q", rest[0])
		}},
		"verify": {"", "check quarantine consistency", func(sh *shell, set *getopt.Set, args []string) error {
			if _, err := parse(set, "verify", args); err != nil {
				return err
			}
			_, err := sh.api.VerifyQuarantine()
			return err
		}},
		"recover": {"", "settle interrupted quarantine operations", func(sh *shell, set *getopt.Set, args []string) error {
			if _, err := parse(set, "recover", args); err != nil {
				return err
			}
			_, err := sh.api.RecoverQuarantine()
			return err
		}},
		"help": {"", "show this overview", func(sh *shell, set *getopt.Set, args []string) error {
			var names []string
			for name := range sh.commands {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				command := sh.commands[name]
				fmt.Fprintf(sh.out, "  %-10s %-50s %s\n", name, command.parameters, command.summary)
			}
			return nil
		}},
		"exit": {"", "leave the shell", func(*shell, *getopt.Set, []string) error {
			return errExit
		}},
	}
}

// splitWords separates a command line at spaces, double quotes group words.
func splitWords(line string) (words []string, err error) {
	var word strings.Builder
	inWord, quoted := false, false
	for _, char := range line {
		switch {
		case char == '"':
			quoted = !quoted
			inWord = true
		case !quoted && (char == ' ' || char == '\t'):
			if inWord {
				words = append(words, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(char)
			inWord = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if inWord {
		words = append(words, word.String())
	}
	return
}
