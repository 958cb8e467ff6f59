package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	goerrors "github.com/go-errors/errors"
	"github.com/n2code/virusbegone"
	"github.com/n2code/virusbegone/cmd/virusbegone/flags"
	"github.com/n2code/virusbegone/internal/config"
	"golang.org/x/term"
)

type CliRequest struct {
	verbose     bool
	quiet       bool
	plain       bool
	configFile  string
	action      string
	actionFlags map[string]interface{}
	actionArgs  []string
}

func parseFlags(args []string, out io.Writer, errOut io.Writer) (request *CliRequest, exitCode int) {
	globalFlags := flag.NewFlagSet("", flag.ContinueOnError)
	globalFlags.SetOutput(errOut)
	globalFlags.Usage = func() {
		globalFlags.SetOutput(out)
		io.WriteString(out, `
Usage:
   virusbegone [-v|-q] [-p] [-config FILE] [-h] <ACTION> [FLAG] [TARGET]

 ACTIONs:  scan  quarantine  list  restore  delete  reload  monitor  verify  recover  shell

`)
		globalFlags.PrintDefaults()
		io.WriteString(out, `
 FLAG(s) and TARGET(s) are action-specific.
 You can read the help on any action:
    virusbegone <ACTION> -h

`)
	}

	request = &CliRequest{}
	var generalHelpRequested bool
	globalFlags.BoolVar(&request.verbose, flags.Verbose, false, "Output more details on what is done, e.g. every file (verbose mode)")
	globalFlags.BoolVar(&request.quiet, flags.Quiet, false, "Output as little as possible, i.e. only requested information (quiet mode)")
	globalFlags.BoolVar(&request.plain, flags.Plain, false, "Plain output without colors and interactive prompts")
	globalFlags.BoolVar(&generalHelpRequested, flags.Help, false, "Display general usage help")
	globalFlags.StringVar(&request.configFile, flags.Config, "", "Settings file (default: "+config.FileName+" next to the executable)")

	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(errOut, "%s\nUsage help: virusbegone -h\n", err)
			exitCode = 2
			request = nil
		}
	}()

	if parseErr := globalFlags.Parse(args); parseErr != nil {
		if errors.Is(parseErr, flag.ErrHelp) {
			return nil, 0
		}
		return nil, 2 //flag package already reported the problem
	}

	if generalHelpRequested {
		globalFlags.Usage()
		return nil, 0
	}
	if globalFlags.NArg() == 0 {
		err = errors.New("No arguments given!")
		return
	}
	if request.verbose && request.quiet {
		err = errors.New("Quiet mode and verbose mode are mutually exclusive!")
		return
	}

	request.action = globalFlags.Arg(0)
	request.actionFlags = make(map[string]interface{})
	request.actionArgs = globalFlags.Args()[1:]
	actionDescriptionIndent := "  "
	actionDescription := actionDescriptionIndent
	flagSpecification := ""
	argumentSpecification := ""

	actionParams := flag.NewFlagSet(request.action+" action", flag.ContinueOnError)
	actionParams.SetOutput(errOut)
	actionParams.Usage = func() {
		actionParams.SetOutput(out)
		fmt.Fprintf(out, `
Usage of %s action:
   virusbegone [MODE] %s%s%s

%s
`, request.action, request.action, flagSpecification, argumentSpecification, actionDescription)
		if len(flagSpecification) > 0 {
			fmt.Fprint(out, `
 Available flags:
`)
		}
		actionParams.PrintDefaults()
		fmt.Fprintf(out, `
 Global MODE documentation can be shown by:
    virusbegone -h

`)
	}
	parseActionParams := func() bool {
		if parseErr := actionParams.Parse(request.actionArgs); parseErr != nil {
			if errors.Is(parseErr, flag.ErrHelp) {
				exitCode = 0
			} else {
				exitCode = 2
			}
			request = nil
			return false
		}
		request.actionArgs = actionParams.Args()
		return true
	}

	switch request.action {
	case "scan":
		argumentSpecification = " full [PATH] | quick | custom PATH [MAXFILES]"
		actionDescription += "Hash files and quarantine every file matching a known signature.\n" +
			actionDescriptionIndent + "A full scan covers everything below PATH (default root if omitted),\n" +
			actionDescriptionIndent + "a quick scan the first files of the default root, and a custom scan\n" +
			actionDescriptionIndent + "the first MAXFILES files below PATH (configured limit if omitted)."
		if !parseActionParams() {
			return
		}
		if len(request.actionArgs) == 0 {
			err = errors.New("scan mode missing (full, quick or custom)")
			return
		}
		mode, modeErr := virusbegone.ParseScanMode(request.actionArgs[0])
		if modeErr != nil {
			err = modeErr
			return
		}
		switch mode {
		case virusbegone.FullScan:
			if len(request.actionArgs) > 2 {
				err = errors.New("full scan accepts at most one PATH")
			}
		case virusbegone.QuickScan:
			if len(request.actionArgs) > 1 {
				err = errors.New("quick scan accepts no arguments")
			}
		case virusbegone.CustomScan:
			switch len(request.actionArgs) {
			case 1:
				err = errors.New("custom scan requires a PATH")
			case 2:
			case 3:
				if limit, convErr := strconv.Atoi(request.actionArgs[2]); convErr != nil || limit <= 0 {
					err = fmt.Errorf("MAXFILES must be a positive number, got %q", request.actionArgs[2])
				}
			default:
				err = errors.New("too many arguments")
			}
		}
	case "quarantine":
		argumentSpecification = " FILEPATH..."
		actionDescription += "Move the given file(s) into quarantine regardless of signatures."
		if !parseActionParams() {
			return
		}
		if len(request.actionArgs) == 0 {
			err = errors.New("no targets given")
		}
	case "list", "quarantines":
		flagSpecification = " [-" + flags.ListAsTree + "]"
		actionDescription += "Print all quarantine records."
		request.actionFlags[flags.ListAsTree] = actionParams.Bool(flags.ListAsTree, false, "arrange records by original location")
		if !parseActionParams() {
			return
		}
		if len(request.actionArgs) > 0 {
			err = errors.New("command accepts no arguments, only flags")
		}
		request.action = "list"
	case "restore":
		flagSpecification = " [-" + flags.RestoreOverwriting + "]"
		argumentSpecification = " NAME"
		actionDescription += "Move the quarantined file NAME back to its original location."
		request.actionFlags[flags.RestoreOverwriting] = actionParams.Bool(flags.RestoreOverwriting, false, "replace whatever occupies the original location")
		if !parseActionParams() {
			return
		}
		if len(request.actionArgs) != 1 {
			err = errors.New("bad number of arguments, exactly one expected")
		}
	case "delete":
		flagSpecification = " -" + flags.DeleteAll + " [-" + flags.DeleteWithoutConfirmation + "] |"
		argumentSpecification = " NAME..."
		actionDescription += "Permanently delete quarantined files and their records."
		request.actionFlags[flags.DeleteAll] = actionParams.Bool(flags.DeleteAll, false, "delete every quarantined file")
		request.actionFlags[flags.DeleteWithoutConfirmation] = actionParams.Bool(flags.DeleteWithoutConfirmation, false, "do not ask before deleting everything")
		if !parseActionParams() {
			return
		}
		if *(request.actionFlags[flags.DeleteAll].(*bool)) {
			if len(request.actionArgs) != 0 {
				err = fmt.Errorf(`no NAMEs must be given when using flag "-%s"`, flags.DeleteAll)
			}
		} else if len(request.actionArgs) == 0 {
			err = errors.New("no targets given")
		}
	case "monitor":
		flagSpecification = " [-" + flags.MonitorReloadSchedule + " SCHEDULE]"
		argumentSpecification = " [DIRECTORY]"
		actionDescription += "Watch DIRECTORY (default root if omitted) and inspect every file that\n" +
			actionDescriptionIndent + "is created or written until interrupted."
		request.actionFlags[flags.MonitorReloadSchedule] = actionParams.String(flags.MonitorReloadSchedule, "", "reload signatures periodically, cron spec with seconds or\n"+
			"descriptor like \"@every 10m\" (default: configured schedule)")
		if !parseActionParams() {
			return
		}
		if len(request.actionArgs) > 1 {
			err = errors.New("too many arguments")
		}
	case "reload", "verify", "recover", "shell":
		switch request.action {
		case "reload":
			actionDescription += "Load the signature directory and report problems."
		case "verify":
			actionDescription += "Compare quarantine records with the quarantine directory."
		case "recover":
			actionDescription += "Settle records of interrupted quarantine operations."
		case "shell":
			actionDescription += "Start an interactive session, type \"help\" for commands."
		}
		if !parseActionParams() {
			return
		}
		if len(request.actionArgs) > 0 {
			err = errors.New("command accepts no arguments")
		}
	default:
		err = fmt.Errorf(`unknown action "%s"`, request.action)
	}
	return
}

func (rq *CliRequest) createConfig() (virusbegone.CreateConfig, error) {
	configFile := rq.configFile
	if configFile == "" {
		configFile = filepath.Join(virusbegone.InstallationDir(), config.FileName)
	}
	createConfig, err := virusbegone.ConfigFromFile(configFile)
	if err != nil {
		return createConfig, err
	}
	if rq.verbose {
		createConfig.Verbosity = virusbegone.VerboseMode
	}
	if rq.quiet {
		createConfig.Verbosity = virusbegone.QuietMode
	}
	createConfig.PlainOutput = rq.plain || !term.IsTerminal(int(os.Stdout.Fd()))
	return createConfig, nil
}

func (rq *CliRequest) execute() error {
	createConfig, err := rq.createConfig()
	if err != nil {
		return err
	}
	api, err := virusbegone.New(createConfig)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch rq.action {
	case "scan":
		request := virusbegone.ScanRequest{}
		request.Mode, _ = virusbegone.ParseScanMode(rq.actionArgs[0])
		if len(rq.actionArgs) > 1 {
			request.Root = rq.actionArgs[1]
		}
		if len(rq.actionArgs) > 2 {
			request.MaxFiles, _ = strconv.Atoi(rq.actionArgs[2])
		}
		_, err = api.Scan(ctx, request)
		return err
	case "quarantine":
		for _, target := range rq.actionArgs {
			if _, err := api.Quarantine(target); err != nil {
				return err
			}
		}
	case "list":
		return api.PrintQuarantine(*(rq.actionFlags[flags.ListAsTree].(*bool)))
	case "restore":
		_, err = api.Restore(rq.actionArgs[0], *(rq.actionFlags[flags.RestoreOverwriting].(*bool)))
		return err
	case "delete":
		if *(rq.actionFlags[flags.DeleteAll].(*bool)) {
			confirm := rq.choiceHandler(createConfig.PlainOutput)
			if *(rq.actionFlags[flags.DeleteWithoutConfirmation].(*bool)) {
				confirm = nil
			}
			_, _, err = api.DeleteAll(confirm)
			return err
		}
		for _, target := range rq.actionArgs {
			if err := api.Delete(target); err != nil {
				return err
			}
		}
	case "reload":
		stats := api.ReloadSignatures()
		if !rq.quiet {
			fmt.Fprintf(os.Stdout, "%d signatures from %d documents\n", stats.Signatures, stats.Files)
		}
		if stats.DirMissing {
			return errors.New("signature directory missing")
		}
	case "monitor":
		schedule := *(rq.actionFlags[flags.MonitorReloadSchedule].(*string))
		if schedule == "" {
			schedule = createConfig.ReloadSchedule
		}
		if schedule != "" {
			stopReload, err := api.ScheduleSignatureReload(schedule)
			if err != nil {
				return err
			}
			defer stopReload()
		}
		root := ""
		if len(rq.actionArgs) > 0 {
			root = rq.actionArgs[0]
		}
		session, err := api.Monitor(ctx, root)
		if err != nil {
			return err
		}
		_, err = session.Wait()
		return err
	case "verify":
		health, err := api.VerifyQuarantine()
		if err != nil {
			return err
		}
		if !health.Consistent() {
			return errors.New("quarantine is inconsistent, see above")
		}
	case "recover":
		_, err = api.RecoverQuarantine()
		return err
	case "shell":
		return runShell(ctx, api, os.Stdin, os.Stdout)
	default:
		panic("bad action")
	}
	return nil
}

func (rq *CliRequest) choiceHandler(plain bool) virusbegone.RequestChoice {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return AutoChooseDefaultOption(rq.quiet)
	}
	return PromptUser(!plain)
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			if stackErr, ok := r.(*goerrors.Error); ok {
				fmt.Fprintln(os.Stderr, stackErr.ErrorStack())
				os.Exit(3)
			}
			panic(r)
		}
	}()

	rq, rc := parseFlags(os.Args[1:], os.Stdout, os.Stderr)
	if rc != 0 || rq == nil {
		os.Exit(rc)
	}
	if err := rq.execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}
