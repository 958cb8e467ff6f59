package virusbegone

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/n2code/virusbegone/internal/config"
	"github.com/n2code/virusbegone/internal/hashing"
	"github.com/n2code/virusbegone/internal/output"
	"github.com/n2code/virusbegone/internal/quarantine"
	"github.com/n2code/virusbegone/internal/scan"
	"github.com/n2code/virusbegone/internal/signature"
	"github.com/n2code/virusbegone/internal/watch"
	"github.com/robfig/cron"
)

type VerbosityLevel int

const (
	DefaultVerbosity VerbosityLevel = iota //normal level of information, all noteworthy facts without too much noise
	VerboseMode                            //exhaustive information about what is happening, every file
	QuietMode                              //only output errors and information that was explicitly requested (-> Print* functions)
)

// CreateConfig holds the settings of a scanner instance.
// The zero value is a sensible default: signatures and quarantine next to the executable, the whole system as default root.
// Relative directories are resolved against the installation directory.
type CreateConfig struct {
	Verbosity      VerbosityLevel
	PlainOutput    bool //no terminal escape sequences
	SignaturesDir  string
	QuarantineDir  string
	DefaultRoot    string
	QuickLimit     int
	CustomLimit    int
	Workers        int
	EventBuffer    int
	ReloadSchedule string        //cron spec for periodic signature reloads while monitoring, empty for none
	Lockdown       AccessControl //platform mechanism if nil
	Stdout         io.Writer     //os.Stdout if nil
	Stderr         io.Writer     //os.Stderr if nil
}

// ConfigFromFile reads the YAML settings file; a missing file yields the defaults.
// The verbosity and output fields are left for the caller.
func ConfigFromFile(path string) (CreateConfig, error) {
	loaded, err := config.Load(path, InstallationDir())
	if err != nil {
		return CreateConfig{}, newCommandError("configuration error", err)
	}
	return CreateConfig{
		SignaturesDir:  loaded.SignaturesDir,
		QuarantineDir:  loaded.QuarantineDir,
		DefaultRoot:    loaded.DefaultRoot,
		QuickLimit:     loaded.QuickLimit,
		CustomLimit:    loaded.CustomLimit,
		Workers:        loaded.Workers,
		EventBuffer:    loaded.EventBuffer,
		ReloadSchedule: loaded.ReloadSchedule,
	}, nil
}

// InstallationDir is the directory of the running executable, the base of all relative settings.
func InstallationDir() string {
	executable, err := os.Executable()
	if err != nil {
		return mustGetwd()
	}
	if resolved, err := filepath.EvalSymlinks(executable); err == nil {
		executable = resolved
	}
	return filepath.Dir(executable)
}

// New creates a scanner instance and loads the signature directory.
// A missing or partially malformed signature directory is reported but does not prevent creation.
func New(createConfig CreateConfig) (VirusBeGone, error) {
	settings := config.Config{
		SignaturesDir:  createConfig.SignaturesDir,
		QuarantineDir:  createConfig.QuarantineDir,
		DefaultRoot:    createConfig.DefaultRoot,
		QuickLimit:     createConfig.QuickLimit,
		CustomLimit:    createConfig.CustomLimit,
		Workers:        createConfig.Workers,
		EventBuffer:    createConfig.EventBuffer,
		ReloadSchedule: createConfig.ReloadSchedule,
	}
	settings.ApplyDefaults(InstallationDir())
	settings.DefaultRoot = mustAbsFilepath(settings.DefaultRoot)
	if err := settings.Validate(); err != nil {
		return nil, newCommandError("invalid settings", err)
	}

	handle := makeScanner(createConfig, settings)
	handle.reportSignatureLoad(handle.signatures.Reload())
	return handle, nil
}

type scanner struct {
	settings   config.Config
	signatures *signature.Store
	quarantine *quarantine.Manager
	engine     *scan.Engine
	out        output.Printer
	watchTree  func(root string, options watch.Options) (watch.Source, error)

	scheduleLock sync.Mutex
	schedule     *cron.Cron
}

func makeScanner(createConfig CreateConfig, settings config.Config) (instance *scanner) {
	stdout, stderr := createConfig.Stdout, createConfig.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	classes := []output.Class{output.Required, output.Error}
	switch createConfig.Verbosity {
	case VerboseMode:
		classes = append(classes, output.Verbose)
		fallthrough
	case DefaultVerbosity:
		classes = append(classes, output.Normal)
	}

	var lockdown quarantine.Lockdown = quarantine.PlatformLockdown()
	if createConfig.Lockdown != nil {
		lockdown = createConfig.Lockdown
	}

	instance = &scanner{
		settings:   settings,
		signatures: signature.NewStore(settings.SignaturesDir),
		quarantine: quarantine.NewManager(settings.QuarantineDir, lockdown),
		out:        output.NewPrinterTo(stdout, stderr, classes, !createConfig.PlainOutput),
		watchTree:  watch.NewRecursive,
	}
	instance.engine = &scan.Engine{
		Signatures: instance.signatures,
		Quarantine: instance.quarantine,
		Digest:     hashing.Digest,
		Skip:       instance.isExcluded,
		Workers:    settings.Workers,
		Printer:    instance.out,
	}
	return
}

// isExcluded keeps the scanner away from its own data, otherwise quarantined files would be found again.
func (s *scanner) isExcluded(absolutePath string, isDir bool) bool {
	for _, own := range []string{s.settings.QuarantineDir, s.settings.SignaturesDir} {
		if absolutePath == own || isChildOf(absolutePath, own) {
			return true
		}
	}
	return false
}

func (s *scanner) displayablePath(absolutePath string) string {
	return pleasantPath(filepath.Clean(absolutePath), mustGetwd(), false)
}
