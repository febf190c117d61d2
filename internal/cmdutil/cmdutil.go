// Package cmdutil holds functionality common to every cuenv subcommand:
// flag parsing, logger/UI construction, and lazy construction of the
// stores (state, approval, cache) and the process manager every command
// built on top of the core needs, resolved the same way across commands
// so CUENV_STATE_DIR/CUENV_CACHE_DIR/CUENV_APPROVAL_FILE behave
// identically everywhere they're honored.
package cmdutil

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/fatih/color"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/pflag"

	"github.com/cuenv/cuenv/internal/approval"
	"github.com/cuenv/cuenv/internal/cache"
	"github.com/cuenv/cuenv/internal/evaluator"
	"github.com/cuenv/cuenv/internal/process"
	"github.com/cuenv/cuenv/internal/statestore"
	"github.com/cuenv/cuenv/internal/turbopath"
	"github.com/cuenv/cuenv/internal/ui"
)

// _envBridgePath overrides which bridge binary the evaluator shells out to.
const _envBridgePath = "CUENV_BRIDGE_PATH"

// _defaultBridgeBinary is the bridge binary name resolved via PATH when
// _envBridgePath is unset.
const _defaultBridgeBinary = "cuenv-bridge"

// _envLogLevel is the environment variable that sets the default log level
// when no -v flag is given.
const _envLogLevel = "CUENV_LOG_LEVEL"

// Helper holds configuration values passed via flag or env var, shared
// across every subcommand. It is not used directly by commands; it drives
// construction of CmdBase.
type Helper struct {
	CuenvVersion string

	forceColor bool
	noColor    bool
	verbosity  int

	rawCwd string

	cleanupsMu sync.Mutex
	cleanups   []io.Closer
}

// NewHelper returns a Helper for the given version string.
func NewHelper(cuenvVersion string) *Helper {
	return &Helper{CuenvVersion: cuenvVersion}
}

// RegisterCleanup saves a function to run after command execution, even if
// the command returns an error.
func (h *Helper) RegisterCleanup(cleanup io.Closer) {
	h.cleanupsMu.Lock()
	defer h.cleanupsMu.Unlock()
	h.cleanups = append(h.cleanups, cleanup)
}

// Cleanup runs every registered cleanup handler, warning on the UI for any
// that fail rather than aborting the rest.
func (h *Helper) Cleanup(flags *pflag.FlagSet) {
	h.cleanupsMu.Lock()
	defer h.cleanupsMu.Unlock()
	var terminal cli.Ui
	for _, cleanup := range h.cleanups {
		if err := cleanup.Close(); err != nil {
			if terminal == nil {
				terminal = h.getUI(flags)
			}
			terminal.Warn(fmt.Sprintf("failed cleanup: %v", err))
		}
	}
}

func (h *Helper) getUI(flags *pflag.FlagSet) cli.Ui {
	colorMode := ui.GetColorModeFromEnv()
	if flags.Changed("no-color") && h.noColor {
		colorMode = ui.ColorModeSuppressed
	}
	if flags.Changed("color") && h.forceColor {
		colorMode = ui.ColorModeForced
	}
	return ui.BuildColoredUi(colorMode)
}

func (h *Helper) getLogger() (hclog.Logger, error) {
	var level hclog.Level
	switch h.verbosity {
	case 0:
		if v := os.Getenv(_envLogLevel); v != "" {
			level = hclog.LevelFromString(v)
			if level == hclog.NoLevel {
				return nil, fmt.Errorf("%s value %q is not a valid log level", _envLogLevel, v)
			}
		} else {
			level = hclog.NoLevel
		}
	case 1:
		level = hclog.Info
	case 2:
		level = hclog.Debug
	default:
		level = hclog.Trace
	}

	output := ioutil.Discard
	logColor := hclog.ColorOff
	if level != hclog.NoLevel {
		output = os.Stderr
		logColor = hclog.AutoColor
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "cuenv",
		Level:  level,
		Color:  logColor,
		Output: output,
	}), nil
}

// AddFlags adds the flags shared by every cuenv subcommand.
func (h *Helper) AddFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&h.forceColor, "color", false, "Force color usage in the terminal")
	flags.BoolVar(&h.noColor, "no-color", false, "Suppress color usage in the terminal")
	flags.CountVarP(&h.verbosity, "verbosity", "v", "verbosity")
	flags.StringVar(&h.rawCwd, "cwd", "", "The directory to treat as the current directory")
}

// GetCmdBase builds a CmdBase from the Helper's resolved flags.
func (h *Helper) GetCmdBase(flags *pflag.FlagSet) (*CmdBase, error) {
	terminal := h.getUI(flags)
	logger, err := h.getLogger()
	if err != nil {
		return nil, err
	}

	cwd := h.rawCwd
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}
	absCwd, err := filepath.Abs(cwd)
	if err != nil {
		return nil, err
	}

	return &CmdBase{
		UI:           terminal,
		Logger:       logger,
		Cwd:          absCwd,
		CuenvVersion: h.CuenvVersion,
	}, nil
}

// CmdBase encompasses the components common to every cuenv command.
// Stores are constructed lazily since most commands only need a subset.
type CmdBase struct {
	UI           cli.Ui
	Logger       hclog.Logger
	Cwd          string
	CuenvVersion string

	storeMu      sync.Mutex
	stateStore   *statestore.Store
	cacheStore   *cache.Store
	approvalOnce *approval.Store
	procManager  *process.Manager
	evaluator    evaluator.Evaluator
}

// LogError prints an error to the UI and logger.
func (b *CmdBase) LogError(format string, args ...interface{}) {
	err := fmt.Errorf(format, args...)
	b.Logger.Error("error", err)
	b.UI.Error(fmt.Sprintf("%s%s", ui.ERROR_PREFIX, color.RedString(" %v", err)))
}

// LogWarning logs a warning to the UI and logger.
func (b *CmdBase) LogWarning(prefix string, err error) {
	b.Logger.Warn(prefix, "warning", err)
	if prefix != "" {
		prefix = " " + prefix + ": "
	}
	b.UI.Warn(fmt.Sprintf("%s%s%s", ui.WARNING_PREFIX, prefix, color.YellowString(" %v", err)))
}

// LogInfo logs an informational message to the UI and logger.
func (b *CmdBase) LogInfo(msg string) {
	b.Logger.Info(msg)
	b.UI.Info(fmt.Sprintf("%s%s", ui.InfoPrefix, color.WhiteString(" %v", msg)))
}

// StateStore returns the process-wide state store, honoring
// CUENV_STATE_DIR if set.
func (b *CmdBase) StateStore() (*statestore.Store, error) {
	b.storeMu.Lock()
	defer b.storeMu.Unlock()
	if b.stateStore != nil {
		return b.stateStore, nil
	}
	store, err := statestore.New(os.Getenv("CUENV_STATE_DIR"), b.Logger)
	if err != nil {
		return nil, err
	}
	b.stateStore = store
	return store, nil
}

// CacheStore returns the process-wide task cache, honoring
// CUENV_CACHE_DIR and falling back to XDG_CACHE_HOME/cuenv/tasks.
func (b *CmdBase) CacheStore() (*cache.Store, error) {
	b.storeMu.Lock()
	defer b.storeMu.Unlock()
	if b.cacheStore != nil {
		return b.cacheStore, nil
	}
	root, err := cacheRoot()
	if err != nil {
		return nil, err
	}
	store, err := cache.New(root, b.Logger)
	if err != nil {
		return nil, err
	}
	b.cacheStore = store
	return store, nil
}

// ApprovalStore returns the process-wide approval store, honoring
// CUENV_APPROVAL_FILE.
func (b *CmdBase) ApprovalStore() (*approval.Store, error) {
	b.storeMu.Lock()
	defer b.storeMu.Unlock()
	if b.approvalOnce != nil {
		return b.approvalOnce, nil
	}
	path, err := approvalFilePath()
	if err != nil {
		return nil, err
	}
	store := approval.New(path)
	b.approvalOnce = store
	return store, nil
}

// ProcessManager returns the process-wide child-process manager used to
// spawn hooks and tasks.
func (b *CmdBase) ProcessManager() *process.Manager {
	b.storeMu.Lock()
	defer b.storeMu.Unlock()
	if b.procManager == nil {
		b.procManager = process.NewManager(b.Logger)
	}
	return b.procManager
}

// Evaluator returns the process-wide config evaluator: a ProcessEvaluator
// shelling out to CUENV_BRIDGE_PATH (or "cuenv-bridge" on PATH), wrapped in
// a CachingEvaluator so repeated lookups of the same module root within one
// command invocation don't re-shell out.
func (b *CmdBase) Evaluator() evaluator.Evaluator {
	b.storeMu.Lock()
	defer b.storeMu.Unlock()
	if b.evaluator == nil {
		binary := os.Getenv(_envBridgePath)
		if binary == "" {
			binary = _defaultBridgeBinary
		}
		b.evaluator = evaluator.NewCaching(evaluator.NewProcess(binary))
	}
	return b.evaluator
}

func cacheRoot() (turbopath.AbsolutePath, error) {
	if override := os.Getenv("CUENV_CACHE_DIR"); override != "" {
		return turbopath.FromUpstream(override), nil
	}
	if xdg.CacheHome != "" {
		return turbopath.FromUpstream(filepath.Join(xdg.CacheHome, "cuenv", "tasks")), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return turbopath.FromUpstream(filepath.Join(home, ".cuenv", "cache")), nil
}

func approvalFilePath() (turbopath.AbsolutePath, error) {
	if override := os.Getenv("CUENV_APPROVAL_FILE"); override != "" {
		return turbopath.FromUpstream(override), nil
	}
	if xdg.StateHome != "" {
		return turbopath.FromUpstream(filepath.Join(xdg.StateHome, "cuenv", "approvals.json")), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return turbopath.FromUpstream(filepath.Join(home, ".cuenv", "approvals.json")), nil
}
