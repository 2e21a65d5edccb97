package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	pyext "github.com/contriboss/python-extension-go"
)

var (
	// Global flags
	verbose      bool
	projectDir   string
	pythonExe    string
	libraryDirs  []string
	metadataFile string
	manifestFile string

	// Build flags
	inplace   bool
	force     bool
	parallel  int
	keepGoing bool

	logger *zap.Logger
)

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	nameStyle    = lipgloss.NewStyle().Width(40)
)

var rootCmd = &cobra.Command{
	Use:   "pyext",
	Short: "Build the native extensions of the CASACORE Python wrapper",
	Long: `pyext compiles the C++ extension modules of python-casacore against an
installed CASACORE.

Before compiling it locates libcasa_casa, checks its version against the
minimum declared in pyext.toml and probes the compiler for C++ standard
support. Any failed check aborts the build.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var buildCmd = &cobra.Command{
	Use:   "build [-- setuptools args]",
	Short: "Run the preflight and compile every extension",
	RunE:  runBuild,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the preflight only (library lookup, version gate, compiler probe)",
	RunE:  runCheck,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove object files and built modules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return newSetup(args).Clean(cmd.Context())
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild whenever a source file changes",
	RunE:  runWatch,
}

var findLibCmd = &cobra.Command{
	Use:   "find-lib NAME...",
	Short: "Resolve native libraries by short name (casa_casa -> libcasa_casa.so)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFindLib,
}

var probeCmd = &cobra.Command{
	Use:   "probe FLAG...",
	Short: "Report whether the C++ compiler accepts each flag",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProbe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging and command echo")
	pf.StringVarP(&projectDir, "project", "C", ".", "Project directory")
	pf.StringVar(&pythonExe, "python", pyext.DefaultPython(), "Python interpreter to build for")
	pf.StringArrayVarP(&libraryDirs, "library-dirs", "L", nil, "Extra library directories (colon separated)")
	pf.StringVar(&metadataFile, "metadata", "", "Package metadata file (default <project>/pyext.toml)")
	pf.StringVar(&manifestFile, "manifest", "", "Extension manifest replacing the built-in targets")

	for _, cmd := range []*cobra.Command{buildCmd, watchCmd} {
		cmd.Flags().BoolVarP(&inplace, "inplace", "i", false, "Copy built modules into the project tree")
		cmd.Flags().BoolVarP(&force, "force", "f", false, "Rebuild targets even if they are up to date")
		cmd.Flags().IntVarP(&parallel, "parallel", "j", 1, "Number of extensions built concurrently")
		cmd.Flags().BoolVarP(&keepGoing, "keep-going", "k", false, "Continue after a failed extension")
	}

	rootCmd.AddCommand(buildCmd, checkCmd, cleanCmd, watchCmd, findLibCmd, probeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// userLibraryDirs merges -L values, setuptools style arguments passed
// after "--" and PYEXT_LIBRARY_DIRS.
func userLibraryDirs(passthrough []string) []string {
	var dirs []string
	for _, value := range libraryDirs {
		dirs = append(dirs, filepath.SplitList(value)...)
	}
	dirs = append(dirs, pyext.ParseLibraryDirs(passthrough)...)
	if env := os.Getenv("PYEXT_LIBRARY_DIRS"); env != "" {
		dirs = append(dirs, filepath.SplitList(env)...)
	}
	return dirs
}

func newSetup(passthrough []string) *pyext.Setup {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		abs = projectDir
	}
	return &pyext.Setup{
		ProjectDir:   abs,
		PythonExe:    pythonExe,
		MetadataFile: metadataFile,
		ManifestFile: manifestFile,
		Config: &pyext.BuildConfig{
			ProjectDir:    abs,
			LibraryDirs:   userLibraryDirs(passthrough),
			Verbose:       verbose,
			Force:         force,
			Inplace:       inplace,
			Parallel:      parallel,
			StopOnFailure: !keepGoing,
			Logger:        logger,
		},
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	results, err := newSetup(args).Run(cmd.Context())
	printResults(cmd, results)
	return err
}

func runCheck(cmd *cobra.Command, args []string) error {
	setup := newSetup(args)
	plan, err := setup.Preflight(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "package:   %s %s\n", plan.Metadata.Package.Name, plan.Metadata.Package.Version)
	fmt.Fprintf(out, "python:    %s (%d.%d)\n", plan.Python.Executable, plan.Python.Major, plan.Python.Minor)
	fmt.Fprintf(out, "casacore:  %s (%s, minimum %s)\n", plan.CasacorePath, plan.CasacoreVersion, plan.Metadata.Package.MinCasacoreVersion)
	fmt.Fprintf(out, "options:   %v\n", plan.CompileArgs)
	if err := checkTools(cmd, setup); err != nil {
		return err
	}
	for _, ext := range plan.Extensions {
		fmt.Fprintf(out, "extension: %s (%d sources)\n", ext.Name, len(ext.Sources))
	}
	return nil
}

// checkTools reports the configured compiler or linker when missing from
// PATH, and prints where each tool was found.
func checkTools(cmd *cobra.Command, setup *pyext.Setup) error {
	builder, err := pyext.NewBuilderFactory().BuilderFor(setup.Config.CompilerType)
	if err != nil {
		return err
	}
	checker, ok := builder.(pyext.ToolChecker)
	if !ok {
		return nil
	}
	found, err := checker.CheckTools(setup.Config)
	if err != nil {
		return err
	}
	for _, req := range checker.RequiredTools(setup.Config) {
		fmt.Fprintf(cmd.OutOrStdout(), "tool:      %s (%s)\n", found[req.Name], req.Purpose)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	w := &pyext.Watcher{
		Setup: newSetup(args),
		OnBuild: func(results []*pyext.BuildResult, err error) {
			printResults(cmd, results)
		},
	}
	return w.Run(cmd.Context())
}

func runFindLib(cmd *cobra.Command, args []string) error {
	prefix := ""
	if python, err := pyext.DetectPython(cmd.Context(), pythonExe); err == nil {
		prefix = python.Prefix
	}
	resolver := pyext.NewLibraryResolver(userLibraryDirs(nil), prefix)
	resolver.Logger = logger

	found, missing := resolver.FindAll(args)
	out := cmd.OutOrStdout()
	for _, name := range args {
		if path, ok := found[name]; ok {
			fmt.Fprintf(out, "%s\t%s\n", name, path)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", pyext.ErrLibraryNotFound, missing)
	}
	return nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	var python *pyext.PythonInfo
	if info, err := pyext.DetectPython(cmd.Context(), pythonExe); err == nil {
		python = info
	}
	prober := pyext.NewFlagProber(pyext.DefaultCompiler(python), nil)
	prober.Logger = logger

	out := cmd.OutOrStdout()
	for _, flag := range args {
		ok, err := prober.HasFlag(cmd.Context(), flag)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%t\n", flag, ok)
	}
	return nil
}

func printResults(cmd *cobra.Command, results []*pyext.BuildResult) {
	out := cmd.OutOrStdout()
	for _, result := range results {
		if result == nil {
			continue
		}
		status := okStyle.Render("ok")
		switch {
		case result.Skipped:
			status = skippedStyle.Render("up to date")
		case !result.Success:
			status = failedStyle.Render("FAILED")
		}
		fmt.Fprintf(out, "%s %s\n", nameStyle.Render(result.Name), status)
		if verbose {
			for _, line := range result.Output {
				fmt.Fprintf(out, "    %s\n", line)
			}
		}
	}
}
