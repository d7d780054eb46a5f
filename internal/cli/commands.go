package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kernbuild/internal/stage"
)

// app carries the I/O and environment of one CLI invocation into the commands.
type app struct {
	env    LookupEnv
	stdout io.Writer
	stderr io.Writer

	// ran is set once a command body starts; errors before that are usage errors.
	ran    bool
	result CLIResult
}

func (a *app) rootCommand() *cobra.Command {
	var opts Options

	root := &cobra.Command{
		Use:           "kernbuild",
		Short:         "Staged freestanding build of the RISC-V kernel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.WorkDir, "workdir", "", "Absolute project directory (default: current directory)")
	pf.StringVar(&opts.Target, "target", stage.TargetLibraries, "Built-in stage registry: "+strings.Join(stage.BuiltinTargets(), "|"))
	pf.StringVar(&opts.Registry, "registry", "", "YAML stage registry replacing the built-in target")

	root.AddCommand(a.buildCommand(&opts), a.stagesCommand(&opts))
	return root
}

func (a *app) buildCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile every stage in declared order, one static archive per stage",
		Long: `Compile every stage in declared order, one static archive per stage.

The first failing stage aborts the run; later stages are skipped.
Concurrent builds into the same output directory are not supported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.ran = true
			a.result = CLIResult{ExitCode: ExitInvalidInvocation}

			inv, err := a.invocation(*opts)
			if err != nil {
				a.result.ExitCode = ExitCode(err)
				return err
			}
			res, err := Execute(cmd.Context(), inv, a.stdout, a.stderr)
			a.result = res
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.OutputDir, "output-dir", "build", "Archive output directory")
	f.StringVar(&opts.Profile, "profile", "", "Build profile: debug|release (default from $"+EnvProfile+" or $"+EnvCargoProfile+")")
	f.StringVar(&opts.Revision, "revision", "", "Source revision (default: git rev-parse --short HEAD)")
	f.StringVar(&opts.Compiler, "cc", "", "Compiler driver (default $"+EnvCompiler+" or riscv64-unknown-elf-g++)")
	f.StringVar(&opts.Archiver, "ar", "", "Archiver (default $"+EnvArchiver+" or riscv64-unknown-elf-ar)")
	f.StringVar(&opts.Trace, "trace", "", "Write the canonical stage trace JSON to this path")
	f.IntVarP(&opts.Jobs, "jobs", "j", 1, "Concurrent compiler processes within a stage")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "Log discovery and revision details to stderr")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	return cmd
}

func (a *app) stagesCommand(opts *Options) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Print the effective stage registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.ran = true
			a.result = CLIResult{ExitCode: ExitInvalidInvocation}

			inv, err := a.invocation(*opts)
			if err != nil {
				a.result.ExitCode = ExitCode(err)
				return err
			}
			reg, err := loadRegistry(inv)
			if err != nil {
				a.result.ExitCode = ExitConfigError
				return err
			}
			if asYAML {
				err = WriteRegistryYAML(a.stdout, reg)
			} else {
				err = printRegistry(a.stdout, reg)
			}
			if err != nil {
				a.result.ExitCode = ExitInternalError
				return err
			}
			a.result.ExitCode = ExitSuccess
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print as a registry file accepted by --registry")
	return cmd
}

// invocation fills the work directory from the process CWD, the only place
// the CWD is consulted, then canonicalizes.
func (a *app) invocation(opts Options) (Invocation, error) {
	if strings.TrimSpace(opts.WorkDir) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Invocation{}, invalidInvocationf("cannot determine working directory: %v", err)
		}
		opts.WorkDir = wd
	}
	return ParseInvocation(opts, a.env)
}

func printRegistry(w io.Writer, reg stage.Registry) error {
	if _, err := fmt.Fprintf(w, "registry %s %s\n", reg.Name, reg.Hash()); err != nil {
		return err
	}
	for _, d := range reg.Stages {
		var roots []string
		for _, r := range d.Roots {
			if r.Recurse {
				roots = append(roots, r.Dir+"/**")
			} else {
				roots = append(roots, r.Dir)
			}
		}
		rev := ""
		if d.NeedsRevision {
			rev = " +revision"
		}
		_, err := fmt.Fprintf(w, "%4d %-16s lib%s.a  roots=%s  ext=%s%s\n",
			d.Ordinal, d.Name, d.Artifact, strings.Join(roots, ","), strings.Join(d.ExtensionSet().Sorted(), ","), rev)
		if err != nil {
			return err
		}
	}
	return nil
}
