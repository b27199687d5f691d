package cmd

import (
	"go/token"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aivi-lang/aivi/aivi"
	"github.com/aivi-lang/aivi/frontend"
	"github.com/aivi-lang/aivi/frontend/ast"
	"github.com/aivi-lang/aivi/frontend/astio"
	"github.com/aivi-lang/aivi/internal/config"
	"github.com/aivi-lang/aivi/internal/log"
)

var cliLogger = log.DefaultLogger.With("section", "cli")

// settings holds the configuration loaded by Configure.
var settings = config.Default()

// RegisterFlags adds the flags that override configuration keys.
func RegisterFlags(flags *pflag.FlagSet) {
	def := config.Default()
	flags.String("config", "", "configuration file (default aivi.yaml in the working directory)")
	flags.String("log-level", def.LogLevel, "log level: debug, info, warn or error")
	flags.StringSlice("log-sections", nil, "log sections to enable below warn level")
	flags.Int("max-resolution-rounds", def.MaxResolutionRounds, "probe/resolve rounds per binding group")
	flags.Int("parallelism", def.Parallelism, "modules checked at once")
	flags.String("color", def.Color, "colour output: auto, always or never")
}

// Configure loads the configuration for c and applies its log settings.
func Configure(c *cobra.Command, _ []string) error {
	path, _ := c.Flags().GetString("config")
	cfg, err := config.Load(path, c.Flags())
	if err != nil {
		return err
	}
	settings = cfg
	log.SetLevel(log.ParseLevel(cfg.LogLevel))
	log.EnableSections(cfg.LogSections...)
	cliLogger.Debug("loaded configuration", "file", cfg.File, "parallelism", cfg.Parallelism)
	return nil
}

func workspaceConfig() aivi.Config {
	return aivi.Config{
		Frontend:    frontend.Config{MaxResolutionRounds: settings.MaxResolutionRounds},
		Parallelism: settings.Parallelism,
	}
}

func loadModules(fset *token.FileSet, paths []string) ([]*ast.Module, error) {
	mods := make([]*ast.Module, 0, len(paths))
	for _, p := range paths {
		mod, err := astio.ReadFile(fset, p)
		if err != nil {
			return nil, err
		}
		cliLogger.Debug("read module", "path", p, "module", mod.Name)
		mods = append(mods, mod)
	}
	return mods, nil
}
