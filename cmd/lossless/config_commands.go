package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"lossless/internal/config"
	"lossless/internal/lossless"
	"lossless/internal/preflight"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool
	var recipe bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				if recipe {
					expanded, err := config.ExpandPath("~/.config/lossless/recipe.yaml")
					if err != nil {
						return fmt.Errorf("determine default recipe path: %w", err)
					}
					target = expanded
				} else {
					defaultPath, err := config.DefaultConfigPath()
					if err != nil {
						return fmt.Errorf("determine default config path: %w", err)
					}
					target = defaultPath
				}
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if recipe {
				defaults, err := lossless.LoadDefault()
				if err != nil {
					return fmt.Errorf("load default recipe: %w", err)
				}
				if err := defaults.Save(target); err != nil {
					return fmt.Errorf("write default recipe: %w", err)
				}
				fmt.Fprintf(out, "Wrote default pipeline recipe to %s\n", target)
				fmt.Fprintln(out, "Point pipeline.config_path at the file and edit the steps you want to change.")
				return nil
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to point paths.data_dir at your BIDS dataset before running Lossless.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	cmd.Flags().BoolVar(&recipe, "recipe", false, "Write the default pipeline recipe instead of the app config")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var recipe bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if recipe {
				recipePath := strings.TrimSpace(cfg.Pipeline.ConfigPath)
				active, err := loadRecipe(recipePath)
				if err != nil {
					return err
				}
				if recipePath == "" {
					fmt.Fprintf(out, "# built-in defaults (hash %s)\n", active.Hash())
				} else {
					fmt.Fprintf(out, "# %s (hash %s)\n", recipePath, active.Hash())
				}
				return active.Print(out)
			}

			if ctx.configExists {
				fmt.Fprintf(out, "# %s\n", ctx.configPath)
			} else {
				fmt.Fprintf(out, "# defaults (no config file at %s)\n", ctx.configPath)
			}
			enc := toml.NewEncoder(out)
			enc.SetIndentTables(true)
			return enc.Encode(cfg)
		},
	}

	cmd.Flags().BoolVar(&recipe, "recipe", false, "Print the active pipeline recipe instead of the app config")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load("")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")

			check := preflight.CheckRecipeFromConfig(cfg)
			if !check.Passed {
				return fmt.Errorf("pipeline recipe: %s", check.Detail)
			}
			fmt.Fprintf(out, "Pipeline recipe valid: %s\n", check.Detail)
			return nil
		},
	}
}

// loadRecipe resolves the active recipe: an explicit file when configured,
// the built-in defaults otherwise.
func loadRecipe(path string) (*lossless.Config, error) {
	if strings.TrimSpace(path) == "" {
		return lossless.LoadDefault()
	}
	return lossless.Load(path)
}
