package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hstswatch/internal/config"
	"github.com/ppiankov/hstswatch/internal/ignore"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default configuration and ignore rules",
	Long: `Creates ~/.hstswatch/ with config.yaml and ignore.yaml.

Existing files are left alone unless --force is given.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := config.Dir()
	if err != nil {
		return err
	}

	var created []string

	configContent, err := config.DefaultYAML()
	if err != nil {
		return err
	}
	configFile := filepath.Join(configDir, "config.yaml")
	if wrote, err := writeIfMissing(configFile, configContent); err != nil {
		return err
	} else if wrote {
		created = append(created, configFile)
	}

	ignoreContent, err := ignore.DefaultYAML()
	if err != nil {
		return fmt.Errorf("generate default ignore rules: %w", err)
	}
	ignoreFile := filepath.Join(configDir, "ignore.yaml")
	if wrote, err := writeIfMissing(ignoreFile, ignoreContent); err != nil {
		return err
	} else if wrote {
		created = append(created, ignoreFile)
	}

	fmt.Println("hstswatch init complete.")
	fmt.Println()
	if len(created) > 0 {
		fmt.Println("Created:")
		for _, path := range created {
			fmt.Printf("  %s\n", path)
		}
		fmt.Println()
	} else {
		fmt.Println("All files already exist (use --force to overwrite).")
		fmt.Println()
	}

	fmt.Println("Start the browser with remote debugging, then:")
	fmt.Println("  hstswatch run")
	return nil
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path string, content []byte) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
