package cli

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/hstswatch/internal/config"
	"github.com/ppiankov/hstswatch/internal/policy"
	"github.com/ppiankov/hstswatch/internal/prefs"
)

// prefKeys maps command-line names to stored preference keys.
var prefKeys = map[string]string{
	"block-downgrades": policy.PrefBlockDowngrades,
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsGetCmd)
	prefsCmd.AddCommand(prefsSetCmd)
}

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Read and change stored preferences",
	Long:  "A running engine picks up changes made here without restarting.",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print a preference (block-downgrades)",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrefsGet,
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <name> <true|false>",
	Short: "Store a preference (block-downgrades)",
	Args:  cobra.ExactArgs(2),
	RunE:  runPrefsSet,
}

func openPrefs(name string) (*prefs.Store, string, error) {
	key, ok := prefKeys[name]
	if !ok {
		return nil, "", fmt.Errorf("unknown preference %q (known: block-downgrades)", name)
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	store, err := prefs.Open(config.ExpandPath(cfg.PrefsDB), zerolog.Nop())
	if err != nil {
		return nil, "", err
	}
	return store, key, nil
}

func runPrefsGet(cmd *cobra.Command, args []string) error {
	store, key, err := openPrefs(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	v, err := store.GetBool(key, false)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s=%t\n", args[0], v)
	return nil
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	v, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("invalid value %q: use true or false", args[1])
	}
	store, key, err := openPrefs(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SetBool(key, v); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s=%t\n", args[0], v)
	return nil
}
