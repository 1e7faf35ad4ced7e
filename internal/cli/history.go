package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotamail/quotamail/internal/config"
	"github.com/quotamail/quotamail/internal/models"
)

// historyCmd shows recorded threshold changes from the configured store.
var historyCmd = &cobra.Command{
	Use:   "history [user]",
	Short: "Show recorded threshold changes for a user",
	Long: `Show the threshold changes recorded for a user, per dimension.

Without a user argument, lists every user with recorded history.

Example:
  quotamaild history alice --config config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	RootCmd.AddCommand(historyCmd)
}

// historyLine is one printed history entry.
type historyLine struct {
	Dimension string    `json:"dimension"`
	Percent   int       `json:"percent"`
	At        time.Time `json:"at"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(globalFlags.Config).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	historyStore, err := buildStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer historyStore.Close()

	if len(args) == 0 {
		users, err := historyStore.ListUsers()
		if err != nil {
			return err
		}
		if globalFlags.JSON {
			out, err := json.MarshalIndent(users, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		}
		for _, user := range users {
			cmd.Println(user)
		}
		return nil
	}

	user := args[0]
	lines := make([]historyLine, 0)
	for _, dim := range models.Dimensions {
		history, err := historyStore.Retrieve(user, dim)
		if err != nil {
			return err
		}
		for _, change := range history.Changes() {
			lines = append(lines, historyLine{
				Dimension: string(dim),
				Percent:   change.Threshold.Percent(),
				At:        change.At,
			})
		}
	}

	if globalFlags.JSON {
		out, err := json.MarshalIndent(lines, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	if len(lines) == 0 {
		cmd.Printf("no recorded history for %s\n", user)
		return nil
	}
	for _, line := range lines {
		cmd.Printf("%s  %3d%%  %s\n", line.At.Format(time.RFC3339), line.Percent, line.Dimension)
	}
	return nil
}
