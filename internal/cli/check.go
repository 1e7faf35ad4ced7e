package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quotamail/quotamail/internal/config"
	"github.com/quotamail/quotamail/internal/mailer"
	"github.com/quotamail/quotamail/internal/models"
)

// checkCmd evaluates usage figures against the configured thresholds without
// touching the history store or sending mail.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a usage figure against the configured thresholds",
	Long: `Evaluate quota usage figures against the configured thresholds.

This is a dry run: no history is read or written and no mail is sent.
It reports, per dimension, the highest threshold the given figures exceed
and a preview of the notification body a first-time crossing would produce.

Example:
  quotamaild check --user alice --size-used 900 --size-limit 1000`,
	RunE: runCheck,
}

var checkFlags struct {
	User       string
	SizeUsed   int64
	SizeLimit  int64
	CountUsed  int64
	CountLimit int64
	Preview    bool
}

func init() {
	checkCmd.Flags().StringVar(&checkFlags.User, "user", "user", "User the figures belong to")
	checkCmd.Flags().Int64Var(&checkFlags.SizeUsed, "size-used", 0, "Occupied storage in bytes")
	checkCmd.Flags().Int64Var(&checkFlags.SizeLimit, "size-limit", 0, "Storage limit in bytes (0 = unbounded)")
	checkCmd.Flags().Int64Var(&checkFlags.CountUsed, "count-used", 0, "Message count")
	checkCmd.Flags().Int64Var(&checkFlags.CountLimit, "count-limit", 0, "Message count limit (0 = unbounded)")
	checkCmd.Flags().BoolVar(&checkFlags.Preview, "preview", false, "Print the notification body a crossing would produce")

	RootCmd.AddCommand(checkCmd)
}

// checkResult is the per-dimension evaluation output.
type checkResult struct {
	Dimension string  `json:"dimension"`
	Used      int64   `json:"used"`
	Limit     int64   `json:"limit"`
	Exceeded  bool    `json:"exceeded"`
	Ratio     float64 `json:"ratio,omitempty"`
	Percent   int     `json:"percent,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(globalFlags.Config).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	thresholds, err := cfg.Quota.ThresholdSet()
	if err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}

	update := models.UsageUpdate{
		User:       checkFlags.User,
		SizeUsed:   checkFlags.SizeUsed,
		SizeLimit:  checkFlags.SizeLimit,
		CountUsed:  checkFlags.CountUsed,
		CountLimit: checkFlags.CountLimit,
	}
	if err := update.Validate(); err != nil {
		return err
	}

	results := make([]checkResult, 0, len(models.Dimensions))
	crossings := make(map[models.Dimension]models.Crossing, len(models.Dimensions))
	for _, dim := range models.Dimensions {
		used, limit := update.Figures(dim)
		highest := thresholds.HighestExceeded(used, limit)
		result := checkResult{
			Dimension: string(dim),
			Used:      used,
			Limit:     limit,
			Exceeded:  !highest.IsZero(),
		}
		if !highest.IsZero() {
			result.Ratio = highest.Ratio()
			result.Percent = highest.Percent()
		}
		results = append(results, result)
		crossings[dim] = models.Crossing{Outcome: models.OutcomeJustCrossed, Threshold: highest}
	}

	if globalFlags.JSON {
		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
	} else {
		for _, r := range results {
			if r.Exceeded {
				cmd.Printf("%s: %d of %d exceeds %d%%\n", r.Dimension, r.Used, r.Limit, r.Percent)
			} else {
				cmd.Printf("%s: %d of %d below all thresholds\n", r.Dimension, r.Used, r.Limit)
			}
		}
	}

	if checkFlags.Preview {
		body, ok := mailer.Compose(update, crossings[models.DimensionSize], crossings[models.DimensionCount])
		if ok {
			cmd.Println()
			cmd.Println(body)
		}
	}

	return nil
}
