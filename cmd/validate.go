package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tip-gate-backend/internal/models"
	"tip-gate-backend/internal/services"

	"github.com/spf13/cobra"
)

var validateFlags struct {
	requester  uint64
	minFee     float64
	parentFID  uint64
	parentHash string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a tip against the live hub and allowance API without persisting",
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateFlags.requester == 0 || validateFlags.parentFID == 0 || validateFlags.parentHash == "" {
			return fmt.Errorf("--requester, --parent-fid and --parent-hash are required")
		}

		validator := services.NewTipValidator(newHubClient(cfg), newAllowanceClient(cfg), discardViewers{})
		result, err := validator.Validate(cmd.Context(), services.ValidationRequest{
			ImageID:    "cli",
			Requester:  models.FID(validateFlags.requester),
			MinFee:     validateFlags.minFee,
			ParentCast: models.CastID{FID: models.FID(validateFlags.parentFID), Hash: validateFlags.parentHash},
		})
		if err != nil {
			return fmt.Errorf("validating tip: %w", err)
		}

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	validateCmd.Flags().Uint64Var(&validateFlags.requester, "requester", 0, "fid of the tipping viewer")
	validateCmd.Flags().Float64Var(&validateFlags.minFee, "min-fee", 0, "minimum tip amount in $DEGEN")
	validateCmd.Flags().Uint64Var(&validateFlags.parentFID, "parent-fid", 0, "fid of the frame cast author")
	validateCmd.Flags().StringVar(&validateFlags.parentHash, "parent-hash", "", "hash of the frame cast")
}

// discardViewers is a ViewerStore that keeps nothing
type discardViewers struct{}

func (discardViewers) Find(context.Context, string, string) (*models.ViewerState, error) {
	return nil, fmt.Errorf("not stored")
}

func (discardViewers) Create(context.Context, string, string) (bool, error) { return false, nil }

func (discardViewers) UpdateStatus(context.Context, string, string, models.ViewerStatus) (bool, error) {
	return false, nil
}

func (discardViewers) Delete(context.Context, string, string) error { return nil }

func (discardViewers) DeleteStalePending(context.Context, string, string, time.Time) (bool, error) {
	return false, nil
}
