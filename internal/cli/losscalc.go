package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/needha-erp/erpdesk/internal/loss"
	"github.com/needha-erp/erpdesk/internal/ui/styles"
	"github.com/needha-erp/erpdesk/internal/util"
)

func newLossCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loss <issued> [received]",
		Short: "Calculate metal loss",
		Long: `Calculate the loss between issued and received weight (grams, 4 decimals).

For a casting batch give the ornament, scrap and dust weights instead of a
received weight. Dust is not counted as received.

Examples:
  erpdesk loss 120.5 118.25
  erpdesk loss 100 --ornament 95.2 --scrap 3.1 --dust 0.4`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runLoss,
	}
	cmd.Flags().Float64("ornament", 0, "Casting: ornament weight")
	cmd.Flags().Float64("scrap", 0, "Casting: scrap weight")
	cmd.Flags().Float64("dust", 0, "Casting: dust weight")
	return cmd
}

func parseGrams(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s weight %q", name, s)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %s", loss.ErrNegativeReading, name)
	}
	return v, nil
}

func runLoss(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	issued, err := parseGrams("issued", args[0])
	if err != nil {
		return err
	}

	casting := cmd.Flags().Changed("ornament") || cmd.Flags().Changed("scrap") || cmd.Flags().Changed("dust")
	if casting {
		if len(args) == 2 {
			return fmt.Errorf("give either a received weight or --ornament/--scrap/--dust, not both")
		}
		var r loss.CastingReceipt
		r.Ornament, _ = cmd.Flags().GetFloat64("ornament")
		r.Scrap, _ = cmd.Flags().GetFloat64("scrap")
		r.Dust, _ = cmd.Flags().GetFloat64("dust")
		if r.Ornament < 0 || r.Scrap < 0 || r.Dust < 0 {
			return loss.ErrNegativeReading
		}
		fmt.Fprintf(out, "Received: %s\n", styles.Weight(loss.Round4(r.Received())))
		fmt.Fprintf(out, "Loss:     %s\n", styles.Loss(loss.CastingLoss(issued, r)))
		return nil
	}

	if len(args) < 2 {
		return util.MissingArgumentError("received", "erpdesk loss 120.5 118.25")
	}
	received, err := parseGrams("received", args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loss: %s\n", styles.Loss(loss.Loss(issued, received)))
	return nil
}
