package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/matthieukhl/loom/internal/audit"
	"github.com/matthieukhl/loom/internal/orders"
	"github.com/spf13/cobra"
)

var orderStatusCmd = &cobra.Command{
	Use:   "order-status <order-id> <status>",
	Short: "Move an order to a new status",
	Long: `Move an order forward through pending, processing, packed, shipped,
delivered and completed, or cancel it before delivery. Cancelling returns
the ordered units to inventory. The order id may be a unique prefix.`,
	Args: cobra.ExactArgs(2),
	RunE: orderStatus,
}

func init() {
	rootCmd.AddCommand(orderStatusCmd)
}

func orderStatus(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	events := audit.NewStore(db)
	recorder := audit.NewAsyncRecorder(events, cfg.Audit.QueueSize, logger)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Audit.DrainTimeout)
		defer cancel()
		_ = recorder.Close(drainCtx)
	}()

	engine := orders.NewEngine(db, recorder, logger)
	order, err := engine.FindByPrefix(ctx, args[0])
	if errors.Is(err, orders.ErrAmbiguous) {
		return fmt.Errorf("more than one order starts with %q", args[0])
	}
	if err != nil {
		return err
	}

	fmt.Printf("📦 Order %s is %s\n", orders.ShortID(order.ID), order.Status)
	if err := engine.UpdateStatus(ctx, order.ID, args[1]); err != nil {
		return err
	}
	fmt.Printf("✅ Order %s moved to %s\n", orders.ShortID(order.ID), args[1])
	return nil
}
