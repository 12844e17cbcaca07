package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matthieukhl/loom/internal/audit"
	"github.com/matthieukhl/loom/internal/cart"
	"github.com/matthieukhl/loom/internal/catalog"
	"github.com/matthieukhl/loom/internal/chat"
	"github.com/matthieukhl/loom/internal/intent"
	"github.com/matthieukhl/loom/internal/llm"
	"github.com/matthieukhl/loom/internal/memory"
	"github.com/matthieukhl/loom/internal/orders"
	"github.com/matthieukhl/loom/internal/server"
	"github.com/matthieukhl/loom/internal/sessions"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Loom Agent server",
	Long: `Start the Loom Agent server which provides:
- Chat API that resolves shopper intents and searches the catalog
- Cart and order APIs that keep inventory consistent
- Staff console APIs for order status commands and the agent timeline`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	fmt.Println("🚀 Loom Agent Starting...")

	fmt.Println("📝 Loading configuration...")
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	fmt.Println("🔌 Connecting to database...")
	db, err := connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	fmt.Println("✅ Database connected successfully")

	generator, err := llm.NewGenerator(&cfg.LLM)
	if err != nil {
		fmt.Printf("⚠️  Language service unavailable, using the fallback parser: %v\n", err)
		logger.Warn("generator disabled", zap.Error(err))
		generator = nil
	} else if generator != nil {
		fmt.Printf("🤖 Intent extraction via %s/%s\n", cfg.LLM.Generator.Provider, generator.Model())
	}

	store, err := memory.NewStore(&cfg.Memory)
	if err != nil {
		return fmt.Errorf("failed to create memory store: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	events := audit.NewStore(db)
	recorder := audit.NewAsyncRecorder(events, cfg.Audit.QueueSize, logger)

	resolver := intent.NewResolver(generator, cfg.NLU.Timeout, logger)
	products := catalog.NewStore(db)
	carts := cart.NewService(db, recorder, logger)
	engine := orders.NewEngine(db, recorder, logger)

	fmt.Println("⚙️  Setting up server...")
	srv := server.NewServer(cfg.Server, server.Deps{
		DB:       db,
		Sessions: sessions.NewService(db, recorder),
		Chat: chat.NewService(chat.Deps{
			Sessions: db,
			Resolver: resolver,
			Memory:   store,
			Matcher:  catalog.NewMatcher(products, logger),
			Cart:     carts,
			Recorder: recorder,
			Logger:   logger,
		}),
		Events:   events,
		Catalog:  products,
		Cart:     carts,
		Orders:   engine,
		Operator: orders.NewOperator(engine, generator, cfg.NLU.Timeout, logger),
		Resolver: resolver,
		Recorder: recorder,
	}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Printf("🌐 Starting server on %s...\n", cfg.Server.Addr)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.Limiter().Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Println("🛑 Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Audit.DrainTimeout)
		defer cancelDrain()
		if cerr := recorder.Close(drainCtx); cerr != nil {
			logger.Warn("audit queue not fully drained", zap.Error(cerr), zap.Any("stats", recorder.Stats()))
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Println("👋 Loom Agent stopped")
	return nil
}
