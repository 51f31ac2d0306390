package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	flags "github.com/jessevdk/go-flags"

	"github.com/stllok/kurumisan-stock-game/internal/config"
	"github.com/stllok/kurumisan-stock-game/internal/coordinator"
	"github.com/stllok/kurumisan-stock-game/internal/dispatch"
	"github.com/stllok/kurumisan-stock-game/internal/facade"
	"github.com/stllok/kurumisan-stock-game/internal/priceengine"
	"github.com/stllok/kurumisan-stock-game/pkg/api"
	"github.com/stllok/kurumisan-stock-game/pkg/handlers"
	"github.com/stllok/kurumisan-stock-game/pkg/obs"
)

type cliOptions struct {
	Port       int    `short:"p" long:"port" description:"port for the HTTP server" required:"true"`
	ConfigPath string `short:"c" long:"config" description:"path to a YAML config overlay"`
}

func main() {
	var opts cliOptions
	if _, err := flags.Parse(&opts); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			return
		}
		panic(err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		panic(fmt.Errorf("loading config: %w", err))
	}

	obsClient := obs.New()
	ctx, cancel := context.WithCancel(context.Background())

	clock := priceengine.SystemClock{}
	rng := priceengine.NewMathRNG(time.Now().UnixNano())

	pool := dispatch.New(cfg, clock, rng)
	for _, seed := range cfg.Items {
		if err := pool.Spawn(seed.ItemID, seed.InitialPrice); err != nil {
			obsClient.LogAlert(ctx, "failed to spawn item=%s: %v", seed.ItemID, err)
		}
	}

	coord := coordinator.New(cfg, pool, clock, obsClient)
	coord.Start()

	fac := facade.New(pool, coord, cfg.StartingBalance)
	handler := handlers.New(fac, coord, obsClient)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}

			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(code).SendString(err.Error())
		},
		EnableTrustedProxyCheck: true,
	})
	app.Use(cors.New())

	var router fiber.Router = app
	api.New(router, handler, obsClient)

	addr := fmt.Sprintf(":%d", opts.Port)
	obsClient.LogNotice(ctx, "market engine starting, listening on %s, items=%s", addr, itemList(cfg))

	sigterm := make(chan os.Signal, 1)
	var wg sync.WaitGroup
	signal.Notify(sigterm, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigterm
		obsClient.LogNotice(ctx, "received SIGTERM, shutting down gracefully")
		cancel()

		wg.Add(1)
		time.Sleep(3 * time.Second)
		go func() {
			defer wg.Done()
			if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
				obsClient.LogAlert(ctx, "error shutting down gracefully: %v", err)
			}
			coord.Stop()
			pool.Stop()
		}()
	}()

	go func() {
		if err := app.Listen(addr); err != nil {
			obsClient.LogAlert(ctx, "error starting server: %v", err)
		}
	}()

	<-ctx.Done()
	wg.Wait()

	obsClient.LogNotice(ctx, "server shut down")
}

func itemList(cfg config.Config) string {
	ids := make([]string, 0, len(cfg.Items))
	for _, seed := range cfg.Items {
		ids = append(ids, seed.ItemID)
	}
	return strings.Join(ids, ",")
}
