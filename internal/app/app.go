package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/auth"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/coupongate"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/referral"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/handler"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/hook"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/pkg/health"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.Bool("redis", cfg.RedisURL != ""),
	)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	st, err := openStores(ctx, lg, cfg, loc)
	if err != nil {
		return err
	}
	defer st.Close()

	healthSvc := health.New()
	for name, p := range st.pingers {
		healthSvc.AddReadinessCheck(name, 5*time.Second, health.PingCheck(name, p))
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	gate, err := coupongate.NewGate(
		coupongate.Config{Option: cfg.Gate.Option},
		st.carts,
		st.settings,
		lg,
		m.MeterProvider().Meter("coupongate"),
	)
	if err != nil {
		return errors.Wrap(err, "create coupon gate")
	}
	calc, err := referral.NewCalculator(st.orders, st.orders, loc, lg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create referral calculator")
	}
	bus := hook.NewBus().Install(gate, calc)
	for _, ev := range []string{
		hook.EventCartPageRender,
		hook.EventCheckoutPageRender,
		hook.EventApplicationInit,
		hook.EventOrderProcessed,
	} {
		lg.Debug("Hook registered", zap.String("event", ev), zap.Strings("handlers", bus.Handlers(ev)))
	}

	h := handler.NewHandler(bus, calc, st.carts, auth.NewAuthenticator(st.sites, []byte(cfg.APIKeyPepper)))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", httpmiddleware.Wrap(h.Routes(),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
	))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(
			httpmiddleware.Wrap(mux,
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(zctx.From(ctx)),
				httpmiddleware.Recovery(),
				httpmiddleware.LogRequests(),
			),
			"parrainage",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}
	healthSvc.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}
