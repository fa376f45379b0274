package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/assanpay/gateway/app/controller"
	"github.com/assanpay/gateway/app/provider"
	"github.com/assanpay/gateway/app/repository"
	"github.com/assanpay/gateway/app/service"
	"github.com/assanpay/gateway/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the Echo HTTP server exposing payin, payout, callback and status inquiry endpoints.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, paymentService, cleanup := mustCreatePaymentService()
	defer cleanup()

	paymentController := controller.NewPaymentController(paymentService)
	e := setupHTTPServer(paymentController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(paymentController *controller.PaymentController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.RequestID())

	e.GET("/health", paymentController.Health)

	e.POST("/payin/:merchantId", paymentController.CreatePayin)
	e.POST("/payout/:merchantId", paymentController.CreatePayout)

	callbacks := e.Group("/callback")
	callbacks.POST("/payin/:provider", paymentController.HandlePayinCallback)
	callbacks.POST("/payout/:provider", paymentController.HandlePayoutCallback)

	inquiry := e.Group("/status-inquiry")
	inquiry.GET("/payin", paymentController.PayinStatus)
	inquiry.GET("/payout", paymentController.PayoutStatus)

	return e
}

func mustCreatePaymentService() (*config.Config, *service.PaymentService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	txRepo := repository.NewTransactionRepository(db)
	disbRepo := repository.NewDisbursementRepository(db)
	merchantRepo := repository.NewMerchantRepository(db)
	taskRepo := repository.NewScheduledTaskRepository(db)

	providerRegistry := provider.NewRegistry(
		provider.NewPayinXProvider(provider.PayinXConfig{
			BaseURL:     cfg.PayinX.BaseURL,
			SecretKey:   cfg.PayinX.SecretKey,
			PublicKey:   cfg.PayinX.PublicKey,
			CallbackURL: cfg.PayinX.CallbackURL,
			RedirectURL: cfg.PayinX.RedirectURL,
			HTTPTimeout: cfg.Payments.ProviderHTTPTimeout,
		}),
		provider.NewBkashSetupProvider(provider.BkashSetupConfig{
			BaseURL:     cfg.BkashSetup.BaseURL,
			HTTPTimeout: cfg.Payments.ProviderHTTPTimeout,
		}),
		provider.NewShurjoPayProvider(provider.ShurjoPayConfig{
			BaseURL:     cfg.ShurjoPay.BaseURL,
			Username:    cfg.ShurjoPay.Username,
			Password:    cfg.ShurjoPay.Password,
			Prefix:      cfg.ShurjoPay.Prefix,
			ReturnURL:   cfg.ShurjoPay.ReturnURL,
			CancelURL:   cfg.ShurjoPay.CancelURL,
			HTTPTimeout: cfg.Payments.ProviderHTTPTimeout,
		}),
		provider.NewStarPagoProvider(provider.StarPagoConfig{
			BaseURL:       cfg.StarPago.BaseURL,
			AppID:         cfg.StarPago.AppID,
			Secret:        cfg.StarPago.Secret,
			NotifyURL:     cfg.StarPago.NotifyURL,
			ReturnURL:     cfg.StarPago.ReturnURL,
			SignatureAlgo: cfg.StarPago.SignatureAlgo,
			HTTPTimeout:   cfg.Payments.ProviderHTTPTimeout,
		}),
		provider.NewLauncxProvider(provider.LauncxConfig{
			BaseURL:        cfg.Launcx.BaseURL,
			APIKey:         cfg.Launcx.APIKey,
			CallbackSecret: cfg.Launcx.CallbackSecret,
			HTTPTimeout:    cfg.Payments.ProviderHTTPTimeout,
		}),
	)
	logrus.WithField("providers", providerRegistry.Names()).Info("Payment providers registered")

	paymentService := service.NewPaymentService(
		txRepo,
		disbRepo,
		merchantRepo,
		taskRepo,
		providerRegistry,
		cfg.Payments,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, paymentService, cleanup
}
