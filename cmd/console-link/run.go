package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/RedHatInsights/console-link/internal/api"
	"github.com/RedHatInsights/console-link/internal/config"
	"github.com/RedHatInsights/console-link/internal/csrf"
	"github.com/RedHatInsights/console-link/internal/platform/logger"
	"github.com/RedHatInsights/console-link/internal/platform/utils"
	"github.com/RedHatInsights/console-link/internal/platform/utils/tls_utils"
	"github.com/RedHatInsights/console-link/internal/realtime"
	"github.com/RedHatInsights/console-link/internal/router"

	"github.com/gorilla/mux"
	"github.com/redhatinsights/platform-go-middlewares/v2/request_id"
	"github.com/sirupsen/logrus"
)

func buildAcquirer(cfg *config.Config, jar http.CookieJar) (*csrf.Acquirer, *csrf.Guard, error) {
	bootstrapUrl, err := csrf.BuildBootstrapUrl(cfg.ApiBaseUrl, cfg.CsrfBootstrapPath)
	if err != nil {
		return nil, nil, err
	}

	store := csrf.NewCookieTokenStore(jar, bootstrapUrl, cfg.CsrfCookieName)
	guard := csrf.NewGuard(nil, store, cfg.CsrfHeaderName)
	client := csrf.NewGuardedClient(jar, guard)

	acquirer := csrf.NewAcquirer(client, bootstrapUrl, store, guard,
		csrf.WithMaxAttempts(cfg.CsrfMaxAttempts),
		csrf.WithRetryBaseDelay(cfg.CsrfRetryBaseDelay),
		csrf.WithSettleDelay(cfg.CsrfSettleDelay),
		csrf.WithRenewalInterval(cfg.CsrfRenewalInterval),
	)

	return acquirer, guard, nil
}

func buildWebsocketDialer(cfg *config.Config, jar http.CookieJar) (*realtime.WebsocketDialer, error) {
	opts := []realtime.DialerOptionFunc{
		realtime.WithHandshakeTimeout(cfg.WebsocketHandshakeTimeout),
		realtime.WithOrigin(cfg.OriginScheme + "://" + cfg.OriginHost),
	}

	tlsConfigFuncs := tls_utils.FromFiles(cfg.WebsocketTlsCACertFile, cfg.WebsocketTlsCertFile, cfg.WebsocketTlsKeyFile, cfg.WebsocketTlsSkipVerify)
	if len(tlsConfigFuncs) > 0 {
		tlsConfig, err := tls_utils.NewTlsConfig(tlsConfigFuncs...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, realtime.WithTLSConfig(tlsConfig))
	}

	return realtime.NewWebsocketDialer(jar, opts...), nil
}

func startConsoleLink(listenAddr string) {

	logger.Log.Info("Starting Console Link service")

	cfg := config.GetConfig()
	logger.Log.Info("Console Link configuration:\n", cfg)

	if err := cfg.Validate(); err != nil {
		logger.LogFatalError("Invalid configuration", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jar, err := csrf.NewCookieJar()
	if err != nil {
		logger.LogFatalError("Unable to create cookie jar", err)
	}

	acquirer, guard, err := buildAcquirer(cfg, jar)
	if err != nil {
		logger.LogFatalError("Unable to build the anti-forgery token acquirer", err)
	}
	defer acquirer.Close()

	// Without a token mutating requests are sent unguarded; keep going and let renewal retry
	if _, err := acquirer.Acquire(ctx); err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Warn("Unable to acquire the anti-forgery token at startup")
	}

	if _, err := acquirer.StartRenewal(ctx); err != nil {
		logger.LogFatalError("Unable to start anti-forgery token renewal", err)
	}

	sinks, err := buildNotificationSinks(cfg)
	if err != nil {
		logger.LogFatalError("Unable to create notification sinks", err)
	}
	defer sinks.Close()

	dialer, err := buildWebsocketDialer(cfg, jar)
	if err != nil {
		logger.LogFatalError("Unable to create websocket dialer", err)
	}

	resolver := buildAddressResolver(cfg)
	registry := realtime.NewRegistry()
	routers := api.RouterMap{}

	for _, id := range cfg.WebsocketIds {
		key := realtime.Key(cfg.WebsocketResource, id)

		history, err := router.NewHistory(cfg.MessageHistorySize)
		if err != nil {
			logger.LogFatalError("Unable to create message history", err)
		}

		rtr := router.NewRouter(key, router.DefaultDisplayPolicy(), history, sinks.Sinks(),
			router.WithSubscriberBufferSize(cfg.SubscriberBufferSize))
		routers[key] = rtr

		channel := realtime.NewChannel(cfg.WebsocketResource, id, resolver.Resolve(cfg.WebsocketResource, id), dialer, rtr,
			realtime.WithReconnectBaseInterval(cfg.WebsocketReconnectBaseInterval),
			realtime.WithMaxReconnectAttempts(cfg.WebsocketMaxReconnectAttempts),
			realtime.WithMaxBackoff(cfg.WebsocketMaxBackoff),
			realtime.WithJitter(realtime.UniformJitter(cfg.WebsocketMaxJitter)),
		)

		if err := registry.Register(ctx, channel); err != nil {
			logger.LogFatalError("Unable to register channel", err)
		}

		channel.Start(ctx)
	}

	apiMux := mux.NewRouter()
	apiMux.Use(request_id.ConfiguredRequestID(logger.RequestIdHeader))
	apiMux.Use(api.RecordHTTPMetrics)

	monitoringServer := api.NewMonitoringServer(apiMux, cfg, guard)
	monitoringServer.Routes()

	credentialServer := api.NewCredentialServer(acquirer, guard, apiMux, cfg.UrlBasePath)
	credentialServer.Routes()

	channelServer := api.NewChannelServer(registry, routers, apiMux, cfg.UrlBasePath)
	channelServer.Routes()

	apiSrv := utils.StartHTTPServer(listenAddr, "management", apiMux)

	signalChan := make(chan os.Signal, 1)

	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	logger.Log.Info("Received signal to shutdown: ", sig)

	cancel()

	for _, channel := range registry.GetAllChannels(context.Background()) {
		<-channel.Done()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HttpShutdownTimeout)
	defer shutdownCancel()

	utils.ShutdownHTTPServer(shutdownCtx, "management", apiSrv)

	logger.Log.Info("Console Link shutting down")
}
