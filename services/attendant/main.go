package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/round-cube/parking-attendant/dispatch"
	"github.com/round-cube/parking-attendant/ledger"
	"github.com/round-cube/parking-attendant/notify"
	"github.com/round-cube/parking-attendant/pricing"
	"github.com/round-cube/parking-attendant/rates"
	"github.com/round-cube/parking-attendant/session"
	"github.com/round-cube/parking-attendant/shared"
)

func newLedger(s Settings) (ledger.Ledger, func()) {
	if s.ledgerBackend != backendRedis {
		mem := ledger.NewMemory()
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "attendant_open_sessions",
			Help: "Vehicles currently parked",
		}, func() float64 { return float64(mem.Len()) })
		return mem, func() {}
	}

	opt, err := redis.ParseURL(s.redisURL)
	shared.PanicOnError(err, "failed to parse redis URL")
	rds := redis.NewClient(opt)
	l, err := ledger.NewRedis(rds)
	shared.PanicOnError(err, "failed to create redis ledger")
	return l, func() { rds.Close() }
}

// newRateSource prefers a configured fixed rate over the HTTP endpoint and
// returns nil when foreign conversion is disabled.
func newRateSource(s Settings) rates.Source {
	switch {
	case s.fixedRate > 0:
		log.Infof("using fixed exchange rate %.2f", s.fixedRate)
		return rates.Static(s.fixedRate)
	case s.rateURL != "":
		return rates.NewHTTPSource(s.rateURL,
			rates.WithField(s.rateField),
			rates.WithTimeout(time.Duration(s.rateTimeoutS)*time.Second),
		)
	}
	return nil
}

func main() {
	settings, err := newSettings()
	shared.InitLog(settings.logLevel)
	shared.PanicOnError(err, "failed to read settings")

	http.Handle(settings.promPath, promhttp.Handler())
	go http.ListenAndServe(fmt.Sprintf(":%d", settings.promPort), nil)
	fmt.Printf("prometheus metrics available at http://localhost:%d%s\n", settings.promPort, settings.promPath)

	l, closeLedger := newLedger(settings)
	defer closeLedger()

	opts := []session.Option{
		session.WithLocation(settings.location),
		session.WithCurrency(settings.currencySymbol, settings.foreignCurrency),
	}

	if src := newRateSource(settings); src != nil {
		opts = append(opts, session.WithRates(src))
	} else {
		log.Info("RATE_URL is empty, receipts will not show a foreign equivalent")
	}

	if settings.rmqURL != "" {
		entr, err := shared.NewRMQueue(settings.rmqURL, settings.entrancesQueueName)
		shared.PanicOnError(err, "failed to connect to RMQ")
		defer entr.Close()
		ext, err := shared.NewRMQueue(settings.rmqURL, settings.exitsQueueName)
		shared.PanicOnError(err, "failed to connect to RMQ")
		defer ext.Close()
		opts = append(opts, session.WithRecorder(notify.NewPublisher(entr, ext, settings.foreignCurrency)))
	}

	flow := session.NewFlow(l, pricing.Engine{RatePerHour: settings.hourlyRate, Policy: settings.policy}, opts...)
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "attendant_pending_conversations",
		Help: "Users waiting to send a plate",
	}, func() float64 { return float64(flow.PendingConversations()) })

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              settings.httpAddr,
		Handler:           dispatch.NewRouter(flow),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Panicf("%s: dispatcher stopped", err)
		}
	}()
	log.WithFields(log.Fields{
		"addr":        settings.httpAddr,
		"policy":      settings.policy,
		"hourly_rate": settings.hourlyRate,
		"ledger":      settings.ledgerBackend,
		"timezone":    settings.location.String(),
	}).Info("parking attendant running")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("failed to shut down dispatcher: %s", err)
	}
}
