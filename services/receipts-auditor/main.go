package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/round-cube/parking-attendant/shared"
)

var (
	QueueingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "receipts_auditor_queueing_latency_seconds",
		Help:    "Time an exit event spends in RabbitMQ before being consumed by the auditor",
		Buckets: prometheus.DefBuckets,
	})

	Revenue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "receipts_auditor_revenue_total",
		Help: "Sum of local currency fees of audited exits",
	})

	AuditedExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receipts_auditor_exits_total",
		Help: "Exit events by audit result",
	}, []string{"result"})
)

type Settings struct {
	rmqURL         string
	exitsQueueName string
	workers        int
	promPort       int
	promPath       string
	logLevel       string
}

func newSettings() (Settings, error) {
	var s Settings
	var err error

	s.rmqURL, err = shared.GetEnv("RMQ_URL")
	if err != nil {
		return s, err
	}

	s.exitsQueueName = shared.GetEnvDefault("EXITS_QUEUE_NAME", "exits")
	s.workers = shared.GetEnvInt("AUDIT_WORKERS", 4)
	s.promPath = shared.GetEnvDefault("PROM_PATH", "/metrics")
	s.promPort = shared.GetEnvInt("PROM_PORT", 2113)
	s.logLevel = shared.GetEnvDefault("LOG_LEVEL", "info")
	return s, nil
}

// Audit decodes and validates one exit event.
func Audit(body []byte) (shared.Exit, error) {
	exit := shared.Exit{}
	if err := json.Unmarshal(body, &exit); err != nil {
		return exit, err
	}
	if exit.VehiclePlate == "" {
		return exit, errors.New("exit without vehicle plate")
	}

	entry, err := time.Parse(time.RFC3339, exit.EntryDateTime)
	if err != nil {
		return exit, fmt.Errorf("failed to parse entry date time: %s", err)
	}
	exitDateTime, err := time.Parse(time.RFC3339, exit.ExitDateTime)
	if err != nil {
		return exit, fmt.Errorf("failed to parse exit date time: %s", err)
	}
	if exitDateTime.Before(entry) && exit.ElapsedSeconds != 0 {
		return exit, errors.New("exit before entry billed as elapsed time")
	}
	if exit.ElapsedSeconds < 0 {
		return exit, errors.New("negative elapsed time")
	}
	if exit.Fee < 0 {
		return exit, errors.New("negative fee")
	}
	if exit.ForeignFee != nil && *exit.ForeignFee < 0 {
		return exit, errors.New("negative foreign fee")
	}
	return exit, nil
}

type Worker struct {
	Id int
}

func (w *Worker) ProcessExit(m amqp091.Delivery) error {
	exit, err := Audit(m.Body)
	if err != nil {
		return err
	}

	if ts, err := time.Parse(time.RFC3339, exit.Ts); err == nil {
		QueueingLatency.Observe(time.Since(ts).Seconds())
	}
	Revenue.Add(exit.Fee)

	fields := log.Fields{
		"worker":          w.Id,
		"vehicle_plate":   exit.VehiclePlate,
		"entry_date_time": exit.EntryDateTime,
		"exit_date_time":  exit.ExitDateTime,
		"elapsed_seconds": exit.ElapsedSeconds,
		"fee":             exit.Fee,
		"exit_id":         exit.ExitId,
	}
	if exit.ForeignFee != nil {
		fields["foreign_fee"] = *exit.ForeignFee
		fields["foreign_currency"] = exit.ForeignCurrency
	}
	log.WithFields(fields).Info("receipt audited")
	return nil
}

func (w *Worker) ProcessExits(msgs <-chan amqp091.Delivery) {
	for m := range msgs {
		if err := w.ProcessExit(m); err != nil {
			AuditedExits.WithLabelValues("rejected").Inc()
			log.Errorf("failed to audit exit: %s", err)
			m.Nack(false, false)
		} else {
			AuditedExits.WithLabelValues("accepted").Inc()
			m.Ack(false)
		}
	}
}

func main() {
	settings, err := newSettings()
	shared.InitLog(settings.logLevel)
	shared.PanicOnError(err, "failed to read settings")

	http.Handle(settings.promPath, promhttp.Handler())
	go http.ListenAndServe(fmt.Sprintf(":%d", settings.promPort), nil)
	fmt.Printf("prometheus metrics available at http://localhost:%d%s\n", settings.promPort, settings.promPath)

	ext, err := shared.NewRMQueue(settings.rmqURL, settings.exitsQueueName)
	shared.PanicOnError(err, "failed to connect to RMQ")
	defer ext.Close()

	exits, err := ext.Consume()
	shared.PanicOnError(err, "failed to consume exits")
	for i := 0; i < settings.workers; i++ {
		worker := Worker{i}
		go worker.ProcessExits(exits)
	}

	select {}
}
