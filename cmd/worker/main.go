// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"

	"github.com/loxys/loxys-backend/internal/config"
	"github.com/loxys/loxys-backend/internal/db"
	"github.com/loxys/loxys-backend/internal/logger"
	"github.com/loxys/loxys-backend/internal/provider"
	"github.com/loxys/loxys-backend/internal/queue"
	"github.com/loxys/loxys-backend/internal/repository"
	"github.com/loxys/loxys-backend/internal/service"
)

// drainInterval is how often the worker drains the queue on its own,
// independent of trigger messages. Deliveries left queued by a failed
// trigger get picked up here.
const drainInterval = 5 * time.Minute

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	var sms provider.SMSSender
	var email provider.EmailSender

	twilio, err := provider.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	if err != nil {
		log.Warn().Err(err).Msg("twilio not configured, using mock sms sender")
		sms = &provider.MockSender{}
	} else {
		sms = twilio
	}
	postmark, err := provider.NewPostmarkClient(cfg.PostmarkToken, cfg.PostmarkFromEmail)
	if err != nil {
		log.Warn().Err(err).Msg("postmark not configured, using mock email sender")
		email = &provider.MockSender{}
	} else {
		email = postmark
	}

	dispatcher := &service.Dispatcher{
		Deliveries: &repository.DeliveryRepository{DB: conn},
		Campaigns:  &repository.CampaignRepository{DB: conn},
		Customers:  &repository.CustomerRepository{DB: conn},
		Accounts:   &repository.AccountRepository{DB: conn},
		SMS:        sms,
		Email:      email,
		AppBaseURL: cfg.AppBaseURL,
	}

	// Periodic drain runs regardless of the broker.
	go func() {
		ticker := time.NewTicker(drainInterval)
		defer ticker.Stop()
		for range ticker.C {
			drain(dispatcher, cfg.DefaultBatchSize)
		}
	}()

	if cfg.AMQPURL == "" {
		log.Info().Msg("no AMQP_URL configured, running on periodic drain only")
		select {}
	}

	consume(dispatcher, cfg.AMQPURL, cfg.DefaultBatchSize)
}

func consume(d *service.Dispatcher, amqpURL string, defaultBatchSize int) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open channel")
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(queue.TriggerQueueName, true, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to declare queue")
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register consumer")
	}

	log.Info().Str("queue", q.Name).Msg("worker consuming dispatch triggers")

	for msg := range msgs {
		var job queue.TriggerJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			log.Error().Err(err).Msg("invalid trigger job, discarding")
			msg.Ack(false)
			continue
		}

		batchSize := job.BatchSize
		if batchSize <= 0 {
			batchSize = defaultBatchSize
		}
		drain(d, batchSize)
		msg.Ack(false)
	}

	log.Fatal().Msg("broker channel closed")
}

func drain(d *service.Dispatcher, batchSize int) {
	result, err := d.ProcessQueued(context.Background(), batchSize)
	if err != nil {
		log.Error().Err(err).Msg("dispatch batch failed")
		return
	}
	if result.Processed > 0 {
		log.Info().
			Int("processed", result.Processed).
			Int("success", result.Success).
			Int("failed", result.Failed).
			Int("skipped", result.Skipped).
			Msg("dispatch batch complete")
	}
}
