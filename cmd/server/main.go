// cmd/server/main.go
package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/loxys/loxys-backend/internal/config"
	"github.com/loxys/loxys-backend/internal/db"
	"github.com/loxys/loxys-backend/internal/handler"
	"github.com/loxys/loxys-backend/internal/logger"
	"github.com/loxys/loxys-backend/internal/provider"
	"github.com/loxys/loxys-backend/internal/queue"
	"github.com/loxys/loxys-backend/internal/repository"
	"github.com/loxys/loxys-backend/internal/service"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	// Repositories
	accountRepo := &repository.AccountRepository{DB: conn}
	customerRepo := &repository.CustomerRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	deliveryRepo := &repository.DeliveryRepository{DB: conn}
	consentRepo := &repository.ConsentRepository{DB: conn}
	unsubscribeRepo := &repository.UnsubscribeRepository{DB: conn}
	joinTokenRepo := &repository.JoinTokenRepository{DB: conn}

	// Providers; missing credentials fall back to the mock sender so
	// local development works without provider accounts.
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

	// Services
	filter := &service.EligibilityFilter{
		Unsubscribes: unsubscribeRepo,
		Consents:     consentRepo,
	}

	dispatcher := &service.Dispatcher{
		Deliveries: deliveryRepo,
		Campaigns:  campaignRepo,
		Customers:  customerRepo,
		Accounts:   accountRepo,
		SMS:        sms,
		Email:      email,
		AppBaseURL: cfg.AppBaseURL,
	}

	var trigger queue.DispatchTrigger = &queue.TriggerWithFallback{
		Fallback:          directTrigger(dispatcher),
		FallbackBatchSize: cfg.DefaultBatchSize,
	}
	if cfg.AMQPURL != "" {
		trigger = &queue.TriggerWithFallback{
			Primary:           &queue.AMQPTrigger{URL: cfg.AMQPURL},
			Fallback:          directTrigger(dispatcher),
			FallbackBatchSize: cfg.DefaultBatchSize,
		}
	}

	campaignService := &service.CampaignService{
		Campaigns:        campaignRepo,
		Customers:        customerRepo,
		Deliveries:       deliveryRepo,
		Filter:           filter,
		Trigger:          trigger,
		SMSProvider:      sms.Name(),
		EmailProvider:    email.Name(),
		TriggerBatchSize: cfg.DefaultBatchSize,
	}

	joinService := service.NewJoinService(joinTokenRepo, customerRepo, consentRepo)

	unsubscribeService := &service.UnsubscribeService{
		Unsubscribes: unsubscribeRepo,
		Customers:    customerRepo,
		Consents:     consentRepo,
	}

	inboundService := &service.InboundService{
		Customers:    customerRepo,
		Consents:     consentRepo,
		Unsubscribes: unsubscribeRepo,
	}

	// Handlers
	campaignHandler := handler.NewCampaignHandler(campaignService)
	customerHandler := handler.NewCustomerHandler(customerRepo, consentRepo, filter)
	deliveryHandler := handler.NewDeliveryHandler(dispatcher)
	joinTokenHandler := handler.NewJoinTokenHandler(joinService, cfg.AppBaseURL)
	joinHandler := handler.NewJoinHandler(joinService)
	unsubscribeHandler := handler.NewUnsubscribeHandler(unsubscribeService)
	webhookHandler := handler.NewWebhookHandler(dispatcher, inboundService, cfg.TwilioAuthToken, cfg.EmailWebhookSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Tenant-scoped routes
	r.Group(func(r chi.Router) {
		r.Use(handler.RequireAccount)

		r.Post("/campaigns", campaignHandler.CreateCampaignHandler)
		r.Get("/campaigns", campaignHandler.ListCampaignsHandler)
		r.Get("/campaigns/{id}", campaignHandler.GetCampaignHandler)
		r.Get("/campaigns/{id}/deliveries", campaignHandler.ListCampaignDeliveriesHandler)
		r.Post("/campaigns/{id}/start", campaignHandler.StartCampaignHandler)
		r.Post("/campaigns/{id}/cancel", campaignHandler.CancelCampaignHandler)
		r.Post("/campaigns/{id}/requeue-failed", campaignHandler.RequeueFailedHandler)

		r.Post("/customers", customerHandler.CreateCustomerHandler)
		r.Get("/customers", customerHandler.ListCustomersHandler)
		r.Get("/customers/{id}", customerHandler.GetCustomerHandler)
		r.Put("/customers/{id}", customerHandler.UpdateCustomerHandler)
		r.Get("/customers/{id}/consents", customerHandler.ListCustomerConsentsHandler)
		r.Get("/customers/{id}/eligibility", customerHandler.CustomerEligibilityHandler)
		r.Post("/customers/{id}/archive", customerHandler.ArchiveCustomerHandler)
		r.Post("/customers/{id}/restore", customerHandler.RestoreCustomerHandler)

		r.Post("/join-tokens", joinTokenHandler.CreateJoinTokenHandler)
		r.Get("/join-tokens", joinTokenHandler.ListJoinTokensHandler)
		r.Post("/join-tokens/{id}/activate", joinTokenHandler.ActivateJoinTokenHandler)
		r.Post("/join-tokens/{id}/deactivate", joinTokenHandler.DeactivateJoinTokenHandler)
		r.Post("/join-tokens/{id}/regenerate", joinTokenHandler.RegenerateJoinTokenHandler)
		r.Get("/join-tokens/{id}/qr", joinTokenHandler.JoinTokenQRHandler)

		r.Post("/deliveries/process", deliveryHandler.ProcessQueuedHandler)
	})

	// Public routes
	r.Get("/join/{token}", joinHandler.ResolveJoinTokenHandler)
	r.Post("/join", joinHandler.JoinHandler)
	r.Post("/unsubscribe", unsubscribeHandler.UnsubscribeRequestHandler)

	r.Post("/webhooks/sms/status", webhookHandler.SMSStatusHandler)
	r.Post("/webhooks/sms/inbound", webhookHandler.SMSInboundHandler)
	r.Post("/webhooks/email/events", webhookHandler.EmailEventsHandler)

	log.Info().Str("port", cfg.Port).Msg("server listening")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// directTrigger drains a batch in-process, used when no broker is
// configured or the broker publish fails.
func directTrigger(d *service.Dispatcher) *queue.DirectTrigger {
	return &queue.DirectTrigger{
		Process: func(ctx context.Context, batchSize int) error {
			_, err := d.ProcessQueued(ctx, batchSize)
			return err
		},
	}
}
