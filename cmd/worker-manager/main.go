// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"stream-monetization-workers/internal/api"
	"stream-monetization-workers/internal/common/aws"
	"stream-monetization-workers/internal/common/camunda"
	"stream-monetization-workers/internal/common/config"
	"stream-monetization-workers/internal/common/database"
	"stream-monetization-workers/internal/common/events"
	"stream-monetization-workers/internal/common/llm"
	"stream-monetization-workers/internal/common/logger"
	"stream-monetization-workers/internal/common/observability"
	"stream-monetization-workers/internal/common/payments"
	"stream-monetization-workers/internal/common/zoho"
	"stream-monetization-workers/internal/repository"

	// Campaign workers
	cc "stream-monetization-workers/internal/workers/campaign/create-campaign"
	pn "stream-monetization-workers/internal/workers/campaign/process-notifications"
	uds "stream-monetization-workers/internal/workers/campaign/update-delivery-status"

	// Chat analysis workers
	am "stream-monetization-workers/internal/workers/chat-analysis/analyze-message"
	gs "stream-monetization-workers/internal/workers/chat-analysis/generate-suggestions"
	rs "stream-monetization-workers/internal/workers/chat-analysis/resolve-suggestion"

	// Payment workers
	cp "stream-monetization-workers/internal/workers/payment/confirm-payment"
	cpi "stream-monetization-workers/internal/workers/payment/create-payment-intent"
	rp "stream-monetization-workers/internal/workers/payment/refund-payment"

	// Viewer workers
	svb "stream-monetization-workers/internal/workers/viewer/score-viewer-behavior"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// clients holds every connection and provider adapter the handlers use.
// Optional transports stay as nil interfaces when disabled.
type clients struct {
	pg        *database.PostgresClient
	es        *database.ElasticsearchClient
	redis     *database.RedisClient
	completer llm.Completer
	gateway   payments.Gateway
	email     *aws.SESClient
	sms       *aws.SNSClient
	documents *aws.S3Store
	crm       *zoho.CRMClient
	publisher events.Publisher
}

type handlers struct {
	analyzeMessage      *am.Handler
	generateSuggestions *gs.Handler
	resolveSuggestion   *rs.Handler
	scoreViewer         *svb.Handler
	createCampaign      *cc.Handler
	processSends        *pn.Handler
	updateSendStatus    *uds.Handler
	createPaymentIntent *cpi.Handler
	confirmPayment      *cp.Handler
	refundPayment       *rp.Handler
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewService(cfg.App.Name, cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	if err != nil {
		zapLog.Warn("observability partially disabled", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()

	c := connect(ctx, cfg, zapLog)
	defer c.pg.Close()
	defer c.redis.Close()
	if closer, ok := c.publisher.(*events.KafkaPublisher); ok {
		defer closer.Close()
	}

	h := buildHandlers(cfg, c, log)

	// --- Register job workers ---
	var zeebeClient zbc.Client
	var manager *camunda.Manager
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebeClient, err = camunda.Connect(ctx, camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		manager = camunda.NewManager(zeebeClient, obs, zapLog)
		registerWorkers(manager, cfg, h)
		zapLog.Info("Workers registered", zap.Int("count", manager.Count()))
	} else {
		zapLog.Info("Camunda disabled, serving HTTP only")
	}

	// --- HTTP server ---
	router := api.NewRouter(api.Options{
		Handlers: api.Handlers{
			AnalyzeMessage:      h.analyzeMessage,
			GenerateSuggestions: h.generateSuggestions,
			ResolveSuggestion:   h.resolveSuggestion,
			ScoreViewer:         h.scoreViewer,
			CreateCampaign:      h.createCampaign,
			ProcessSends:        h.processSends,
			UpdateSendStatus:    h.updateSendStatus,
			CreatePaymentIntent: h.createPaymentIntent,
			ConfirmPayment:      h.confirmPayment,
			RefundPayment:       h.refundPayment,
		},
		Readiness: map[string]api.ReadinessCheck{
			"postgres":      c.pg.Ping,
			"redis":         c.redis.Ping,
			"elasticsearch": c.es.Ping,
		},
		RequestTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
		Logger:         log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout) + 5*time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if manager != nil {
		manager.Close()
	}
	if zeebeClient != nil {
		if err := zeebeClient.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func connect(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) *clients {
	c := &clients{publisher: events.NopPublisher{}}

	// --- Init PostgreSQL with retry ---
	err := retryWithBackoff(func() error {
		var err error
		c.pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return c.pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	err = retryWithBackoff(func() error {
		var err error
		c.es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return c.es.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	err = retryWithBackoff(func() error {
		var err error
		c.redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return c.redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	zapLog.Info("Redis connected successfully")

	// --- Init External Service Clients ---
	if openai := cfg.APIs.OpenAI; openai.APIKey != "" {
		c.completer = llm.NewOpenAIClient(llm.Config{
			APIKey:      openai.APIKey,
			BaseURL:     openai.BaseURL,
			Model:       openai.Model,
			Temperature: openai.Temperature,
			MaxTokens:   openai.MaxTokens,
			Timeout:     config.GetDuration(openai.Timeout),
		})
	} else {
		zapLog.Warn("OpenAI API key not set, chat analysis uses rule-based fallback")
	}

	stripe := cfg.Integrations.Stripe
	c.gateway = payments.NewStripeGateway(stripe.SecretKey, config.GetDuration(stripe.Timeout))

	awsCfg := cfg.Integrations.AWS
	if awsCfg.SES.Enabled {
		if c.email, err = aws.NewSESClient(ctx, awsCfg.Region, awsCfg.SES.FromEmail); err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
	}
	if awsCfg.SNS.Enabled {
		if c.sms, err = aws.NewSNSClient(ctx, awsCfg.Region, awsCfg.SNS.DefaultSMSSenderID); err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
	}
	if awsCfg.S3.InvoiceBucket != "" {
		if c.documents, err = aws.NewS3Store(ctx, awsCfg.Region, awsCfg.S3.InvoiceBucket, awsCfg.S3.PublicBaseURL); err != nil {
			zapLog.Fatal("s3 client init failed", zap.Error(err))
		}
	}

	if zc := cfg.Integrations.Zoho; zc.Enabled {
		c.crm = zoho.NewCRMClient(zc.BaseURL, zc.AuthToken, 10*time.Second)
	}

	if cfg.Events.Enabled {
		publisher, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		if err != nil {
			zapLog.Fatal("kafka publisher init failed", zap.Error(err))
		}
		c.publisher = publisher
	}

	zapLog.Info("All external service clients initialized",
		zap.Bool("llm", c.completer != nil),
		zap.Bool("ses", c.email != nil),
		zap.Bool("sns", c.sms != nil),
		zap.Bool("s3", c.documents != nil),
		zap.Bool("zoho", c.crm != nil),
		zap.Bool("kafka", cfg.Events.Enabled),
	)
	return c
}

func workerTimeout(cfg *config.Config, taskType string) time.Duration {
	return config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
}

func buildHandlers(cfg *config.Config, c *clients, log logger.Logger) *handlers {
	db := c.pg.DB
	chats := repository.NewChatRepository(db)
	suggestions := repository.NewSuggestionRepository(db)
	viewers := repository.NewViewerRepository(db)
	campaigns := repository.NewCampaignRepository(db)
	registrations := repository.NewRegistrationRepository(db)
	sends := repository.NewNotificationRepository(db)
	conversions := repository.NewConversionRepository(db)

	// Nil pointers must not leak into interface fields.
	var (
		indexer  am.AnalysisIndexer
		emailTx  pn.EmailSender
		smsTx    pn.SMSSender
		docStore cp.DocumentStore
		receipts cp.EmailSender
		crm      cp.CRM
	)
	if c.es != nil {
		indexer = c.es
	}
	if c.email != nil {
		emailTx = c.email
		receipts = c.email
	}
	if c.sms != nil {
		smsTx = c.sms
	}
	if c.documents != nil {
		docStore = c.documents
	}
	if c.crm != nil {
		crm = c.crm
	}

	// --- Chat analysis ---
	amCfg := am.LoadConfig()
	amCfg.Timeout = workerTimeout(cfg, am.TaskType)
	amCfg.CacheTTL = c.redis.CacheTTL()
	amCfg.AnalysisIndex = cfg.Database.Elasticsearch.AnalysisIndex

	gsCfg := gs.LoadConfig()
	gsCfg.Timeout = workerTimeout(cfg, gs.TaskType)

	rsCfg := rs.LoadConfig()
	rsCfg.Timeout = workerTimeout(cfg, rs.TaskType)

	// --- Viewer scoring ---
	svbCfg := svb.LoadConfig()
	svbCfg.Timeout = workerTimeout(cfg, svb.TaskType)

	// --- Campaigns & delivery ---
	ccCfg := cc.LoadConfig()
	ccCfg.Timeout = workerTimeout(cfg, cc.TaskType)
	ccCfg.MaxAttempts = cfg.Delivery.MaxAttempts
	ccCfg.UnsubscribeBaseURL = cfg.Campaigns.UnsubscribeBaseURL
	ccCfg.DefaultTimezone = cfg.Campaigns.DefaultTimezone

	pnCfg := pn.LoadConfig()
	pnCfg.Timeout = workerTimeout(cfg, pn.TaskType)
	pnCfg.BatchSize = cfg.Delivery.BatchSize
	pnCfg.MaxAttempts = cfg.Delivery.MaxAttempts
	pnCfg.ClaimLease = config.GetDuration(cfg.Delivery.ClaimLease)
	pnCfg.SendTimeout = config.GetDuration(cfg.Delivery.SendTimeout)

	udsCfg := uds.LoadConfig()
	udsCfg.Timeout = workerTimeout(cfg, uds.TaskType)

	// --- Payments ---
	cpiCfg := cpi.LoadConfig()
	cpiCfg.Timeout = workerTimeout(cfg, cpi.TaskType)
	cpiCfg.DefaultCurrency = cfg.Payments.DefaultCurrency
	cpiCfg.AIContribution = cfg.Payments.AIContribution

	cpCfg := cp.LoadConfig()
	cpCfg.Timeout = workerTimeout(cfg, cp.TaskType)
	cpCfg.TaxRate = cfg.Payments.TaxRate
	cpCfg.InvoiceFromEmail = cfg.Payments.InvoiceFromEmail
	if cfg.Payments.InvoiceIssuerName != "" {
		cpCfg.InvoiceIssuerName = cfg.Payments.InvoiceIssuerName
	}

	rpCfg := rp.LoadConfig()
	rpCfg.Timeout = workerTimeout(cfg, rp.TaskType)

	return &handlers{
		analyzeMessage:      am.NewHandler(amCfg, c.completer, chats, indexer, c.redis.Client, log),
		generateSuggestions: gs.NewHandler(gsCfg, c.completer, suggestions, log),
		resolveSuggestion:   rs.NewHandler(rsCfg, suggestions, log),
		scoreViewer:         svb.NewHandler(svbCfg, viewers, log),
		createCampaign: cc.NewHandler(cc.HandlerOptions{
			Config:        ccCfg,
			Campaigns:     campaigns,
			Registrations: registrations,
			Publisher:     c.publisher,
			Logger:        log,
		}),
		processSends: pn.NewHandler(pn.HandlerOptions{
			Config: pnCfg,
			Store:  sends,
			Email:  emailTx,
			SMS:    smsTx,
			Logger: log,
		}),
		updateSendStatus:    uds.NewHandler(udsCfg, sends, log),
		createPaymentIntent: cpi.NewHandler(cpiCfg, c.gateway, conversions, log),
		confirmPayment: cp.NewHandler(cp.HandlerOptions{
			Config:        cpCfg,
			Gateway:       c.gateway,
			Conversions:   conversions,
			Viewers:       viewers,
			Registrations: registrations,
			Suggestions:   suggestions,
			Documents:     docStore,
			Email:         receipts,
			Publisher:     c.publisher,
			CRM:           crm,
			Logger:        log,
		}),
		refundPayment: rp.NewHandler(rpCfg, c.gateway, conversions, c.publisher, log),
	}
}

func registerWorkers(m *camunda.Manager, cfg *config.Config, h *handlers) {
	m.Start(am.TaskType, config.GetWorkerConfig(cfg, am.TaskType), h.analyzeMessage.Handle)
	m.Start(gs.TaskType, config.GetWorkerConfig(cfg, gs.TaskType), h.generateSuggestions.Handle)
	m.Start(rs.TaskType, config.GetWorkerConfig(cfg, rs.TaskType), h.resolveSuggestion.Handle)
	m.Start(svb.TaskType, config.GetWorkerConfig(cfg, svb.TaskType), h.scoreViewer.Handle)

	m.Start(cc.TaskType, config.GetWorkerConfig(cfg, cc.TaskType), h.createCampaign.Handle)
	m.Start(pn.TaskType, config.GetWorkerConfig(cfg, pn.TaskType), h.processSends.Handle)
	m.Start(uds.TaskType, config.GetWorkerConfig(cfg, uds.TaskType), h.updateSendStatus.Handle)

	m.Start(cpi.TaskType, config.GetWorkerConfig(cfg, cpi.TaskType), h.createPaymentIntent.Handle)
	m.Start(cp.TaskType, config.GetWorkerConfig(cfg, cp.TaskType), h.confirmPayment.Handle)
	m.Start(rp.TaskType, config.GetWorkerConfig(cfg, rp.TaskType), h.refundPayment.Handle)
}
