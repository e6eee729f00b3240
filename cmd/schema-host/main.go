// cmd/schema-host/main.go
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

	"go.uber.org/zap"

	"schema-host/internal/access"
	"schema-host/internal/billing"
	"schema-host/internal/catalog"
	"schema-host/internal/common/auth"
	"schema-host/internal/common/aws"
	"schema-host/internal/common/camunda"
	"schema-host/internal/common/config"
	"schema-host/internal/common/database"
	commonhttp "schema-host/internal/common/http"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/metrics"
	"schema-host/internal/common/observability"
	"schema-host/internal/common/validation"
	"schema-host/internal/completion"
	"schema-host/internal/dispatch"
	"schema-host/internal/gateway"
	"schema-host/internal/generation"
	"schema-host/internal/repository"
	"schema-host/internal/schemastore"

	// Auth (2)
	authn "schema-host/internal/workers/auth/authenticate"
	authz "schema-host/internal/workers/auth/authorize"

	// Schemas (3)
	ds "schema-host/internal/workers/schemas/delete-schemas"
	ss "schema-host/internal/workers/schemas/search-schemas"
	us "schema-host/internal/workers/schemas/upload-schemas"

	// LLM (2)
	gs "schema-host/internal/workers/llm/generate-schemas"
	po "schema-host/internal/workers/llm/preload-object"

	// Tenants (4)
	ad "schema-host/internal/workers/tenants/admin-delete"
	cu "schema-host/internal/workers/tenants/create-user"
	ms "schema-host/internal/workers/tenants/manage-scopes"
	rt "schema-host/internal/workers/tenants/register-tenant"

	// Billing (3)
	as "schema-host/internal/workers/billing/account-status"
	bs "schema-host/internal/workers/billing/bill-storage"
	dt "schema-host/internal/workers/billing/debit-tokens"
)

const (
	identityTimeout = 10 * time.Second
	meterTimeout    = 10 * time.Second
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

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting schema host...", zap.String("version", cfg.App.Version))

	obs := observability.New(cfg.App.Name, nil, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Object storage and meter topic ---
	s3Client, err := aws.NewS3Client(ctx, cfg.Storage.Region, cfg.Storage.Endpoint)
	if err != nil {
		zapLog.Fatal("s3 client init failed", zap.Error(err))
	}
	snsClient, err := aws.NewSNSClient(ctx, cfg.Storage.Region)
	if err != nil {
		zapLog.Fatal("sns client init failed", zap.Error(err))
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	repo := repository.New(pg.DB)
	if err := repo.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := esClient.Ping(ctx); err != nil {
			return err
		}
		return esClient.EnsureIndex(ctx, cfg.Database.Elasticsearch.CatalogIndex, catalog.IndexMapping)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Domain services ---
	httpClient := commonhttp.NewClient(0)
	google := auth.NewGoogleVerifier(cfg.Auth.Google.UserInfoURL, httpClient, identityTimeout)
	guard := access.NewGuard(repo, repo, google, log)

	schemaCatalog := catalog.New(esClient.Client, cfg.Database.Elasticsearch.CatalogIndex, log)
	store := schemastore.New(s3Client, cfg.Storage.Bucket, cfg.Storage.Prefix)
	publisher := schemastore.NewPublisher(store, schemaCatalog, log)
	resolver := generation.NewResolver(store, log)

	llmClient := completion.NewClient(completion.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     config.GetDuration(cfg.LLM.GenerationTimeout),
	}, httpClient, log)
	schemaWriter := llmClient.WithOptions(completion.CallOptions{
		MaxTokens: cfg.LLM.SchemaMaxTokens,
		Timeout:   config.GetDuration(cfg.LLM.AuxiliaryTimeout),
	})

	var validator generation.Validator
	if cfg.Generation.ValidationEnabled {
		validator = validation.NewStoreValidator(validation.WithRefNormalizer(generation.NormalizeID))
	} else {
		zapLog.Warn("generated objects will not be validated against tenant schemas")
	}
	engine := generation.NewEngine(llmClient, validator, log,
		generation.WithMaxAttempts(cfg.Generation.MaxAttempts),
		generation.WithAttemptObserver(func(a generation.Attempt) {
			metrics.GenerationAttempts.WithLabelValues(string(a.Outcome)).Inc()
		}),
	)

	ledger := billing.NewLedger(repo, rdb.Client, config.GetDuration(cfg.Billing.CacheTTL), log)
	storageBiller := billing.NewStorageBiller(repo, store, snsClient, billing.StorageConfig{
		TopicARN:       cfg.Billing.MeterTopicARN,
		EventName:      cfg.Billing.MeterEventName,
		MBPerToken:     int64(cfg.Billing.StorageMBPerToken),
		PublishTimeout: meterTimeout,
	}, log)

	zapLog.Info("All domain services initialized")

	// --- START: Register ALL 14 request kinds ---
	d := dispatch.New(log, dispatch.WithObservability(obs))
	register := func(kind dispatch.Kind, h dispatch.Handler) {
		if !config.IsWorkerEnabled(cfg, kind.String()) {
			zapLog.Info("request kind disabled", zap.String("kind", kind.String()))
			return
		}
		wcfg := config.GetWorkerConfig(cfg, kind.String())
		d.Register(kind, dispatch.WithTimeout(h, config.GetDuration(wcfg.Timeout)))
	}

	// --- 1. Schemas (3) ---
	{
		h := us.NewHandler(&us.Config{PaymentEnforced: cfg.Billing.PaymentEnforced}, publisher, guard, repo, log)
		register(dispatch.KindUploadSchemas, dispatch.Typed(us.InputSchema, h.Execute))
	}
	{
		h := ds.NewHandler(publisher, log)
		register(dispatch.KindDeleteSchemas, dispatch.Typed(ds.InputSchema, h.Execute))
	}
	{
		h := ss.NewHandler(schemaCatalog, log)
		register(dispatch.KindSearchSchemas, dispatch.Typed(ss.InputSchema, h.Execute))
	}

	// --- 2. LLM (2) ---
	{
		h := gs.NewHandler(&gs.Config{OperationCost: int64(cfg.Billing.OperationCost)}, schemaWriter, publisher, ledger, log)
		register(dispatch.KindGenerateSchemas, dispatch.Typed(gs.InputSchema, h.Execute))
	}
	{
		h := po.NewHandler(&po.Config{OperationCost: int64(cfg.Billing.OperationCost)}, resolver, engine, ledger, log)
		register(dispatch.KindPreloadObject, dispatch.Typed(po.InputSchema, h.Execute))
	}

	// --- 3. Auth (2) ---
	{
		h := authn.NewHandler(guard, repo, log)
		register(dispatch.KindAuthenticate, dispatch.Typed(authn.InputSchema, h.Execute))
	}
	{
		h := authz.NewHandler(guard, log)
		register(dispatch.KindAuthorize, dispatch.Typed(authz.InputSchema, h.Execute))
	}

	// --- 4. Tenants (4) ---
	{
		h := rt.NewHandler(guard, repo, log)
		register(dispatch.KindRegister, dispatch.Typed(rt.InputSchema, h.Execute))
	}
	{
		h := cu.NewHandler(guard, repo, log)
		register(dispatch.KindCreateUser, dispatch.Typed(cu.InputSchema, h.Execute))
	}
	{
		h := ad.NewHandler(&ad.Config{RootTenant: cfg.Auth.RootTenant}, guard, store, repo, schemaCatalog, ledger, log)
		register(dispatch.KindAdminDelete, dispatch.Typed(ad.InputSchema, h.Execute))
	}
	{
		h := ms.NewHandler(guard, repo, log)
		register(dispatch.KindManageScopes, dispatch.Typed(ms.InputSchema, h.Execute))
	}

	// --- 5. Billing (3) ---
	{
		h := dt.NewHandler(&dt.Config{PaymentEnforced: cfg.Billing.PaymentEnforced}, ledger, log)
		register(dispatch.KindDebitTokens, dispatch.Typed(dt.InputSchema, h.Execute))
	}
	{
		h := as.NewHandler(repo, log)
		register(dispatch.KindAccountStatus, dispatch.Typed(as.InputSchema, h.Execute))
	}
	{
		h := bs.NewHandler(storageBiller, log)
		register(dispatch.KindBillStorage, dispatch.Typed(nil, h.Execute))
	}
	zapLog.Info("Request kinds registered", zap.Int("count", len(d.Registered())))

	deps := []database.Pinger{pg, rdb, esClient}

	// --- Optional Zeebe job workers ---
	var runner *camunda.Runner
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
		deps = append(deps, zeebe)

		runner = camunda.NewRunner(d, config.GetDuration(cfg.Camunda.RequestTimeout), log)
		for _, kind := range d.Registered() {
			wcfg := config.GetWorkerConfig(cfg, kind.String())
			if wcfg.MaxJobsActive <= 0 {
				wcfg.MaxJobsActive = cfg.Camunda.MaxJobsActive
			}
			runner.Start(zeebe.GetClient(), kind, wcfg)
		}
	}

	// --- Health & Metrics Server ---
	ops := &http.Server{
		Addr:    cfg.HTTP.OpsAddress,
		Handler: gateway.OpsHandler(cfg.App.Version, deps...),
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", ops.Addr))
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Request gateway ---
	server := gateway.NewServer(gateway.Config{
		Address:      cfg.HTTP.Address,
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
		AllowOrigins: cfg.HTTP.AllowOrigins,
	}, d, log)
	go func() {
		zapLog.Info("Gateway listening", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("Gateway failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping gateway", zap.Error(err))
	}
	if runner != nil {
		runner.Close()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := ops.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping ops server", zap.Error(err))
	}

	zapLog.Info("Schema host stopped gracefully")
}
