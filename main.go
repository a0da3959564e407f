package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"api-client/internal/circuitbreaker"
	"api-client/internal/common/cache"
	commonhttp "api-client/internal/common/http"
	"api-client/internal/common/logging"
	"api-client/internal/common/ratelimit"
	"api-client/internal/config"
	"api-client/internal/locks"
	"api-client/internal/oauth2"
	"api-client/internal/redis"
	"api-client/internal/services"
	"api-client/internal/store"
)

func main() {
	refresh := flag.Bool("refresh", false, "keep running and refresh the token before it expires")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-refresh] <path>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	logging.InitGlobalLogger()
	defer logging.MustSync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if flag.NArg() != 1 && !*refresh {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Arg(0), *refresh); err != nil {
		logging.Error("API client failed", err)
		stop()
		logging.MustSync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, path string, refresh bool) error {
	var redisClient *redis.Client
	if cfg.UsesRedis() {
		client, err := redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDBValue(),
			PoolSize: cfg.RedisPoolSizeValue(),
		})
		if err != nil {
			return err
		}
		defer client.Close()
		redisClient = client
	}

	storeConfig := store.Config{
		Type:          store.Type(cfg.TokenStoreType),
		Path:          cfg.TokenStorePath,
		DSN:           cfg.TokenStoreDSN,
		EncryptionKey: cfg.TokenEncryptionKey,
	}
	if redisClient != nil && storeConfig.Type == store.TypeRedis {
		storeConfig.Redis = redisClient
	}

	tokenStore, err := store.New[oauth2.TokenResponse](ctx, storeConfig)
	if err != nil {
		return err
	}
	defer store.Close(tokenStore)

	accessMethod, _ := oauth2.ParseAccessMethod(cfg.AccessMethod)

	// Token and API requests share the transport settings.
	httpClientFactory := commonhttp.NewDefaultHTTPClientFactory(cfg.HTTPClientOptions()...)
	if cfg.HTTPInsecureSkipVerify {
		logging.Warn("TLS certificate verification is disabled",
			logging.Bool("insecure_skip_verify", true),
		)
	}

	init := oauth2.NewFlowInitializer(cfg.AuthURL, cfg.TokenURL)
	init.ClientSecrets = oauth2.ClientSecrets{ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret}
	init.Scopes = cfg.ScopeList()
	init.DataStore = tokenStore
	init.AccessMethod = accessMethod
	init.HTTPClientFactory = httpClientFactory
	init.CircuitBreaker = circuitbreaker.NewGoBreaker("token-endpoint", circuitbreaker.TokenEndpointConfig, nil)

	flow, err := oauth2.NewAuthorizationCodeFlow(init)
	if err != nil {
		return err
	}

	receiver := oauth2.NewLocalServerCodeReceiver(func(authorizationURL string) error {
		fmt.Printf("Open the following URL in your browser to authorize access:\n\n%s\n\n", authorizationURL)
		return nil
	})
	receiver.Addr = cfg.RedirectHost

	credential, err := oauth2.NewInstalledApp(flow, receiver).Authorize(ctx, cfg.UserID)
	if err != nil {
		return err
	}

	if refresh {
		return runRefresher(ctx, cfg, flow, redisClient)
	}

	serviceInit := services.NewInitializer()
	serviceInit.HTTPClientFactory = httpClientFactory
	serviceInit.HTTPClientInitializer = credential
	serviceInit.ApplicationName = cfg.ApplicationName
	serviceInit.GZipEnabled = cfg.GZipEnabled
	serviceInit.MaxURLLength = cfg.MaxURLLengthValue()
	serviceInit.CircuitBreaker = circuitbreaker.NewGoBreaker(cfg.APIName, circuitbreaker.APIConfig, nil)
	if rps := cfg.RequestsPerSecondValue(); rps > 0 {
		limiter, err := ratelimit.NewLocalLimiter(ratelimit.Config{RequestsPerSecond: rps})
		if err != nil {
			return err
		}
		serviceInit.RateLimiter = limiter
	}

	cacheConfig := cache.DefaultConfig()
	cacheConfig.Type = cache.Type(cfg.ResponseCacheType)
	cacheConfig.TTL = cfg.ResponseCacheTTLValue()
	if redisClient != nil {
		cacheConfig.RedisClient = redisClient.GetGoRedisClient()
	}
	responseCache, err := cache.New(cacheConfig)
	if err != nil {
		return err
	}
	serviceInit.ResponseCache = responseCache
	serviceInit.ResponseCacheTTL = cacheConfig.TTL

	service, err := services.NewBaseClientService(services.ServiceMetadata{
		Name:     cfg.APIName,
		BaseURI:  cfg.APIBaseURI,
		BasePath: cfg.APIBasePath,
		Features: cfg.FeatureList(),
	}, serviceInit)
	if err != nil {
		return err
	}

	body, err := services.NewRequest[string](service, http.MethodGet, path).Execute(ctx)
	if err != nil {
		return err
	}
	fmt.Println(body)
	return nil
}

func runRefresher(ctx context.Context, cfg *config.Config, flow *oauth2.AuthorizationCodeFlow, redisClient *redis.Client) error {
	var locker locks.Locker = locks.NewLocalLocker()
	if redisClient != nil {
		redsyncLocker, err := locks.NewRedsyncLocker(redisClient)
		if err != nil {
			return err
		}
		locker = redsyncLocker
	}

	refresherConfig := oauth2.DefaultRefresherConfig()
	refresherConfig.Schedule = cfg.RefreshSchedule

	refresher, err := oauth2.NewRefresher(flow, locker, refresherConfig)
	if err != nil {
		return err
	}
	refresher.Register(cfg.UserID)

	if err := refresher.Start(ctx); err != nil {
		return err
	}
	logging.Info("Refreshing tokens in the background, press Ctrl+C to stop",
		logging.String("user_id", cfg.UserID),
		logging.String("schedule", cfg.RefreshSchedule),
	)

	<-ctx.Done()
	refresher.Stop()
	return nil
}
