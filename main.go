package main

import (
	"context"
	"errors"
	"flag"
	"fleet-push-service/conf"
	"fleet-push-service/controller"
	"fleet-push-service/logger"
	"fleet-push-service/major"
	"fleet-push-service/models"
	"fleet-push-service/service/expo_service"
	"fleet-push-service/service/fcm_service"
	"fleet-push-service/service/firestore_service"
	"fleet-push-service/service/pebble_service"
	pushcenter "fleet-push-service/service/push_center"
	"fleet-push-service/service/push_service"
	"fleet-push-service/service/socket_client_service"
	"fleet-push-service/service/sql_service"
	"fleet-push-service/service/traccar_service"
	"fleet-push-service/tool"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// firebaseApp 存储与 FCM 共用同一个 Firebase 应用，按需初始化
type firebaseApp struct {
	app *firebase.App
}

func (f *firebaseApp) get(ctx context.Context) (*firebase.App, error) {
	if f.app != nil {
		return f.app, nil
	}
	app, err := major.InitFirebaseApp(ctx)
	if err != nil {
		return nil, err
	}
	f.app = app
	return app, nil
}

func initTokenStore(ctx context.Context, fb *firebaseApp, log *zap.Logger) (push_service.TokenDocumentStore, error) {
	collection := tool.StringWithDefault(conf.StoreCollection, models.CollectionUserTokens)

	switch driver := tool.StringWithDefault(conf.StoreDriver, "pebble"); driver {
	case "pebble":
		return pebble_service.InitializeGlobalService(&pebble_service.Config{
			DBPath:     tool.StringWithDefault(conf.PebbleDBPath, "./data/pebble"),
			Collection: collection,
		}, log)
	case "firestore":
		app, err := fb.get(ctx)
		if err != nil {
			return nil, err
		}
		return firestore_service.NewFirestoreService(ctx, app, collection, log)
	case "mysql":
		if err := major.InitSqlConfig(); err != nil {
			return nil, err
		}
		store := sql_service.NewSqlService(major.GetSqlDB(), log)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func platformHints() models.PlatformHints {
	defaults := models.DefaultPlatformHints()
	return models.PlatformHints{
		AndroidChannelID: tool.StringWithDefault(conf.PushAndroidChannelID, defaults.AndroidChannelID),
		Priority:         tool.StringWithDefault(conf.PushPriority, defaults.Priority),
		Sound:            tool.StringWithDefault(conf.PushSound, defaults.Sound),
		Badge:            tool.IntWithDefault(conf.PushBadge, defaults.Badge),
		ClickAction:      tool.StringWithDefault(conf.PushClickAction, defaults.ClickAction),
		WebIcon:          tool.StringWithDefault(conf.PushWebIcon, defaults.WebIcon),
		WebBadge:         tool.StringWithDefault(conf.PushWebBadge, defaults.WebBadge),
	}
}

func initTransport(ctx context.Context, fb *firebaseApp, log *zap.Logger) (push_service.PushTransport, error) {
	hints := platformHints()
	if err := hints.Validate(); err != nil {
		return nil, err
	}

	switch provider := tool.StringWithDefault(conf.PushProvider, push_service.ProviderTypeFCM); provider {
	case push_service.ProviderTypeFCM:
		app, err := fb.get(ctx)
		if err != nil {
			return nil, err
		}
		return fcm_service.NewFCMService(ctx, app, hints, log)
	case push_service.ProviderTypeExpo:
		return expo_service.NewService(&expo_service.Config{
			AccessToken: conf.ExpoAccessToken,
			MaxRetries:  tool.IntWithDefault(conf.ExpoMaxRetries, 3),
			BaseDelay:   tool.ParseDuration(conf.ExpoBaseDelay, time.Second),
			Hints:       hints,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown push provider %q", provider)
	}
}

// initResolver 创建设备到用户的解析器，配置了 Redis 时加一层缓存
func initResolver(ctx context.Context, log *zap.Logger) (*traccar_service.Client, push_service.IdentityResolver, *redis.Client, error) {
	client, err := traccar_service.NewClient(&traccar_service.Config{
		APIURL:   conf.TraccarAPIURL,
		Email:    conf.TraccarEmail,
		Password: conf.TraccarPassword,
		Timeout:  tool.ParseDuration(conf.TraccarTimeout, traccar_service.DefaultTimeout),
	}, log)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("traccar resolver configured", zap.String("server", client.BaseURL()))
	if conf.RedisAddr == "" {
		return client, client, nil, nil
	}

	rdb, err := traccar_service.NewRedisClient(ctx, conf.RedisAddr, conf.RedisPassword, conf.RedisDB)
	if err != nil {
		return nil, nil, nil, err
	}
	ttl := tool.ParseDuration(conf.RedisIdentityTTL, 10*time.Minute)
	log.Info("identity cache enabled", zap.String("redis", conf.RedisAddr), zap.Duration("ttl", ttl))
	return client, traccar_service.NewCachedResolver(client, rdb, ttl, log), rdb, nil
}

func initPushCenter(ctx context.Context, log *zap.Logger) (*pushcenter.PushCenter, *redis.Client) {
	fb := &firebaseApp{}

	store, err := initTokenStore(ctx, fb, log)
	if err != nil {
		log.Fatal("init token store failed", zap.Error(err))
	}
	transport, err := initTransport(ctx, fb, log)
	if err != nil {
		log.Fatal("init push transport failed", zap.Error(err))
	}

	manager := push_service.NewManager(store, transport, push_service.Config{
		StoreTimeout:    tool.ParseDuration(conf.StoreTimeout, 5*time.Second),
		DeliveryTimeout: tool.ParseDuration(conf.PushTimeout, 10*time.Second),
	}, push_service.NewMetrics(prometheus.DefaultRegisterer), log)

	traccarClient, resolver, rdb, err := initResolver(ctx, log)
	if err != nil {
		log.Fatal("init traccar resolver failed", zap.Error(err))
	}

	config := &pushcenter.Config{
		MaxConcurrentEvents: tool.IntWithDefault(conf.TraccarMaxEvents, pushcenter.DefaultMaxConcurrentEvents),
	}
	if conf.TraccarSocketEnabled {
		config.SocketConfig = &socket_client_service.Config{
			ServerURL: conf.TraccarAPIURL,
			Timeout:   tool.ParseDuration(conf.TraccarTimeout, socket_client_service.DefaultTimeout),
		}
	}

	pushCenter := pushcenter.NewPushCenter(config, manager, resolver, traccarClient, log)
	pushCenter.SetDeviceDirectory(traccarClient)
	if err := pushCenter.Initialize(); err != nil {
		log.Fatal("init push center failed", zap.Error(err))
	}
	if err := pushCenter.Run(); err != nil {
		log.Fatal("start push center failed", zap.Error(err))
	}
	log.Info("push center started",
		zap.String("store", tool.StringWithDefault(conf.StoreDriver, "pebble")),
		zap.String("transport", manager.TransportName()),
		zap.Bool("socket", conf.TraccarSocketEnabled))
	return pushCenter, rdb
}

// Package main
// @title 车队推送服务 API
// @version 1.0
// @description Traccar 车队平台的推送令牌登记与事件通知服务
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-KEY
func main() {
	var env string
	flag.StringVar(&env, "env", "example", "env config: mainnet, testnet, local, example")
	flag.Parse()

	conf.SystemEnvironmentEnum = conf.ParseEnvironment(env)
	conf.InitConfig("")

	logger.Init(conf.LogLevel, conf.LogEnvironment)
	defer logger.Sync()
	log := logger.L()
	log.Info("run fleet-push-service", zap.String("env", env))

	ctx := context.Background()
	pushCenter, rdb := initPushCenter(ctx, log)

	router := controller.NewRouter(controller.NewPushController(pushCenter, log), controller.RouterConfig{
		APIKey: conf.APIKey,
		Log:    log,
	})
	server := controller.NewServer(router, tool.StringWithDefault(conf.Port, "3000"))
	go func() {
		log.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown failed", zap.Error(err))
	}
	if err := pushCenter.Stop(); err != nil {
		log.Warn("push center stop failed", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
