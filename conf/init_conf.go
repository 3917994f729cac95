package conf

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var (
	Net  string = ""
	Port string = ""

	// API Key for authentication
	APIKey = ""

	LogLevel       string = ""
	LogEnvironment string = ""

	// Token store
	StoreDriver     string = ""
	StoreTimeout    string = ""
	StoreCollection string = ""
	PebbleDBPath    string = ""

	FirebaseProjectID       string = ""
	FirebaseCredentialsFile string = ""

	RdsDsn          string = ""
	RdsMaxOpenConns int    = 0
	RdsMaxIdleConns int    = 0

	// Push Service Configuration
	PushProvider         string = ""
	PushTimeout          string = ""
	PushAndroidChannelID string = ""
	PushPriority         string = ""
	PushSound            string = ""
	PushBadge            int    = 0
	PushClickAction      string = ""
	PushWebIcon          string = ""
	PushWebBadge         string = ""

	// Expo Provider Configuration
	ExpoAccessToken string = ""
	ExpoMaxRetries  int    = 0
	ExpoBaseDelay   string = ""

	// Traccar
	TraccarAPIURL        string = ""
	TraccarEmail         string = ""
	TraccarPassword      string = ""
	TraccarTimeout       string = ""
	TraccarSocketEnabled bool   = false
	TraccarMaxEvents     int    = 0

	// Redis identity cache
	RedisAddr        string = ""
	RedisPassword    string = ""
	RedisDB          int    = 0
	RedisIdentityTTL string = ""
)

func InitConfig(configPath string) {
	if configPath == "" {
		configPath = GetYaml()
	}
	fmt.Printf("configPath:%s\n", configPath)
	viper.SetConfigFile(configPath)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}

	Net = viper.GetString("net")
	Port = viper.GetString("port")
	APIKey = viper.GetString("api_key")

	LogLevel = viper.GetString("log.level")
	LogEnvironment = viper.GetString("log.environment")

	// 读取令牌存储配置
	StoreDriver = viper.GetString("store.driver")
	StoreTimeout = viper.GetString("store.timeout")
	StoreCollection = viper.GetString("store.collection")
	PebbleDBPath = viper.GetString("pebble.db_path")

	FirebaseProjectID = viper.GetString("firebase.project_id")
	FirebaseCredentialsFile = viper.GetString("firebase.credentials_file")

	RdsDsn = viper.GetString("rds.dsn")
	RdsMaxOpenConns = viper.GetInt("rds.max_open_conns")
	RdsMaxIdleConns = viper.GetInt("rds.max_idle_conns")

	// 读取推送服务配置
	PushProvider = viper.GetString("push.provider")
	PushTimeout = viper.GetString("push.timeout")
	PushAndroidChannelID = viper.GetString("push.android_channel_id")
	PushPriority = viper.GetString("push.priority")
	PushSound = viper.GetString("push.sound")
	PushBadge = viper.GetInt("push.badge")
	PushClickAction = viper.GetString("push.click_action")
	PushWebIcon = viper.GetString("push.web_icon")
	PushWebBadge = viper.GetString("push.web_badge")

	// 读取 Expo 提供者配置
	ExpoAccessToken = viper.GetString("expo.access_token")
	ExpoMaxRetries = viper.GetInt("expo.max_retries")
	ExpoBaseDelay = viper.GetString("expo.base_delay")

	// 读取 Traccar 配置
	TraccarAPIURL = viper.GetString("traccar.api_url")
	TraccarEmail = viper.GetString("traccar.email")
	TraccarPassword = viper.GetString("traccar.password")
	TraccarTimeout = viper.GetString("traccar.timeout")
	TraccarSocketEnabled = viper.GetBool("traccar.socket_enabled")
	TraccarMaxEvents = viper.GetInt("traccar.max_concurrent_events")

	RedisAddr = viper.GetString("redis.addr")
	RedisPassword = viper.GetString("redis.password")
	RedisDB = viper.GetInt("redis.db")
	RedisIdentityTTL = viper.GetString("redis.identity_ttl")
}
