package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServiceName string
	Port        string

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ConsulAddr     string
	GatewayService string

	JWTSecret string

	FirebaseCredentials string

	LogLevel    string
	LogFile     string
	LogMaxSize  int
	LogMaxAge   int
	LogBackups  int

	Policy PolicyConfig
}

// PolicyConfig holds every gate/dispatch knob that is policy rather than
// mechanism. Nothing in here is hardcoded by the services that consume it.
type PolicyConfig struct {
	RateLimitWindow  time.Duration
	RateLimitCeiling int

	Geofence GeofenceBox

	EmergencyKeywords  []string
	SuspiciousKeywords []string
	MinDescriptionLen  int

	UnusualHourStart int
	UnusualHourEnd   int

	ResponderNumbers map[string]string

	MaxDeliveryAttempts int
	RetryBackoffBase    time.Duration
	SweepInterval       time.Duration

	ProfileCipherKey string
}

// GeofenceBox is the configured service region's bounding box.
type GeofenceBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

func LoadConfig() *Config {
	v := viper.New()
	v.SetEnvPrefix("EMERGENCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // optional, env wins either way

	v.SetDefault("service_name", "emergency-service")
	v.SetDefault("port", "8080")

	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_db", "emergency")

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("consul_addr", "localhost:8500")
	v.SetDefault("gateway_service", "sms-gateway-service")

	v.SetDefault("jwt_secret", "")
	v.SetDefault("firebase_credentials", "serviceAccountKey.json")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size", 100)
	v.SetDefault("log_max_age", 30)
	v.SetDefault("log_backups", 5)

	v.SetDefault("policy.rate_limit_window", time.Hour)
	v.SetDefault("policy.rate_limit_ceiling", 3)

	v.SetDefault("policy.geofence.min_lat", 8.0)
	v.SetDefault("policy.geofence.max_lat", 23.5)
	v.SetDefault("policy.geofence.min_lng", 102.0)
	v.SetDefault("policy.geofence.max_lng", 110.0)

	v.SetDefault("policy.emergency_keywords", []string{
		"chest pain", "breathe", "bleeding", "unconscious", "stroke",
		"heart attack", "seizure", "choking", "accident", "fire", "help",
	})
	v.SetDefault("policy.suspicious_keywords", []string{
		"test", "testing", "lol", "joke", "prank", "ignore",
	})
	v.SetDefault("policy.min_description_len", 10)

	v.SetDefault("policy.unusual_hour_start", 2)
	v.SetDefault("policy.unusual_hour_end", 5)

	v.SetDefault("policy.responder_numbers", map[string]string{
		"medical": "115",
		"fire":    "114",
		"police":  "113",
	})

	v.SetDefault("policy.max_delivery_attempts", 5)
	v.SetDefault("policy.retry_backoff_base", 30*time.Second)
	v.SetDefault("policy.sweep_interval", 30*time.Second)

	v.SetDefault("policy.profile_cipher_key", "")

	return &Config{
		ServiceName: v.GetString("service_name"),
		Port:        v.GetString("port"),

		MongoURI: v.GetString("mongo_uri"),
		MongoDB:  v.GetString("mongo_db"),

		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),

		ConsulAddr:     v.GetString("consul_addr"),
		GatewayService: v.GetString("gateway_service"),

		JWTSecret: v.GetString("jwt_secret"),

		FirebaseCredentials: v.GetString("firebase_credentials"),

		LogLevel:   v.GetString("log_level"),
		LogFile:    v.GetString("log_file"),
		LogMaxSize: v.GetInt("log_max_size"),
		LogMaxAge:  v.GetInt("log_max_age"),
		LogBackups: v.GetInt("log_backups"),

		Policy: PolicyConfig{
			RateLimitWindow:  v.GetDuration("policy.rate_limit_window"),
			RateLimitCeiling: v.GetInt("policy.rate_limit_ceiling"),

			Geofence: GeofenceBox{
				MinLat: v.GetFloat64("policy.geofence.min_lat"),
				MaxLat: v.GetFloat64("policy.geofence.max_lat"),
				MinLng: v.GetFloat64("policy.geofence.min_lng"),
				MaxLng: v.GetFloat64("policy.geofence.max_lng"),
			},

			EmergencyKeywords:  v.GetStringSlice("policy.emergency_keywords"),
			SuspiciousKeywords: v.GetStringSlice("policy.suspicious_keywords"),
			MinDescriptionLen:  v.GetInt("policy.min_description_len"),

			UnusualHourStart: v.GetInt("policy.unusual_hour_start"),
			UnusualHourEnd:   v.GetInt("policy.unusual_hour_end"),

			ResponderNumbers: v.GetStringMapString("policy.responder_numbers"),

			MaxDeliveryAttempts: v.GetInt("policy.max_delivery_attempts"),
			RetryBackoffBase:    v.GetDuration("policy.retry_backoff_base"),
			SweepInterval:       v.GetDuration("policy.sweep_interval"),

			ProfileCipherKey: v.GetString("policy.profile_cipher_key"),
		},
	}
}
