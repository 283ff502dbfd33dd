/**
 * @description
 * This package handles the configuration management for the proximity-service. It uses
 * Viper to read configuration from environment variables (and an optional .env file),
 * then coerces out-of-range matching thresholds back to their defaults.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"

	defaultServerPort         = "8086"
	defaultLocationEventQueue = "proximity_service.location_updates"
	defaultSessionKeyPrefix   = "transfa:proximity"
	defaultSweepSchedule      = "@every 1m"
	defaultAmbiguousPolicy    = "business"
)

// Config holds all the configuration variables for the proximity-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort         string `mapstructure:"SERVER_PORT"`
	DatabaseURL        string `mapstructure:"DATABASE_URL"`
	RabbitMQURL        string `mapstructure:"RABBITMQ_URL"`
	LocationEventQueue string `mapstructure:"LOCATION_EVENT_QUEUE"`
	ClerkJWKSURL       string `mapstructure:"CLERK_JWKS_URL"`
	RedisURL           string `mapstructure:"REDIS_URL"`
	SessionStore       string `mapstructure:"SESSION_STORE"`
	SessionKeyPrefix   string `mapstructure:"SESSION_KEY_PREFIX"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	ExactMatchRadiusMeters    float64 `mapstructure:"EXACT_MATCH_RADIUS_METERS"`
	NearbyRadiusMeters        float64 `mapstructure:"NEARBY_RADIUS_METERS"`
	MaxRadiusMeters           float64 `mapstructure:"MAX_RADIUS_METERS"`
	NearbyLimit               int     `mapstructure:"NEARBY_LIMIT"`
	TrackingRadiusMeters      float64 `mapstructure:"TRACKING_RADIUS_METERS"`
	TrackingLimit             int     `mapstructure:"TRACKING_LIMIT"`
	MinConfidence             float64 `mapstructure:"MIN_CONFIDENCE"`
	TieWindowMeters           float64 `mapstructure:"TIE_WINDOW_METERS"`
	NotificationCooldownHours int     `mapstructure:"NOTIFICATION_COOLDOWN_HOURS"`
	IdleTimeoutSeconds        int     `mapstructure:"IDLE_TIMEOUT_SECONDS"`
	SweepSchedule             string  `mapstructure:"SWEEP_SCHEDULE"`
	AmbiguousAccountPolicy    string  `mapstructure:"AMBIGUOUS_ACCOUNT_POLICY"`
}

// LoadConfig reads configuration from environment variables from the given path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", defaultServerPort)
	viper.SetDefault("LOCATION_EVENT_QUEUE", defaultLocationEventQueue)
	viper.SetDefault("SESSION_STORE", SessionStoreMemory)
	viper.SetDefault("SESSION_KEY_PREFIX", defaultSessionKeyPrefix)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("EXACT_MATCH_RADIUS_METERS", 50.0)
	viper.SetDefault("NEARBY_RADIUS_METERS", 1000.0)
	viper.SetDefault("MAX_RADIUS_METERS", 5000.0)
	viper.SetDefault("NEARBY_LIMIT", 10)
	viper.SetDefault("TRACKING_RADIUS_METERS", 40.0)
	viper.SetDefault("TRACKING_LIMIT", 5)
	viper.SetDefault("MIN_CONFIDENCE", 0.70)
	viper.SetDefault("TIE_WINDOW_METERS", 10.0)
	viper.SetDefault("NOTIFICATION_COOLDOWN_HOURS", 24)
	viper.SetDefault("IDLE_TIMEOUT_SECONDS", 300)
	viper.SetDefault("SWEEP_SCHEDULE", defaultSweepSchedule)
	viper.SetDefault("AMBIGUOUS_ACCOUNT_POLICY", defaultAmbiguousPolicy)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("LOCATION_EVENT_QUEUE")
	_ = viper.BindEnv("CLERK_JWKS_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "PROXIMITY_REDIS_URL")
	_ = viper.BindEnv("SESSION_STORE")
	_ = viper.BindEnv("SESSION_KEY_PREFIX")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("EXACT_MATCH_RADIUS_METERS")
	_ = viper.BindEnv("NEARBY_RADIUS_METERS")
	_ = viper.BindEnv("MAX_RADIUS_METERS")
	_ = viper.BindEnv("NEARBY_LIMIT")
	_ = viper.BindEnv("TRACKING_RADIUS_METERS")
	_ = viper.BindEnv("TRACKING_LIMIT")
	_ = viper.BindEnv("MIN_CONFIDENCE")
	_ = viper.BindEnv("TIE_WINDOW_METERS")
	_ = viper.BindEnv("NOTIFICATION_COOLDOWN_HOURS")
	_ = viper.BindEnv("IDLE_TIMEOUT_SECONDS")
	_ = viper.BindEnv("SWEEP_SCHEDULE")
	_ = viper.BindEnv("AMBIGUOUS_ACCOUNT_POLICY")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.SessionKeyPrefix = strings.TrimSpace(config.SessionKeyPrefix)
	if config.SessionKeyPrefix == "" {
		config.SessionKeyPrefix = defaultSessionKeyPrefix
	}
	config.LocationEventQueue = strings.TrimSpace(config.LocationEventQueue)
	if config.LocationEventQueue == "" {
		config.LocationEventQueue = defaultLocationEventQueue
	}

	config.SessionStore = strings.ToLower(strings.TrimSpace(config.SessionStore))
	switch config.SessionStore {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		log.Printf("level=warn component=config msg=\"unknown session store; using memory\" session_store=%q", config.SessionStore)
		config.SessionStore = SessionStoreMemory
	}

	config.AmbiguousAccountPolicy = strings.ToLower(strings.TrimSpace(config.AmbiguousAccountPolicy))
	if config.AmbiguousAccountPolicy != "business" && config.AmbiguousAccountPolicy != "individual" {
		log.Printf("level=warn component=config msg=\"unknown ambiguous account policy; using business\" policy=%q", config.AmbiguousAccountPolicy)
		config.AmbiguousAccountPolicy = defaultAmbiguousPolicy
	}

	if strings.TrimSpace(config.SweepSchedule) == "" {
		config.SweepSchedule = defaultSweepSchedule
	}

	if config.ExactMatchRadiusMeters <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive exact match radius; using default\" value=%f", config.ExactMatchRadiusMeters)
		config.ExactMatchRadiusMeters = 50
	}
	if config.NearbyRadiusMeters <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive nearby radius; using default\" value=%f", config.NearbyRadiusMeters)
		config.NearbyRadiusMeters = 1000
	}
	if config.MaxRadiusMeters <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive max radius; using default\" value=%f", config.MaxRadiusMeters)
		config.MaxRadiusMeters = 5000
	}
	if config.NearbyRadiusMeters > config.MaxRadiusMeters {
		log.Printf("level=warn component=config msg=\"nearby radius above max radius; capping\" value=%f max=%f", config.NearbyRadiusMeters, config.MaxRadiusMeters)
		config.NearbyRadiusMeters = config.MaxRadiusMeters
	}
	if config.ExactMatchRadiusMeters > config.MaxRadiusMeters {
		log.Printf("level=warn component=config msg=\"exact match radius above max radius; capping\" value=%f max=%f", config.ExactMatchRadiusMeters, config.MaxRadiusMeters)
		config.ExactMatchRadiusMeters = config.MaxRadiusMeters
	}
	if config.NearbyLimit <= 0 {
		config.NearbyLimit = 10
	}
	if config.NearbyLimit > 50 {
		log.Printf("level=warn component=config msg=\"nearby limit too high; capping at 50\" value=%d", config.NearbyLimit)
		config.NearbyLimit = 50
	}
	if config.TrackingRadiusMeters <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive tracking radius; using default\" value=%f", config.TrackingRadiusMeters)
		config.TrackingRadiusMeters = 40
	}
	if config.TrackingLimit <= 0 {
		config.TrackingLimit = 5
	}
	if config.MinConfidence < 0 || config.MinConfidence > 1 {
		log.Printf("level=warn component=config msg=\"min confidence out of range; using default\" value=%f", config.MinConfidence)
		config.MinConfidence = 0.70
	}
	if config.TieWindowMeters < 0 {
		config.TieWindowMeters = 10
	}
	if config.NotificationCooldownHours <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive notification cooldown; using default\" value=%d", config.NotificationCooldownHours)
		config.NotificationCooldownHours = 24
	}
	if config.IdleTimeoutSeconds <= 0 {
		config.IdleTimeoutSeconds = 300
	}

	return
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
