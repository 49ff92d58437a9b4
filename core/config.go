package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug            bool
		TestMode         bool
		Env              string // DEV (local; default) | TEST | QA | PROD
		Build            string
		AppName          string
		SecretKey        string
		WorkDir          string
		FrontendBaseURL  string
		DefaultFromEmail string
		SendgridApiKey   string
		RollbarToken     string

		Server     serverConfig
		Database   databaseConfig
		Anthropic  anthropicConfig
		Redemption redemptionConfig
		Course     courseConfig
	}

	serverConfig struct {
		Host               string
		Addr               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	databaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	anthropicConfig struct {
		ApiKey      string
		Model       string
		MaxTokens   int
		Timeout     time.Duration
		MaxAttempts int
	}

	redemptionConfig struct {
		BaseURL string
		ApiKey  string
		Timeout time.Duration
	}

	// courseConfig holds the course pipeline policy bounds.
	courseConfig struct {
		MinChapters         int
		MaxChapters         int
		MaxRefinementRounds int
		PointsPerChapter    int
	}
)

func (c databaseConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func (c Config) DefaultFromEmailAddr() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "CourseGen")
	conf.SetDefault("secretKey", "9=bkrw2gh+-8(m*$ei&+2#ujnp-s5dgz&v=!=i69@9p3billobfc")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.addr", ":8000")
	conf.SetDefault("server.debugHost", "localhost:9000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.name", "coursegen")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	conf.SetDefault("anthropic.maxTokens", 4096)
	conf.SetDefault("anthropic.timeout", 60*time.Second)
	conf.SetDefault("anthropic.maxAttempts", 3)

	conf.SetDefault("redemption.timeout", 15*time.Second)

	conf.SetDefault("course.minChapters", 4)
	conf.SetDefault("course.maxChapters", 20)
	conf.SetDefault("course.maxRefinementRounds", 5)
	conf.SetDefault("course.pointsPerChapter", 10)

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	return &Config{
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		Env:              env,
		Build:            conf.GetString("build"),
		AppName:          conf.GetString("appName"),
		SecretKey:        conf.GetString("secretKey"),
		WorkDir:          wd,
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		DefaultFromEmail: conf.GetString("defaultFromEmail"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		Server: serverConfig{
			Host:               conf.GetString("server.host"),
			Addr:               conf.GetString("server.addr"),
			DebugHost:          conf.GetString("server.debugHost"),
			ShutdownTimeout:    conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("server.jwtExpirationDelta"),
		},
		Database: databaseConfig{
			Engine:        conf.GetString("database.engine"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Anthropic: anthropicConfig{
			ApiKey:      conf.GetString("anthropic.apiKey"),
			Model:       conf.GetString("anthropic.model"),
			MaxTokens:   conf.GetInt("anthropic.maxTokens"),
			Timeout:     conf.GetDuration("anthropic.timeout"),
			MaxAttempts: conf.GetInt("anthropic.maxAttempts"),
		},
		Redemption: redemptionConfig{
			BaseURL: conf.GetString("redemption.baseURL"),
			ApiKey:  conf.GetString("redemption.apiKey"),
			Timeout: conf.GetDuration("redemption.timeout"),
		},
		Course: courseConfig{
			MinChapters:         conf.GetInt("course.minChapters"),
			MaxChapters:         conf.GetInt("course.maxChapters"),
			MaxRefinementRounds: conf.GetInt("course.maxRefinementRounds"),
			PointsPerChapter:    conf.GetInt("course.pointsPerChapter"),
		},
	}
}
