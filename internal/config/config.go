package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server      Server      `yaml:"server" env-prefix:"SERVER_"`
	Postgres    Postgres    `yaml:"postgres" env-prefix:"POSTGRES_"`
	Redis       Redis       `yaml:"redis" env-prefix:"REDIS_"`
	NowPayments NowPayments `yaml:"nowpayments" env-prefix:"NOWPAYMENTS_"`
}

type Server struct {
	Port int `yaml:"Port" env:"PORT" env-default:"8080"`
}

type Postgres struct {
	Host     string `yaml:"Host" env:"HOST"`
	Port     int    `yaml:"Port" env:"PORT"`
	SSLMode  string `yaml:"SSLMode" env:"SSL_MODE"`
	DB       string `yaml:"DB" env:"DB"`
	User     string `yaml:"User" env:"USER"`
	Password string `yaml:"Password" env:"PASSWORD"`
}

type Redis struct {
	URL string `yaml:"URL" env:"URL"`
}

type NowPayments struct {
	APIKey      string `yaml:"APIKey" env:"API_KEY"`
	IPNSecret   string `yaml:"IPNSecret" env:"IPN_SECRET"`
	BaseURL     string `yaml:"BaseURL" env:"BASE_URL" env-default:"https://api.nowpayments.io"`
	SuccessURL  string `yaml:"SuccessURL" env:"SUCCESS_URL"`
	CallbackURL string `yaml:"CallbackURL" env:"CALLBACK_URL"`
}

func LoadConfig() (*Config, error) {
	configPath, exists := os.LookupEnv("CONFIG_PATH")
	if !exists {
		return nil, errors.New("Missing CONFIG_PATH env variable")
	}
	var config Config
	var err error
	if configPath == "environment" {
		err = cleanenv.ReadEnv(&config)
	} else {
		err = cleanenv.ReadConfig(configPath, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("Unable to process config: %v", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations that cannot produce a working service.
// A missing gateway credential is a startup error, never a request-time retry.
func (c *Config) Validate() error {
	if c.NowPayments.APIKey == "" {
		return errors.New("nowpayments API key is not configured")
	}
	if c.NowPayments.IPNSecret == "" {
		return errors.New("nowpayments IPN secret is not configured")
	}
	return nil
}
