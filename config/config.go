package config

import (
	"log"
	"sync"

	"github.com/kelseyhightower/envconfig"

	"github.com/eshelf/loan-portal/internal/server"
	"github.com/eshelf/loan-portal/pkg/auth"
	"github.com/eshelf/loan-portal/pkg/kafka"
	"github.com/eshelf/loan-portal/pkg/logger"
	"github.com/eshelf/loan-portal/pkg/mailer"
	"github.com/eshelf/loan-portal/pkg/postgres"
	"github.com/eshelf/loan-portal/pkg/storage"
)

type Config struct {
	Server   server.Config  `yaml:"server"`
	Database postgres.DB    `yaml:"db"`
	Kafka    kafka.Config   `yaml:"kafka"`
	Storage  storage.Config `yaml:"storage"`
	SMTP     mailer.Config  `yaml:"smtp"`
	Auth     auth.Config    `yaml:"auth"`
	Log      logger.Log     `yaml:"log"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
	})

	return cfg
}
