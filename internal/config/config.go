package config

import (
	"flag"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Env       string        `yaml:"env" env-default:"local" env-description:"Environment" env-choices:"local,dev,prod"`
	ApiPort   int           `yaml:"api_port" env-default:"8080"`
	ApiHost   string        `yaml:"api_host" env-default:"localhost"`
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"secret42212"`
	TokenTTL  time.Duration `yaml:"token_ttl" env-default:"24h"`
	Storage   string        `yaml:"storage" env:"STORAGE" env-default:"postgres" env-choices:"memory,postgres"`
	LogFile   string        `yaml:"log_file" env:"LOG_FILE"`
	Postgres  `yaml:"postgres"`
	Ledger    Ledger `yaml:"ledger"`
	Chat      Chat   `yaml:"chat"`
	Admin     Admin  `yaml:"admin"`
}

type Postgres struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"5433"`
	User string `yaml:"user" env-default:"test"`
	Pass string `yaml:"pass" env:"POSTGRES_PASS" env-default:"12345"`
	Db   string `yaml:"db" env-default:"test_db"`
}

type Ledger struct {
	TxTimeout time.Duration `yaml:"tx_timeout" env-default:"5s"`
}

type Chat struct {
	SendBuffer     int           `yaml:"send_buffer" env-default:"64"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env-default:"10s"`
	PongWait       time.Duration `yaml:"pong_wait" env-default:"60s"`
	MaxMessageSize int64         `yaml:"max_message_size" env-default:"4096"`
}

// Admin is created on startup when Username is set and no such user exists yet.
type Admin struct {
	Username string `yaml:"username" env:"ADMIN_USERNAME"`
	Password string `yaml:"password" env:"ADMIN_PASSWORD"`
}

func MustLoad() *Config {
	path := fetchConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file does not exist: " + path)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic("Failed to read config" + err.Error())
	}

	return &cfg
}

func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Pass),
		Host:     net.JoinHostPort(c.Postgres.Host, c.Postgres.Port),
		Path:     "/" + c.Postgres.Db,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
