package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	HttpPort  int           `yaml:"http_port"`
	JwtTTL    time.Duration `yaml:"jwt_ttl"`
	Storage   Storage       `yaml:"storage"`
	Email     Email         `yaml:"email"`
	Cors      Cors          `yaml:"cors"`
	RateLimit RateLimit     `yaml:"rate_limit"`
	HTTPS     HTTPS         `yaml:"https"`
	Log       Log           `yaml:"log"`
}

type Storage struct {
	Driver        string `yaml:"driver"`
	MongoDatabase string `yaml:"mongo_database"`
}

type Email struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	SenderName string `yaml:"sender_name"`
	Timeout    int    `yaml:"timeout"` // seconds
}

type Cors struct {
	Origin string `yaml:"origin"`
}

// RateLimit applies per client IP to login and recovery. Zero RPS disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// HTTPS says whether clients reach the service over TLS (usually through a
// terminating proxy). When Enabled the session cookie is Secure and responses
// carry HSTS for HSTSMaxAge.
type HTTPS struct {
	Enabled    bool          `yaml:"enabled"`
	HSTSMaxAge time.Duration `yaml:"hsts_max_age"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type Private struct {
	DatabaseURL string       `yaml:"database_url"`
	MongoURI    string       `yaml:"mongo_uri"`
	JwtKey      string       `yaml:"jwt_key"`
	Email       EmailAccount `yaml:"email"`
}

type EmailAccount struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (c *Config) JwtKey() string {
	return c.Private.JwtKey
}

func (c *Config) JwtTTL() time.Duration {
	return c.Public.JwtTTL
}

// HSTSMaxAge is zero unless the service is served over HTTPS.
func (c *Config) HSTSMaxAge() time.Duration {
	if !c.Public.HTTPS.Enabled {
		return 0
	}
	return c.Public.HTTPS.HSTSMaxAge
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Public.HttpPort)
}

func loadPath(configPath string, output interface{}) error {
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("can't read config file %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(configFile, output); err != nil {
		return fmt.Errorf("can't unmarshal config file %s: %w", configPath, err)
	}
	return nil
}

// Load reads public.yaml (required) and private.yaml (optional) from
// configFolder, lets the environment override both, then fills defaults.
func Load(configFolder string) (*Config, error) {
	cfg := &Config{}
	if err := loadPath(path.Join(configFolder, "public.yaml"), &cfg.Public); err != nil {
		return nil, err
	}

	privatePath := path.Join(configFolder, "private.yaml")
	if _, err := os.Stat(privatePath); err == nil {
		if err := loadPath(privatePath, &cfg.Private); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad(configFolder string) *Config {
	cfg, err := Load(configFolder)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

func (c *Config) setDefaults() {
	if c.Public.HttpPort == 0 {
		c.Public.HttpPort = 3001
	}
	if c.Public.JwtTTL == 0 {
		c.Public.JwtTTL = time.Hour
	}
	if c.Public.Storage.Driver == "" {
		c.Public.Storage.Driver = DriverPostgres
	}
	if c.Public.Storage.MongoDatabase == "" {
		c.Public.Storage.MongoDatabase = "usuarios"
	}
	if c.Public.Email.SMTPServer == "" {
		c.Public.Email.SMTPServer = "smtp.gmail.com"
	}
	if c.Public.Email.SMTPPort == 0 {
		c.Public.Email.SMTPPort = 587
	}
	if c.Public.Email.Timeout == 0 {
		c.Public.Email.Timeout = 10
	}
	if c.Public.Cors.Origin == "" {
		c.Public.Cors.Origin = "http://localhost:3000"
	}
	if c.Public.RateLimit.RPS > 0 && c.Public.RateLimit.Burst == 0 {
		c.Public.RateLimit.Burst = 1
	}
	if c.Public.HTTPS.Enabled && c.Public.HTTPS.HSTSMaxAge == 0 {
		c.Public.HTTPS.HSTSMaxAge = 365 * 24 * time.Hour
	}
}

// applyEnv maps the deployment environment onto the config. Variable names
// are the ones the service has always been deployed with.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Public.HttpPort = port
	}
	if v, ok := lookup("HTTPS"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid HTTPS %q: %w", v, err)
		}
		c.Public.HTTPS.Enabled = enabled
	}
	vars := map[string]*string{
		"DATABASE_URL":   &c.Private.DatabaseURL,
		"MONGO_URI":      &c.Private.MongoURI,
		"JWT_SECRET":     &c.Private.JwtKey,
		"EMAIL_USER":     &c.Private.Email.Username,
		"EMAIL_PASS":     &c.Private.Email.Password,
		"CORS_ORIGIN":    &c.Public.Cors.Origin,
		"STORAGE_DRIVER": &c.Public.Storage.Driver,
	}
	for name, field := range vars {
		if v, ok := lookup(name); ok && v != "" {
			*field = v
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.Private.JwtKey == "" {
		return fmt.Errorf("jwt key is not set (private.yaml jwt_key or JWT_SECRET)")
	}
	switch c.Public.Storage.Driver {
	case DriverPostgres:
		if c.Private.DatabaseURL == "" {
			return fmt.Errorf("database url is not set (private.yaml database_url or DATABASE_URL)")
		}
	case DriverMongo:
		if c.Private.MongoURI == "" {
			return fmt.Errorf("mongo uri is not set (private.yaml mongo_uri or MONGO_URI)")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Public.Storage.Driver)
	}
	if c.Public.HTTPS.HSTSMaxAge < 0 {
		return fmt.Errorf("invalid hsts max age %s", c.Public.HTTPS.HSTSMaxAge)
	}
	if c.Public.HttpPort <= 0 || c.Public.HttpPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.Public.HttpPort)
	}
	return nil
}
