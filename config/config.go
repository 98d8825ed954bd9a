// Initializing common application configuration
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Rabbit   RabbitConfig   `mapstructure:"rabbit"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Services ServicesConfig `mapstructure:"services"`
	Email    EmailConfig    `mapstructure:"email"`
	Push     PushConfig     `mapstructure:"push"`
}

type ServerConfig struct {
	Port        string        `mapstructure:"port"`
	Timeout     time.Duration `mapstructure:"timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	Mode        string        `mapstructure:"mode"`
}

type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RabbitConfig struct {
	URL         string `mapstructure:"url"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	Exchange    string `mapstructure:"exchange"`
	StatusQueue string `mapstructure:"status_queue"`
	Prefetch    int    `mapstructure:"prefetch"`
}

type WorkerConfig struct {
	Channel         string        `mapstructure:"channel"`
	Consumers       int           `mapstructure:"consumers"`
	MaxRetries      int           `mapstructure:"max_retries"`
	HealthPort      string        `mapstructure:"health_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ServicesConfig struct {
	UserServiceURL     string        `mapstructure:"user_service_url"`
	TemplateServiceURL string        `mapstructure:"template_service_url"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
}

type EmailConfig struct {
	PostmarkServerToken  string `mapstructure:"postmark_server_token"`
	PostmarkAccountToken string `mapstructure:"postmark_account_token"`
	From                 string `mapstructure:"from"`
}

type PushConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	ServerKey string        `mapstructure:"server_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func LoadConfig() (*viper.Viper, error) {

	viperInstance := viper.New()

	viperInstance.AddConfigPath("./config")
	viperInstance.SetConfigName("config")
	viperInstance.SetConfigType("yaml")

	setDefaults(viperInstance)

	err := viperInstance.ReadInConfig()

	if err != nil {
		return nil, err
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {

	var c Config

	err := v.Unmarshal(&c)
	if err != nil {
		return nil, err
	}

	// Secrets come from the environment, never from the config file
	c.Rabbit.Password = GetEnv("RABBITMQ_PASSWORD", c.Rabbit.Password)
	c.Redis.Password = GetEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Email.PostmarkServerToken = GetEnv("POSTMARK_SERVER_TOKEN", c.Email.PostmarkServerToken)
	c.Email.PostmarkAccountToken = GetEnv("POSTMARK_ACCOUNT_TOKEN", c.Email.PostmarkAccountToken)
	c.Push.ServerKey = GetEnv("PUSH_SERVER_KEY", c.Push.ServerKey)

	return &c, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.mode", "debug")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	// Rabbit defaults
	v.SetDefault("rabbit.host", "localhost")
	v.SetDefault("rabbit.port", 5672)
	v.SetDefault("rabbit.username", "guest")
	v.SetDefault("rabbit.password", "guest")
	v.SetDefault("rabbit.exchange", "notifications.direct")
	v.SetDefault("rabbit.status_queue", "gateway.status.queue")
	v.SetDefault("rabbit.prefetch", 1)

	// Worker defaults
	v.SetDefault("worker.channel", "email")
	v.SetDefault("worker.consumers", 5)
	v.SetDefault("worker.max_retries", 3)
	v.SetDefault("worker.health_port", "8081")
	v.SetDefault("worker.shutdown_timeout", 15*time.Second)

	// Collaborator defaults
	v.SetDefault("services.user_service_url", "http://localhost:3002")
	v.SetDefault("services.template_service_url", "http://localhost:3000")
	v.SetDefault("services.request_timeout", 5*time.Second)

	// Provider defaults
	v.SetDefault("email.from", "no-reply@example.com")
	v.SetDefault("push.endpoint", "https://fcm.googleapis.com/fcm/send")
	v.SetDefault("push.timeout", 10*time.Second)
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
