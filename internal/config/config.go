package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string `yaml:"log-level" env-default:"info"`
	HTTPPort   string `yaml:"http-port" env-default:"9090"`
	SocketPort string `yaml:"socket-port" env-default:"8080"`
	Redis      Redis  `yaml:"redis"`
	Engine     Engine `yaml:"engine"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

// Engine holds the timing parameters of the match engine, in seconds. The
// reference defaults are 10 for the turn deadline and matchmaking cadence.
type Engine struct {
	TurnDeadlineSeconds    int  `yaml:"turn-deadline-seconds" env-default:"10"`
	CadenceSeconds         int  `yaml:"matchmaking-cadence-seconds" env-default:"10"`
	DisconnectGraceSeconds int  `yaml:"disconnect-grace-seconds" env-default:"10"`
	TickIntervalSeconds    int  `yaml:"tick-interval-seconds" env-default:"1"`
	RetireGraceSeconds     int  `yaml:"retire-grace-seconds" env-default:"30"`
	ForfeitWins            bool `yaml:"forfeit-wins" env-default:"true"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

func (that *Engine) TurnDeadline() time.Duration {
	return time.Duration(that.TurnDeadlineSeconds) * time.Second
}

func (that *Engine) Cadence() time.Duration {
	return time.Duration(that.CadenceSeconds) * time.Second
}

func (that *Engine) DisconnectGrace() time.Duration {
	return time.Duration(that.DisconnectGraceSeconds) * time.Second
}

func (that *Engine) TickInterval() time.Duration {
	return time.Duration(that.TickIntervalSeconds) * time.Second
}

func (that *Engine) RetireGrace() time.Duration {
	return time.Duration(that.RetireGraceSeconds) * time.Second
}
