package core

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to any of
// Pocket Relay's server components.
type Config struct {
	// Hostname or IP address the servers bind to.
	Hostname string `mapstructure:"hostname"`
	// IP address (or hostname) handed to clients in redirect packets.
	ExternalHost string `mapstructure:"ext_host"`
	// Minimum level of a log required to be written. debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	MainServer struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"main_server"`

	HTTPServer struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"http_server"`

	RedirectorServer struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"redirector_server"`

	TunnelServer struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"tunnel_server"`

	Database struct {
		// Path to the sqlite file backing the persistent account/inventory store.
		File string `mapstructure:"file"`
	} `mapstructure:"database"`

	Retriever struct {
		// Whether the upstream retriever is enabled at all.
		Enabled bool `mapstructure:"enabled"`
		// Whether Origin SSO tokens should be resolved against the upstream servers.
		OriginFetch bool `mapstructure:"origin_fetch"`
		// Whether a successful Origin login should trigger a one-shot data import.
		OriginFetchData bool `mapstructure:"origin_fetch_data"`
		// Hostname of the real game server's redirector, used as a starting point.
		Host string `mapstructure:"host"`
	} `mapstructure:"retriever"`

	GalaxyAtWar struct {
		DailyDecay int  `mapstructure:"daily_decay"`
		Promotions bool `mapstructure:"promotions"`
	} `mapstructure:"galaxy_at_war"`

	// Message shown on the main menu. Supports the {v} (version), {n} (player
	// count) and {ip} (external host) template variables.
	MenuMessage string `mapstructure:"menu_message"`

	Debugging struct {
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "PR"

// LoadConfig initializes Viper with the contents of the config file under configPath,
// falling back to sane defaults for any key that is not set. A value that cannot
// be parsed into its field, or an empty database.file, ends the process.
func LoadConfig(configPath string) *Config {
	viper.SetDefault("hostname", "0.0.0.0")
	viper.SetDefault("ext_host", "127.0.0.1")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("main_server.port", 14219)
	viper.SetDefault("http_server.port", 80)
	viper.SetDefault("redirector_server.port", 42127)
	viper.SetDefault("tunnel_server.port", 9032)
	viper.SetDefault("database.file", "data/app.db")
	viper.SetDefault("retriever.enabled", true)
	viper.SetDefault("retriever.origin_fetch", true)
	viper.SetDefault("retriever.origin_fetch_data", true)
	viper.SetDefault("retriever.host", "gosredirector.ea.com")
	viper.SetDefault("galaxy_at_war.daily_decay", 0)
	viper.SetDefault("galaxy_at_war.promotions", true)
	viper.SetDefault("menu_message", "Pocket Relay - {v}\nPlayers online: {n}")

	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			fmt.Println("no config file found, using defaults and environment overrides")
		} else {
			fmt.Printf("error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	// Allow nested yaml config options to be set through environment variables.
	// E.g. database.file can be set using PR_DATABASE_FILE.
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			fmt.Printf("error binding %s to %s\n", k, envVarPrefix+"_"+envVar)
			os.Exit(1)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		fmt.Printf("error unmarshaling config object: %v\n", err)
		os.Exit(1)
	}

	if config.Database.File == "" {
		fmt.Println("fatal: database.file must be set")
		os.Exit(1)
	}

	return config
}

// BroadcastAddress returns the host/port pair handed out by the redirector
// and embedded in any packet that points a client at another server.
func (c *Config) BroadcastAddress(port int) (string, uint16) {
	return c.ExternalHost, uint16(port)
}

// MenuMessageFor renders the configured menu message template for a given
// player count and server version.
func (c *Config) MenuMessageFor(version string, playerCount int) string {
	msg := c.MenuMessage
	msg = strings.ReplaceAll(msg, "{v}", version)
	msg = strings.ReplaceAll(msg, "{n}", strconv.Itoa(playerCount))
	msg = strings.ReplaceAll(msg, "{ip}", c.ExternalHost)
	return msg
}
