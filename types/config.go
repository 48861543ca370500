package types

// AppConfig represents the application configuration loaded from config file
type AppConfig struct {
	ServerURL       string `yaml:"serverUrl"`       // ws:// or wss:// push channel endpoint
	Profile         string `yaml:"profile"`         // settings are stored per profile
	SettingsDBPath  string `yaml:"settingsDbPath"`  // sqlite file for persisted settings
	BackoffBaseMs   int    `yaml:"backoffBaseMs"`   // first reconnect delay, doubled per attempt
	MaxReconnects   int    `yaml:"maxReconnects"`   // reconnect attempts before giving up
	PingIntervalSec int    `yaml:"pingIntervalSec"` // liveness probe interval, 0 disables
	SpeechCommand   string `yaml:"speechCommand"`   // external TTS binary, e.g. espeak-ng
	AudioCommand    string `yaml:"audioCommand"`    // external PCM player, e.g. aplay
	DevhubPort      int    `yaml:"devhubPort"`      // embedded dev server port (devhub mode)
}

// Config holds runtime overrides from CLI flags
type Config struct {
	Log           string // log mode: dev|prod|none
	UseConfigPath string // override config file path
	UseServerURL  string // override push channel endpoint
	UseToken      string // bearer credential for the handshake
	UseProfile    string // override settings profile
	UseDevhub     bool   // if true, run the embedded dev server and connect to it
	SkipProbe     bool   // if true, skip the startup reachability probe
	UseMute       bool   // if true, swap in no-op audio/speech backends
}
