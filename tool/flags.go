package tool

import (
	"flag"

	"github.com/orderbell-io/orderbell-go/types"
)

// SetFlags parses CLI flags and returns the override config.
func SetFlags() types.Config {
	var cfg types.Config
	flag.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	flag.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	flag.StringVar(&cfg.UseServerURL, "useServerUrl", "", "override push channel endpoint (ws:// or wss://)")
	flag.StringVar(&cfg.UseToken, "useToken", "", "bearer credential presented at handshake time")
	flag.StringVar(&cfg.UseProfile, "useProfile", "", "override settings profile")
	flag.BoolVar(&cfg.UseDevhub, "useDevhub", false, "run the embedded dev server and connect to it")
	flag.BoolVar(&cfg.SkipProbe, "skipProbe", false, "skip the startup reachability probe")
	flag.BoolVar(&cfg.UseMute, "useMute", false, "use no-op audio and speech backends")
	flag.Parse()
	return cfg
}
