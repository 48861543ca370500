package tool

import (
	"fmt"
	"net"
	"net/url"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ProbeTimeout bounds the whole startup reachability probe.
var ProbeTimeout = 3 * time.Second

// ProbeServer pings the host of the given ws/wss URL and logs the observed
// round-trip time. Diagnostic only: a failed probe never blocks connecting,
// it just gives an early hint when the server host is unreachable.
func ProbeServer(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid server url %q: %v", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("server url %q has no host", rawURL)
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		DefaultLogger.Debugf("[Probe] Skipping loopback host %s", host)
		return nil
	}

	pinger, err := probing.NewPinger(host)
	if err != nil {
		return fmt.Errorf("failed to create pinger for %s: %v", host, err)
	}
	// Unprivileged UDP mode so the probe works without CAP_NET_RAW.
	pinger.SetPrivileged(false)
	pinger.Count = 3
	pinger.Timeout = ProbeTimeout
	if err := pinger.Run(); err != nil {
		return fmt.Errorf("probe of %s failed: %v", host, err)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return fmt.Errorf("no probe replies from %s (sent %d)", host, stats.PacketsSent)
	}
	DefaultLogger.Infof("[Probe] %s reachable, avg rtt %s (%d/%d replies)",
		host, stats.AvgRtt, stats.PacketsRecv, stats.PacketsSent)
	return nil
}
