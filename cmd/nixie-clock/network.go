package main

import (
	"net/url"
	"os"

	"github.com/sweeney/nixie-clock/internal/status"
)

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the ws-broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" and
// empty disable the live view.
func resolveWSBroker(ws, broker string) (string, error) {
	switch ws {
	case "", "off":
		return "", nil
	case "=broker":
	default:
		return ws, nil
	}
	if broker == "" {
		return "", nil
	}
	u, err := url.Parse(broker)
	if err != nil {
		return "", err
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String(), nil
}
