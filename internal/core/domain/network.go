package domain

import "time"

// NetworkState is the connectivity state seen by the resilience helper.
type NetworkState string

const (
	NetworkOnline  NetworkState = "online"
	NetworkOffline NetworkState = "offline"
)

// StateFromBool maps a connectivity flag to a NetworkState.
func StateFromBool(online bool) NetworkState {
	if online {
		return NetworkOnline
	}
	return NetworkOffline
}

// EffectiveType is the coarse connection class reported by a quality source.
type EffectiveType string

const (
	EffectiveSlow2G  EffectiveType = "slow-2g"
	Effective2G      EffectiveType = "2g"
	Effective3G      EffectiveType = "3g"
	Effective4G      EffectiveType = "4g"
	EffectiveUnknown EffectiveType = "unknown"
)

// NetworkQuality describes the current link as seen by the agent.
type NetworkQuality struct {
	EffectiveType EffectiveType `json:"effective_type"`
	DownlinkMbps  float64       `json:"downlink_mbps"`
	RTT           time.Duration `json:"rtt"`
	SaveData      bool          `json:"save_data"`
}

// UnknownQuality is reported when no quality signal is available.
func UnknownQuality() NetworkQuality {
	return NetworkQuality{EffectiveType: EffectiveUnknown}
}
