package network

import (
	"time"

	"github.com/vietddude/absenta/internal/core/domain"
)

// RTT and downlink bounds for each connection class, as used by the
// Network Information API.
const (
	slow2GMinRTT = 2000 * time.Millisecond
	twoGMinRTT   = 1400 * time.Millisecond
	threeGMinRTT = 270 * time.Millisecond

	slow2GMaxDownlink = 0.05
	twoGMaxDownlink   = 0.07
	threeGMaxDownlink = 0.7
)

// Classify maps a measured RTT and downlink (Mbps, 0 = not measured) to an
// effective connection type. The slower of the two signals wins.
func Classify(rtt time.Duration, downlinkMbps float64) domain.EffectiveType {
	byRTT := classifyRTT(rtt)
	if downlinkMbps <= 0 {
		return byRTT
	}
	byDownlink := classifyDownlink(downlinkMbps)
	if rank(byDownlink) < rank(byRTT) {
		return byDownlink
	}
	return byRTT
}

func classifyRTT(rtt time.Duration) domain.EffectiveType {
	switch {
	case rtt >= slow2GMinRTT:
		return domain.EffectiveSlow2G
	case rtt >= twoGMinRTT:
		return domain.Effective2G
	case rtt >= threeGMinRTT:
		return domain.Effective3G
	default:
		return domain.Effective4G
	}
}

func classifyDownlink(mbps float64) domain.EffectiveType {
	switch {
	case mbps <= slow2GMaxDownlink:
		return domain.EffectiveSlow2G
	case mbps <= twoGMaxDownlink:
		return domain.Effective2G
	case mbps <= threeGMaxDownlink:
		return domain.Effective3G
	default:
		return domain.Effective4G
	}
}

func rank(t domain.EffectiveType) int {
	switch t {
	case domain.EffectiveSlow2G:
		return 0
	case domain.Effective2G:
		return 1
	case domain.Effective3G:
		return 2
	default:
		return 3
	}
}
