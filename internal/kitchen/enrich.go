package kitchen

import (
	"fmt"
	"time"
)

// Thresholds holds the tunable minute thresholds used by enrichment.
type Thresholds struct {
	UrgentMinutes     int
	CollectionWarning int
	DeliveryWarning   int
	AmberMinutes      int
}

// DefaultThresholds mirrors the configured defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		UrgentMinutes:     15,
		CollectionWarning: 10,
		DeliveryWarning:   10,
		AmberMinutes:      5,
	}
}

// Enrich recomputes the derived display fields of an order for the given
// wall-clock time. It is a pure function of (order facts, now,
// thresholds) and must be re-invoked on every load or refresh tick,
// since WaitingTime moves with "now".
func Enrich(o UnifiedOrder, now time.Time, t Thresholds) UnifiedOrder {
	o.WaitingTime = int(now.Sub(o.CreatedAt).Minutes())
	o.IsPriority = isPriority(o, now, t)
	o.StatusColor = statusColor(o, t)
	o.TimeDisplay = formatWait(o.WaitingTime)
	return o
}

// isPriority evaluates the priority rules in precedence order; first
// match wins.
func isPriority(o UnifiedOrder, now time.Time, t Thresholds) bool {
	if o.Type == TypeWaiting {
		return true
	}
	if o.WaitingTime > t.UrgentMinutes {
		return true
	}
	if o.ScheduledFor != nil {
		until := o.ScheduledFor.Sub(now)
		if o.Type == TypeCollection && until < time.Duration(t.CollectionWarning)*time.Minute {
			return true
		}
		if o.Type == TypeDelivery && until < time.Duration(t.DeliveryWarning)*time.Minute {
			return true
		}
	}
	return false
}

// statusColor picks the display token; first match wins. DELAYED beats
// priority, so a delayed priority order still renders red.
func statusColor(o UnifiedOrder, t Thresholds) StatusColor {
	switch {
	case o.Status == StatusDelayed:
		return ColorRed
	case o.Status == StatusReady:
		return ColorGreen
	case o.IsPriority:
		return ColorOrange
	case o.WaitingTime >= t.AmberMinutes:
		return ColorAmber
	default:
		return ColorGray
	}
}

// formatWait renders elapsed minutes as "Nm" under an hour, "Hh Mm"
// beyond it.
func formatWait(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
