package printer

import "strings"

// Reasons is a bitmask of printer-state-reasons keywords (RFC 8011
// §5.4.12). A zero mask means "none".
type Reasons uint32

const (
	ReasonNone Reasons = 0

	ReasonMediaEmpty Reasons = 1 << iota
	ReasonMediaLow
	ReasonMediaJam
	ReasonTonerEmpty
	ReasonTonerLow
	ReasonMarkerWasteFull
	ReasonMarkerWasteAlmostFull
	ReasonCoverOpen
	ReasonInterlockOpen
	ReasonDoorOpen
	ReasonInputTrayMissing
	ReasonOutputTrayMissing
	ReasonOutputAreaFull
	ReasonOutputAreaAlmostFull
	ReasonSpoolAreaFull
	ReasonPaused
	ReasonShutdown
	ReasonConnectingToDevice
	ReasonTimedOut
	ReasonStoppedPartly
	ReasonStopping
	ReasonIdentifyPrinterRequested
	ReasonOther
)

var reasonNames = [...]struct {
	bit  Reasons
	name string
}{
	{ReasonMediaEmpty, "media-empty"},
	{ReasonMediaLow, "media-low"},
	{ReasonMediaJam, "media-jam"},
	{ReasonTonerEmpty, "toner-empty"},
	{ReasonTonerLow, "toner-low"},
	{ReasonMarkerWasteFull, "marker-waste-full"},
	{ReasonMarkerWasteAlmostFull, "marker-waste-almost-full"},
	{ReasonCoverOpen, "cover-open"},
	{ReasonInterlockOpen, "interlock-open"},
	{ReasonDoorOpen, "door-open"},
	{ReasonInputTrayMissing, "input-tray-missing"},
	{ReasonOutputTrayMissing, "output-tray-missing"},
	{ReasonOutputAreaFull, "output-area-full"},
	{ReasonOutputAreaAlmostFull, "output-area-almost-full"},
	{ReasonSpoolAreaFull, "spool-area-full"},
	{ReasonPaused, "paused"},
	{ReasonShutdown, "shutdown"},
	{ReasonConnectingToDevice, "connecting-to-device"},
	{ReasonTimedOut, "timed-out"},
	{ReasonStoppedPartly, "stopped-partly"},
	{ReasonStopping, "stopping"},
	{ReasonIdentifyPrinterRequested, "identify-printer-requested"},
	{ReasonOther, "other"},
}

// reasonByName strips the RFC 2911 -error/-warning/-report suffix and
// looks the keyword up in the known table.
func reasonByName(keyword string) (Reasons, bool) {
	k := keyword
	for _, suffix := range []string{"-error", "-warning", "-report"} {
		if strings.HasSuffix(k, suffix) {
			k = strings.TrimSuffix(k, suffix)
			break
		}
	}
	for _, r := range reasonNames {
		if r.name == k {
			return r.bit, true
		}
	}
	return 0, false
}

// Strings renders the mask as the keyword list IPP expects, in the
// order of the reasonNames table. An empty mask renders as "none".
func (r Reasons) Strings() []string {
	if r == ReasonNone {
		return []string{"none"}
	}
	out := make([]string, 0, len(reasonNames))
	for _, rn := range reasonNames {
		if r&rn.bit != 0 {
			out = append(out, rn.name)
		}
	}
	return out
}

// ApplyStateMessage applies one `STATE: ...` line from a transform
// subprocess to the current mask: no prefix replaces
// the mask wholesale, "+" sets the named bits, "-" clears them.
func (r Reasons) ApplyStateMessage(message string) Reasons {
	message = strings.TrimSpace(message)
	if message == "" {
		return r
	}

	var (
		remove bool
		result Reasons
	)
	switch message[0] {
	case '-':
		remove = true
		result = r
		message = message[1:]
	case '+':
		result = r
		message = message[1:]
	default:
		result = ReasonNone
	}

	for _, keyword := range strings.Split(message, ",") {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		bit, ok := reasonByName(keyword)
		if !ok {
			continue
		}
		if remove {
			result &^= bit
		} else {
			result |= bit
		}
	}
	return result
}
