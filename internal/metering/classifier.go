package metering

// Zone is the coarse classification of the displayed level.
type Zone int

// Zones, ordered from quiet to clipping.
const (
	ZoneQuiet Zone = iota
	ZoneSweet
	ZoneHot
	ZoneClip
)

// String returns the wire name of the zone.
func (z Zone) String() string {
	switch z {
	case ZoneQuiet:
		return "quiet"
	case ZoneSweet:
		return "sweet"
	case ZoneHot:
		return "hot"
	case ZoneClip:
		return "clip"
	default:
		return "unknown"
	}
}

// Message returns the operator guidance for the zone. The message is a
// property of the zone itself, so the text only changes on zone transitions.
func (z Zone) Message() string {
	switch z {
	case ZoneQuiet:
		return "Your signal is very quiet. Move closer to the microphone or raise the input gain."
	case ZoneSweet:
		return "Level looks good. Keep speaking at this distance."
	case ZoneHot:
		return "Running hot. Back off a little or lower the input gain to leave some headroom."
	case ZoneClip:
		return "Clipping! Turn the input gain down to avoid distortion."
	default:
		return ""
	}
}

// Classifier maps the displayed level into a zone with hysteresis at each
// boundary so a signal hovering near an edge does not toggle the feedback
// text. The top boundary is driven by the clip signal rather than the
// smoothed bar: the ballistics lag behind a transient, and an integer
// capture block at full scale measures fractionally under 0 dBFS.
// Transitions settle within a single observation even when the input jumps
// several zones at once.
type Classifier struct {
	cfg  Config
	zone Zone
}

// NewClassifier returns a Classifier starting in ZoneQuiet.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg, zone: ZoneQuiet}
}

// Zone returns the current zone.
func (c *Classifier) Zone() Zone {
	return c.zone
}

// Observe classifies one observation and reports whether the zone changed.
// displayedDB positions the level among the lower zones; clipped asserts
// the Clip zone directly. Crossing a lower boundary upward requires
// boundary + hysteresis, crossing downward requires boundary - hysteresis.
// Leaving the Clip zone requires the clip signal gone and the level under
// the top boundary - hysteresis.
func (c *Classifier) Observe(displayedDB float64, clipped bool) (zone Zone, changed bool) {
	prev := c.zone

	if clipped {
		c.zone = ZoneClip
		return ZoneClip, prev != ZoneClip
	}

	h := c.cfg.HysteresisDB
	zone = prev
	if zone == ZoneClip {
		if displayedDB >= c.cfg.ClipAtDB-h {
			return ZoneClip, false
		}
		zone = ZoneHot
	}

	bounds := [2]float64{c.cfg.QuietBelowDB, c.cfg.HotAboveDB}
	for zone < ZoneHot && displayedDB >= bounds[zone]+h {
		zone++
	}
	for zone > ZoneQuiet && displayedDB < bounds[zone-1]-h {
		zone--
	}

	c.zone = zone
	return zone, zone != prev
}

// Reset returns the classifier to ZoneQuiet.
func (c *Classifier) Reset() {
	c.zone = ZoneQuiet
}
