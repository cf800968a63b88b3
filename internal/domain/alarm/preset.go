package alarm

import "slices"

// DefaultPresetID is the preset used when nothing else is selected.
const DefaultPresetID = "birds"

// Preset is a built-in, remotely hosted sound.
type Preset struct {
	// ID is the stable identifier referenced by alarms.
	ID string
	// Name is the human-readable title.
	Name string
	// URL points to the audio clip.
	URL string
}

//nolint:gochecknoglobals // Static lookup table.
var presets = []Preset{
	{ID: "birds", Name: "Morning Forest", URL: "https://assets.mixkit.co/sfx/preview/mixkit-forest-birds-ambience-1210.mp3"},
	{ID: "zen", Name: "Zen Garden", URL: "https://assets.mixkit.co/sfx/preview/mixkit-wind-chimes-singing-birds-1146.mp3"},
	{ID: "piano", Name: "Dreamy Piano", URL: "https://assets.mixkit.co/sfx/preview/mixkit-soft-piano-logo-vibe-613.mp3"},
	{ID: "lofi", Name: "Lo-Fi Rise", URL: "https://assets.mixkit.co/sfx/preview/mixkit-pueblo-lo-fi-hip-hop-loop-645.mp3"},
}

// Presets returns the preset table in display order.
func Presets() []Preset {
	return slices.Clone(presets)
}

// LookupPreset finds a preset by identifier.
func LookupPreset(id string) (Preset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}

	return Preset{}, false
}
