package permission

const settingsURLPrefix = "x-apple.systempreferences:com.apple.preference.security?"

// Metadata is the static, per-kind description the views render.
type Metadata struct {
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	// Icon is an SF Symbols name.
	Icon        string `json:"icon"`
	SettingsURL string `json:"settingsUrl"`
	// OpensSettings is true when a grant request also navigates to the settings pane.
	OpensSettings bool `json:"opensSettings"`
}

var metadataByKind = map[Kind]Metadata{
	KindAccessibility: {
		DisplayName:   "Accessibility",
		Description:   "Lets Flux read and operate the controls of other apps on your behalf.",
		Icon:          "accessibility",
		SettingsURL:   settingsURLPrefix + "Privacy_Accessibility",
		OpensSettings: true,
	},
	KindScreenRecording: {
		DisplayName:   "Screen Recording",
		Description:   "Lets Flux see the windows you are working in so it can answer questions about them.",
		Icon:          "rectangle.dashed.badge.record",
		SettingsURL:   settingsURLPrefix + "Privacy_ScreenCapture",
		OpensSettings: true,
	},
	KindMicrophone: {
		DisplayName:   "Microphone",
		Description:   "Lets Flux hear voice commands and dictation.",
		Icon:          "mic.fill",
		SettingsURL:   settingsURLPrefix + "Privacy_Microphone",
		OpensSettings: false,
	},
	KindAutomation: {
		DisplayName:   "Automation",
		Description:   "Lets Flux send Apple Events to control another app.",
		Icon:          "gearshape.2",
		SettingsURL:   settingsURLPrefix + "Privacy_Automation",
		OpensSettings: true,
	},
}

// Describe returns the metadata for a kind. Unknown kinds get a bare entry named after the kind.
func Describe(kind Kind) Metadata {
	if md, ok := metadataByKind[kind]; ok {
		return md
	}
	return Metadata{DisplayName: string(kind)}
}
