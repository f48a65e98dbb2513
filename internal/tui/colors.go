package tui

// Color constants for the hangar TUI theme
const (
	ColorBorder = "#3A3F55" // Grey-blue

	// Text Colors
	ColorPrimaryText   = "#E6EAF2"
	ColorSecondaryText = "#B1B8C7"
	ColorDisabledText  = "#6D7383"

	// Accent Colors (amber, like cockpit annunciators)
	ColorAccentMain   = "#D97706"
	ColorAccentBright = "#FBBF24"

	// State Colors
	ColorError   = "#EF4444"
	ColorSuccess = "#22C55E"
	ColorWarning = "#F59E0B"
)
