package device

import "strings"

// RawSignals is everything the detector is allowed to look at. Callers
// fill in whatever the client reported; every field may be empty.
type RawSignals struct {
	OSName       string
	OSVersion    string
	Model        string
	Manufacturer string
	UserAgent    string
	ScreenInches float64
}

func (s *RawSignals) empty() bool {
	return s == nil || (s.OSName == "" && s.Model == "" && s.Manufacturer == "" && s.UserAgent == "")
}

func classifyPlatform(s *RawSignals) Platform {
	os := strings.ToLower(s.OSName)
	switch {
	case strings.Contains(os, "ios") || strings.Contains(os, "iphone") || strings.Contains(os, "ipad"):
		return PlatformIOS
	case strings.Contains(os, "android"):
		return PlatformAndroid
	case strings.Contains(os, "mac"):
		return PlatformMacOS
	case strings.Contains(os, "windows"):
		return PlatformWindows
	case strings.Contains(os, "linux"):
		return PlatformLinux
	}

	ua := strings.ToLower(s.UserAgent)
	switch {
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		return PlatformIOS
	case strings.Contains(ua, "android"):
		return PlatformAndroid
	case strings.Contains(ua, "macintosh"):
		return PlatformMacOS
	case strings.Contains(ua, "windows nt"):
		return PlatformWindows
	case strings.Contains(ua, "linux"):
		return PlatformLinux
	}

	model := strings.ToLower(s.Model)
	switch {
	case strings.HasPrefix(model, "iphone") || strings.HasPrefix(model, "ipad"):
		return PlatformIOS
	case strings.HasPrefix(model, "sm-") || strings.HasPrefix(model, "pixel"):
		return PlatformAndroid
	}

	return PlatformUnknown
}

func classifyFormFactor(s *RawSignals, platform Platform) FormFactor {
	model := strings.ToLower(s.Model)
	ua := strings.ToLower(s.UserAgent)

	if strings.HasPrefix(model, "ipad") || strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet") {
		return FormFactorTablet
	}

	switch platform {
	case PlatformIOS, PlatformAndroid:
		// Phone-class screens top out around 7 inches.
		if s.ScreenInches >= 7 {
			return FormFactorTablet
		}
		return FormFactorMobile
	case PlatformMacOS, PlatformWindows, PlatformLinux:
		return FormFactorDesktop
	}
	return FormFactorDesktop
}

func fallbacksFor(platform Platform, form FormFactor) []FallbackMethod {
	switch platform {
	case PlatformIOS:
		return []FallbackMethod{FallbackPasscode}
	case PlatformAndroid:
		return []FallbackMethod{FallbackPIN, FallbackPattern, FallbackPasscode}
	case PlatformWindows:
		return []FallbackMethod{FallbackPIN, FallbackPassword}
	case PlatformMacOS, PlatformLinux:
		return []FallbackMethod{FallbackPassword}
	}
	if form == FormFactorMobile || form == FormFactorTablet {
		return []FallbackMethod{FallbackPasscode}
	}
	return []FallbackMethod{FallbackPassword}
}
