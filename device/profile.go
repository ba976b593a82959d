package device

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformMacOS   Platform = "macos"
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
	PlatformUnknown Platform = "unknown"
)

type FormFactor string

const (
	FormFactorMobile  FormFactor = "mobile"
	FormFactorTablet  FormFactor = "tablet"
	FormFactorDesktop FormFactor = "desktop"
)

type MethodType string

const (
	MethodFace        MethodType = "face"
	MethodFingerprint MethodType = "fingerprint"
	MethodIris        MethodType = "iris"
)

type SecurityClass string

const (
	ClassConvenience SecurityClass = "convenience"
	ClassWeak        SecurityClass = "weak"
	ClassStrong      SecurityClass = "strong"
)

type FallbackMethod string

const (
	FallbackPIN      FallbackMethod = "pin"
	FallbackPattern  FallbackMethod = "pattern"
	FallbackPassword FallbackMethod = "password"
	FallbackPasscode FallbackMethod = "device-passcode"
)

type BiometricMethod struct {
	Type           MethodType
	Name           string
	SecurityClass  SecurityClass
	HardwareBacked bool
	Supported      bool
	Enrolled       *bool
}

// Profile describes what a device can do, derived per call and never
// persisted as-is. Primary is nil, or points at one of Methods with
// Supported=true.
type Profile struct {
	Platform   Platform
	FormFactor FormFactor
	Methods    []BiometricMethod
	Fallbacks  []FallbackMethod
	Primary    *BiometricMethod
}

// BiometricsAvailable reports whether any method survived the probe.
func (p *Profile) BiometricsAvailable() bool {
	for i := range p.Methods {
		if p.Methods[i].Supported {
			return true
		}
	}
	return false
}

// SupportedMethods returns the supported subset in table order.
func (p *Profile) SupportedMethods() []BiometricMethod {
	supported := make([]BiometricMethod, 0, len(p.Methods))
	for i := range p.Methods {
		if p.Methods[i].Supported {
			supported = append(supported, p.Methods[i])
		}
	}
	return supported
}

// UnknownProfile is what Detect falls back to when every signal is
// absent or unrecognized.
func UnknownProfile() *Profile {
	return &Profile{
		Platform:   PlatformUnknown,
		FormFactor: FormFactorDesktop,
		Methods:    []BiometricMethod{},
		Fallbacks:  []FallbackMethod{FallbackPassword},
	}
}
