// Package device derives a normalized capability profile from the raw
// signals a client reports about itself. Classification is table
// driven; the only live call is a single availability probe against
// the platform authenticator, and its failure always degrades to
// "unavailable" rather than surfacing an error.
package device

import "context"

// Probe answers whether a user-verifying platform authenticator is
// actually reachable right now. Implementations may suspend on user
// hardware and must honor ctx.
type Probe interface {
	Available(ctx context.Context) (bool, error)
}

type Detector struct {
	tableVersion string
}

func NewDetector() *Detector {
	return &Detector{tableVersion: TableVersion}
}

func (d *Detector) TableVersion() string {
	return d.tableVersion
}

// Detect builds a Profile from signals, cross-checked against probe.
// It never fails: nil or empty signals yield the unknown profile, and
// a probe error or "unavailable" answer downgrades every method to
// unsupported regardless of what the table promised.
func (d *Detector) Detect(ctx context.Context, signals *RawSignals, probe Probe) *Profile {
	if signals.empty() {
		return UnknownProfile()
	}

	platform := classifyPlatform(signals)
	if platform == PlatformUnknown {
		return UnknownProfile()
	}

	form := classifyFormFactor(signals, platform)
	methods := lookupMethods(platform, signals.Model)

	if !probeAvailable(ctx, probe) {
		for i := range methods {
			methods[i].Supported = false
		}
	}

	profile := &Profile{
		Platform:   platform,
		FormFactor: form,
		Methods:    methods,
		Fallbacks:  fallbacksFor(platform, form),
	}
	profile.Primary = pickPrimary(profile.Methods)
	return profile
}

func probeAvailable(ctx context.Context, probe Probe) bool {
	if probe == nil {
		return false
	}
	available, err := probe.Available(ctx)
	if err != nil {
		return false
	}
	return available
}

// pickPrimary prefers face over fingerprint when both are supported,
// matching the manufacturer default on devices that offer both. A
// profile with no supported method has no primary.
func pickPrimary(methods []BiometricMethod) *BiometricMethod {
	order := []MethodType{MethodFace, MethodFingerprint, MethodIris}
	for _, want := range order {
		for i := range methods {
			if methods[i].Supported && methods[i].Type == want {
				return &methods[i]
			}
		}
	}
	for i := range methods {
		if methods[i].Supported {
			return &methods[i]
		}
	}
	return nil
}
