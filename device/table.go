package device

import "strings"

// TableVersion identifies the capability dataset below. Bump it when
// entries are added so profile snapshots can be traced back to the
// table that produced them.
const TableVersion = "2024-06"

type methodSpec struct {
	Type           MethodType
	Name           string
	SecurityClass  SecurityClass
	HardwareBacked bool
}

// tableEntry maps a (platform, model substring) pair to the biometric
// methods that hardware ships with. Pattern is matched
// case-insensitively against the model signal; an empty pattern is the
// platform default. Entries are ordered, first match wins, so specific
// models go above their platform default.
type tableEntry struct {
	Platform Platform
	Pattern  string
	Methods  []methodSpec
}

var faceIDSpec = methodSpec{Type: MethodFace, Name: "Face ID", SecurityClass: ClassStrong, HardwareBacked: true}
var touchIDSpec = methodSpec{Type: MethodFingerprint, Name: "Touch ID", SecurityClass: ClassStrong, HardwareBacked: true}

var capabilityTable = []tableEntry{
	// Home-button era iPhones and the iPhone SE line carry Touch ID;
	// iPhone X (iPhone10,3 / iPhone10,6) and later carry Face ID.
	{Platform: PlatformIOS, Pattern: "iphone10,3", Methods: []methodSpec{faceIDSpec}},
	{Platform: PlatformIOS, Pattern: "iphone10,6", Methods: []methodSpec{faceIDSpec}},
	{Platform: PlatformIOS, Pattern: "iphone10,", Methods: []methodSpec{touchIDSpec}},
	{Platform: PlatformIOS, Pattern: "iphone9,", Methods: []methodSpec{touchIDSpec}},
	{Platform: PlatformIOS, Pattern: "iphone8,", Methods: []methodSpec{touchIDSpec}},
	{Platform: PlatformIOS, Pattern: "iphone7,", Methods: []methodSpec{touchIDSpec}},
	{Platform: PlatformIOS, Pattern: "iphone6,", Methods: []methodSpec{touchIDSpec}},
	{Platform: PlatformIOS, Pattern: "iphone se", Methods: []methodSpec{touchIDSpec}},
	{Platform: PlatformIOS, Pattern: "iphone", Methods: []methodSpec{faceIDSpec}},
	{Platform: PlatformIOS, Pattern: "ipad pro", Methods: []methodSpec{faceIDSpec}},
	{Platform: PlatformIOS, Pattern: "ipad", Methods: []methodSpec{touchIDSpec}},

	// Samsung flagships expose both face unlock (camera-only, weak)
	// and an in-display fingerprint reader.
	{Platform: PlatformAndroid, Pattern: "sm-g", Methods: []methodSpec{
		{Type: MethodFingerprint, Name: "Fingerprint", SecurityClass: ClassStrong, HardwareBacked: true},
		{Type: MethodFace, Name: "Face recognition", SecurityClass: ClassWeak, HardwareBacked: false},
	}},
	{Platform: PlatformAndroid, Pattern: "sm-n9", Methods: []methodSpec{
		{Type: MethodFingerprint, Name: "Fingerprint", SecurityClass: ClassStrong, HardwareBacked: true},
		{Type: MethodFace, Name: "Face recognition", SecurityClass: ClassWeak, HardwareBacked: false},
		{Type: MethodIris, Name: "Iris scanner", SecurityClass: ClassStrong, HardwareBacked: true},
	}},
	{Platform: PlatformAndroid, Pattern: "pixel 4", Methods: []methodSpec{
		{Type: MethodFace, Name: "Face Unlock", SecurityClass: ClassStrong, HardwareBacked: true},
	}},
	{Platform: PlatformAndroid, Pattern: "pixel", Methods: []methodSpec{
		{Type: MethodFingerprint, Name: "Fingerprint", SecurityClass: ClassStrong, HardwareBacked: true},
	}},
	{Platform: PlatformAndroid, Pattern: "", Methods: []methodSpec{
		{Type: MethodFingerprint, Name: "Fingerprint", SecurityClass: ClassStrong, HardwareBacked: false},
	}},

	{Platform: PlatformMacOS, Pattern: "macbookpro", Methods: []methodSpec{touchIDSpec}},
	{Platform: PlatformMacOS, Pattern: "macbookair", Methods: []methodSpec{touchIDSpec}},
	{Platform: PlatformMacOS, Pattern: "", Methods: []methodSpec{}},

	{Platform: PlatformWindows, Pattern: "", Methods: []methodSpec{
		{Type: MethodFace, Name: "Windows Hello Face", SecurityClass: ClassStrong, HardwareBacked: true},
		{Type: MethodFingerprint, Name: "Windows Hello Fingerprint", SecurityClass: ClassStrong, HardwareBacked: true},
	}},

	{Platform: PlatformLinux, Pattern: "", Methods: []methodSpec{}},
}

func lookupMethods(platform Platform, model string) []BiometricMethod {
	model = strings.ToLower(model)
	for _, entry := range capabilityTable {
		if entry.Platform != platform {
			continue
		}
		if entry.Pattern != "" && !strings.Contains(model, entry.Pattern) {
			continue
		}
		methods := make([]BiometricMethod, 0, len(entry.Methods))
		for _, spec := range entry.Methods {
			methods = append(methods, BiometricMethod{
				Type:           spec.Type,
				Name:           spec.Name,
				SecurityClass:  spec.SecurityClass,
				HardwareBacked: spec.HardwareBacked,
				Supported:      true,
			})
		}
		return methods
	}
	return []BiometricMethod{}
}
