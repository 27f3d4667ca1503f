package authinfo

// Level is the ordered trust tier of a credential.
type Level int

const (
	// LevelNone means no actual user is present.
	LevelNone Level = iota
	// LevelUnsafe means the identity is known but not re-verified.
	LevelUnsafe
	// LevelNormal means a non-expired expiration is present.
	LevelNormal
	// LevelCritical means a non-expired critical expiration is present.
	LevelCritical
)

// String returns the wire name of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "None"
	case LevelUnsafe:
		return "Unsafe"
	case LevelNormal:
		return "Normal"
	case LevelCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// ParseLevel maps a wire name back to a Level. Unknown names map to
// LevelNone, the least privileged tier.
func ParseLevel(s string) Level {
	switch s {
	case "Unsafe":
		return LevelUnsafe
	case "Normal":
		return LevelNormal
	case "Critical":
		return LevelCritical
	default:
		return LevelNone
	}
}
