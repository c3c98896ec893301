package model

import "fmt"

// Platform identifies the messaging channel a message came from.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformGmail     Platform = "gmail"
)

// SocialPlatforms are the platforms whose history is persisted.
var SocialPlatforms = []Platform{PlatformFacebook, PlatformInstagram}

// ParsePlatform validates a platform name coming from a URL or payload.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(s); p {
	case PlatformFacebook, PlatformInstagram, PlatformGmail:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

// IsSocial reports whether the platform is store-backed.
func (p Platform) IsSocial() bool {
	return p == PlatformFacebook || p == PlatformInstagram
}

// Table returns the persistence table for a social platform.
func (p Platform) Table() string {
	switch p {
	case PlatformFacebook:
		return "facebook_messages"
	case PlatformInstagram:
		return "instagram_messages"
	default:
		return ""
	}
}
