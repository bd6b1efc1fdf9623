package auth

import (
	"net"
	"strings"

	"github.com/mssola/useragent"
)

const ipv4MappedPrefix = "::ffff:"

// NormalizeIP strips the IPv4-mapped IPv6 prefix so the same client is
// stored with the same address regardless of the listener family
func NormalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if strings.HasPrefix(strings.ToLower(ip), ipv4MappedPrefix) {
		candidate := ip[len(ipv4MappedPrefix):]
		if parsed := net.ParseIP(candidate); parsed != nil && parsed.To4() != nil {
			return candidate
		}
	}
	return ip
}

// UserAgentResolver derives device and platform descriptors from the
// User-Agent header
type UserAgentResolver struct{}

var _ DeviceResolver = UserAgentResolver{}

// Resolve returns "<browser> <version>" as the device descriptor and the OS
// (with a mobile marker) as the platform descriptor
func (UserAgentResolver) Resolve(req RequestContext) DeviceInfo {
	if strings.TrimSpace(req.UserAgent) == "" {
		return DeviceInfo{Device: "unknown", Platform: "unknown"}
	}

	ua := useragent.New(req.UserAgent)

	name, version := ua.Browser()
	device := strings.TrimSpace(name + " " + version)
	if ua.Bot() {
		device = "bot " + device
	}
	if device == "" {
		device = "unknown"
	}

	platform := ua.OS()
	if platform == "" {
		platform = ua.Platform()
	}
	if platform == "" {
		platform = "unknown"
	}
	if ua.Mobile() {
		platform += " (mobile)"
	}

	return DeviceInfo{
		Device:   device,
		Platform: platform,
	}
}

// StaticDeviceResolver always resolves to the same descriptors
type StaticDeviceResolver DeviceInfo

// Resolve implements DeviceResolver
func (s StaticDeviceResolver) Resolve(RequestContext) DeviceInfo {
	return DeviceInfo(s)
}
