package config

// Build metadata set at link time, for example:
//
//	go build -ldflags "-X mmhook/internal/config.version=1.2.3 \
//	    -X mmhook/internal/config.commit=$(git rev-parse --short HEAD)" ./cmd/relay
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
