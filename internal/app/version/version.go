package version

import "fmt"

// Default values are overridden at build time via -ldflags.
var (
	buildVersion = "dev"
	builtAt      = "unknown"
)

type Info struct {
	BuildVersion string `json:"buildVersion"`
	BuiltAt      string `json:"builtAt"`
}

func Get() Info {
	return Info{
		BuildVersion: buildVersion,
		BuiltAt:      builtAt,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("proxyscout %s (built %s)", i.BuildVersion, i.BuiltAt)
}
