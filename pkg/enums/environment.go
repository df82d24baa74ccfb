package enums

import "strings"

// Environment selects the processor's sandbox or live API.
type Environment string

const (
	EnvironmentSandbox Environment = "sandbox"
	EnvironmentLive    Environment = "live"
)

// String implements fmt.Stringer.
func (e Environment) String() string {
	return string(e)
}

// IsLive reports whether real money moves in this environment.
func (e Environment) IsLive() bool {
	return e == EnvironmentLive
}

// ParseEnvironment never fails: anything other than live/production is sandbox.
func ParseEnvironment(value string) Environment {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "live", "production", "prod":
		return EnvironmentLive
	default:
		return EnvironmentSandbox
	}
}
