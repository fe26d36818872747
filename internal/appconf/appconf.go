package appconf

// Environment identifies the operating environment the application was
// launched into.
type Environment int

const (
	Development Environment = iota
	Test
	Staging
	Production
)

// EnvFlagToEnvironment maps the -env flag (or ENV variable) value to an
// Environment. Unknown values fall back to Development.
func EnvFlagToEnvironment(flag string) Environment {
	switch flag {
	case "test":
		return Test
	case "staging":
		return Staging
	case "production", "prod":
		return Production
	default:
		return Development
	}
}

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Staging:
		return "staging"
	case Production:
		return "production"
	default:
		return "development"
	}
}
