package conf

// environment
type EnvironmentEnum int8

const (
	ExampleEnvironmentEnum EnvironmentEnum = 0x01
	MainnetEnvironmentEnum EnvironmentEnum = 0x02
	TestnetEnvironmentEnum EnvironmentEnum = 0x03
	LocalEnvironmentEnum   EnvironmentEnum = 0x04
)

var SystemEnvironmentEnum = LocalEnvironmentEnum

// ParseEnvironment maps the -env flag onto an environment.
func ParseEnvironment(env string) EnvironmentEnum {
	switch env {
	case "mainnet":
		return MainnetEnvironmentEnum
	case "testnet":
		return TestnetEnvironmentEnum
	case "local":
		return LocalEnvironmentEnum
	default:
		return ExampleEnvironmentEnum
	}
}

func GetYaml() string {
	var (
		ConfigFile = "conf/conf_pro.yaml"
	)
	if SystemEnvironmentEnum == MainnetEnvironmentEnum {
		ConfigFile = "conf/conf_pro.yaml"
	} else if SystemEnvironmentEnum == ExampleEnvironmentEnum {
		ConfigFile = "conf/conf_example.yaml"
	} else if SystemEnvironmentEnum == TestnetEnvironmentEnum {
		ConfigFile = "conf/conf_test.yaml"
	} else if SystemEnvironmentEnum == LocalEnvironmentEnum {
		ConfigFile = "conf/conf_local.yaml"
	}
	return ConfigFile
}
