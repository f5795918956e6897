package env

import (
	"strings"

	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

const Prefix = "UPCTL_"

type NamingConvention struct{}

func NewNamingConvention() *NamingConvention {
	return &NamingConvention{}
}

// FlagToEnv converts flag name to ENV variable name,
// for example "runtime-admin-url" -> "UPCTL_RUNTIME_ADMIN_URL".
func (*NamingConvention) FlagToEnv(flagName string) string {
	if len(flagName) == 0 {
		panic(errors.New("flag name cannot be empty"))
	}
	return Prefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func Files() []string {
	return []string{
		".env.local",
		".env",
	}
}
