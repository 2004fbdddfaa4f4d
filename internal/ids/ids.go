package ids

import (
	"strings"

	"github.com/segmentio/ksuid"
)

const tempPrefix = "temp_"

func New() string {
	return ksuid.New().String()
}

// Temp returns a placeholder record key for subjects that arrive without a cedula.
func Temp() string {
	return tempPrefix + New()
}

func IsTemp(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}
