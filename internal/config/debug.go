package config

import "os"

func IsDebug() bool {
	return os.Getenv("VITAL_DEBUG") == "1"
}
