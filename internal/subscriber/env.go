package subscriber

import (
	"changelog_emitter/internal/config"

	"github.com/joho/godotenv"
)

// ParseEnvFilesList splits ENV_FILES / ENV_FILE.
func ParseEnvFilesList(v string) []string {
	return config.ParseCSV(v)
}

// LoadEnvFiles reads the files without touching the process environment.
// Later files override earlier ones.
func LoadEnvFiles(paths []string) (map[string]string, error) {
	if len(paths) == 0 {
		return map[string]string{}, nil
	}
	return godotenv.Read(paths...)
}
