package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// FileSystem abstracts the file lookups done while resolving config files.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// OSFileSystem is the FileSystem backed by the real disk.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Files holds the config and env files chosen for a load.
type Files struct {
	ConfigFile string
	EnvFile    string
}

// Resolve picks the config and env files for a service. Explicit paths win;
// otherwise the first existing candidate is used.
func Resolve(fs FileSystem, serviceName string, explicit Files) Files {
	out := explicit
	if out.ConfigFile == "" {
		out.ConfigFile = firstExisting(fs, configCandidates(serviceName))
	}
	if out.EnvFile == "" {
		out.EnvFile = firstExisting(fs, envCandidates(serviceName))
	}
	return out
}

func configCandidates(serviceName string) []string {
	var paths []string
	for _, up := range []string{".", "..", "../.."} {
		paths = append(paths, fmt.Sprintf("%s/cmd/%s/config.yml", up, serviceName))
	}
	return append(paths, "./config/config.yml", "../config/config.yml", "./config.yml")
}

func envCandidates(serviceName string) []string {
	var paths []string
	for _, name := range []string{".env." + serviceName, ".env"} {
		for _, dir := range []string{"./cmd/" + serviceName, "./config", ".", "..", "../.."} {
			paths = append(paths, dir+"/"+name)
		}
	}
	return paths
}

func firstExisting(fs FileSystem, paths []string) string {
	for _, p := range paths {
		if fs.Exists(p) {
			return p
		}
	}
	return ""
}
