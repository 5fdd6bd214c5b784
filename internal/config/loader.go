package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitesmith/internal/errors"
)

const (
	// EnvPrefix prefixes every environment override, e.g. SITESMITH_SERVER_PORT.
	EnvPrefix = "SITESMITH"
	// FileName is the configuration file looked up in the working directory.
	FileName = ".sitesmith.yml"
	// FileEnv names a configuration file to use instead of FileName.
	FileEnv = EnvPrefix + "_CONFIG_FILE"
)

// Keys lists every configuration key. Each one can be overridden through the
// environment even when no configuration file mentions it.
var Keys = []string{
	"paths.source", "paths.dev", "paths.prod",
	"scripts.policy", "scripts.bundle_name", "scripts.target", "scripts.keep_names",
	"styles.sass", "styles.browsers",
	"images.dev_compress", "images.webp", "images.jpeg", "images.png", "images.gif",
	"server.port", "server.host", "server.open",
	"watch.debounce",
	"deploy.credentials", "deploy.remote_dir", "deploy.parallel", "deploy.timeout",
	"log.level", "log.format",
}

// Setup prepares viper for Load. Variables from a .env file in the working
// directory are added to the environment first, without replacing variables
// that are already set. The configuration file is, in order, configFile, the
// file named by SITESMITH_CONFIG_FILE, or .sitesmith.yml. Only an explicitly
// named file has to exist. Setup returns the file that was read, if any.
func Setup(configFile string) (string, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return "", errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "failed to read .env")
	}

	explicit := configFile
	if explicit == "" {
		explicit = os.Getenv(FileEnv)
	}
	if explicit != "" {
		viper.SetConfigFile(explicit)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(FileName, ".yml"))
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range Keys {
		if err := viper.BindEnv(key); err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "failed to bind "+key)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit == "" && stderrors.As(err, &notFound) {
			return "", nil
		}
		return "", errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "failed to read configuration file")
	}
	return viper.ConfigFileUsed(), nil
}
