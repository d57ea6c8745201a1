package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"

	"phynode_probe/internal/shared/types"
)

// LogLevelEnv overrides [log] level when set.
const LogLevelEnv = "PHYNODE_LOG_LEVEL"

// LoadIni maps phynode.ini over cfg. A missing file leaves cfg untouched,
// so callers should start from types.DefaultConfig().
func LoadIni(cfg *types.Config, fileName string) error {
	if _, err := os.Stat(fileName); err != nil {
		if os.IsNotExist(err) {
			overrideFromEnvString(&cfg.LogConf.Level, LogLevelEnv)
			return nil
		}
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	iniFile, err := ini.Load(fileName)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", fileName, err)
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return fmt.Errorf("failed to map %s: %w", fileName, err)
	}
	overrideFromEnvString(&cfg.LogConf.Level, LogLevelEnv)
	return nil
}

// Load returns the defaults with fileName applied and validated.
func Load(fileName string) (*types.Config, error) {
	cfg := types.DefaultConfig()
	if err := LoadIni(cfg, fileName); err != nil {
		return nil, err
	}
	if err := cfg.ProbeConf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", fileName, err)
	}
	return cfg, nil
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
