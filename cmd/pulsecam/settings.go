package main

import (
	"fmt"
	"strings"

	"github.com/jpalmerr/pulsecam/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "PULSECAM"

// addSettingsFlags registers the flags shared by every command that needs
// a device. Each flag can also be set through PULSECAM_<FLAG>, with dashes
// turned into underscores.
func addSettingsFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("config", "c", "", "path to config file")
	f.String("device-url", "", "camera base URL, e.g. http://192.168.4.1")
	f.String("device-name", "", "display name (defaults to the URL host)")
	f.String("mode", "", "status representation: html or json")
	f.String("image-path", "", "snapshot path on the device")
	f.String("title", "", "dashboard title")
	f.Int("port", 0, "dashboard port")
	f.Bool("pause-when-idle", true, "pause status polling while nobody is watching")
}

// loadSettings builds the configuration for cmd: the config file when one
// is given, then the environment, then flags. The result is validated.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overlay(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay copies every explicitly set flag or environment variable onto cfg.
func overlay(v *viper.Viper, cfg *config.Config) {
	if v.IsSet("device-url") {
		cfg.DeviceURL = v.GetString("device-url")
	}
	if v.IsSet("device-name") {
		cfg.DeviceName = v.GetString("device-name")
	}
	if v.IsSet("mode") {
		cfg.Mode = v.GetString("mode")
	}
	if v.IsSet("image-path") {
		cfg.ImagePath = v.GetString("image-path")
	}
	if v.IsSet("title") {
		cfg.Title = v.GetString("title")
	}
	if v.IsSet("port") {
		cfg.Port = v.GetInt("port")
	}
	if v.IsSet("pause-when-idle") {
		pause := v.GetBool("pause-when-idle")
		cfg.PauseWhenIdle = &pause
	}
}
