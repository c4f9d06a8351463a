package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/aasun/internal/config"
	"github.com/derickschaefer/aasun/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage aasun configuration",
	Long:  `Read and write aasun configuration stored in config.json.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created %s\n", path)
		fmt.Fprintln(out, "  Edit base_url to point at your device, e.g.:")
		fmt.Fprintln(out, "    aasun config set base_url 192.168.1.20")
		return nil
	},
}

// resolvedConfig is the printable form of the resolved configuration.
type resolvedConfig struct {
	BaseURL       string  `json:"base_url"`
	Format        string  `json:"default_format"`
	Timeout       string  `json:"timeout"`
	Concurrency   int     `json:"concurrency"`
	Rate          float64 `json:"rate"`
	WatchInterval string  `json:"watch_interval"`
	DBPath        string  `json:"db_path"`
	ConfigFile    string  `json:"config_file"`
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalFlags.Host)
		if err != nil {
			return err
		}

		src := "(not found)"
		if cfg.ConfigPath != "" {
			src = cfg.ConfigPath
		}
		rc := resolvedConfig{
			BaseURL:       cfg.BaseURL,
			Format:        cfg.Format,
			Timeout:       cfg.Timeout.String(),
			Concurrency:   cfg.Concurrency,
			Rate:          cfg.Rate,
			WatchInterval: cfg.WatchInterval.String(),
			DBPath:        cfg.DBPath,
			ConfigFile:    src,
		}

		out := cmd.OutOrStdout()
		switch resolveFormat("") {
		case render.FormatJSON, render.FormatJSONL:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rc)
		case render.FormatYAML:
			b, err := yaml.Marshal(rc)
			if err != nil {
				return err
			}
			_, err = out.Write(b)
			return err
		default:
			printKVTable(out, [][]string{
				{"base_url", rc.BaseURL},
				{"default_format", rc.Format},
				{"timeout", rc.Timeout},
				{"concurrency", strconv.Itoa(rc.Concurrency)},
				{"rate", fmt.Sprintf("%.1f req/s", rc.Rate)},
				{"watch_interval", rc.WatchInterval},
				{"db_path", rc.DBPath},
				{"config_file", rc.ConfigFile},
			})
			return nil
		}
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Example: `  aasun config set base_url 192.168.1.20
  aasun config set watch_interval 15m
  aasun config set db_path /var/lib/aasun/aasun.db`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		val := args[1]

		// Load existing file or start from template
		f, path, err := loadConfigFile()
		if err != nil {
			if !os.IsNotExist(err) {
				return err
			}
			tmpl := config.Template()
			f, path = &tmpl, config.DefaultConfigFile
		}
		if err := setConfigKey(f, key, val); err != nil {
			return err
		}

		if err := config.WriteFile(path, *f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", key, path)
		return nil
	},
}

// setConfigKey validates val and stores it under key in f.
func setConfigKey(f *config.File, key, val string) error {
	switch key {
	case "base_url", "host":
		f.BaseURL = config.NormaliseHost(val)
	case "default_format", "format":
		if !render.ValidFormat(val) {
			return fmt.Errorf("unknown format %q (valid: %s)", val, strings.Join(render.Formats, ", "))
		}
		f.DefaultFormat = val
	case "timeout", "watch_interval":
		d, err := time.ParseDuration(val)
		if err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration such as 10s or 5m", key)
		}
		if key == "timeout" {
			f.Timeout = val
		} else {
			f.WatchInterval = val
		}
	case "concurrency":
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 {
			return fmt.Errorf("concurrency must be a positive integer")
		}
		f.Concurrency = n
	case "rate":
		r, err := strconv.ParseFloat(val, 64)
		if err != nil || r <= 0 {
			return fmt.Errorf("rate must be a positive number")
		}
		f.Rate = r
	case "db_path":
		f.DBPath = val
	default:
		return fmt.Errorf("unknown config key: %q\n\nValid keys: base_url, default_format, timeout, concurrency, rate, watch_interval, db_path", key)
	}
	return nil
}

// loadConfigFile reads config.json from cwd; used by configSetCmd.
func loadConfigFile() (*config.File, string, error) {
	path := config.DefaultConfigFile
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	var f config.File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, path, nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
