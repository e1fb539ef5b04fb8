package config

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".movetrace"
	configFile string = "config.yml"

	// DefaultMaxArrayValues is used when max-array-values is not set.
	DefaultMaxArrayValues = 64
)

// SubstitutePathRule describes a rule for substitution of path to source code file.
type SubstitutePathRule struct {
	// Directory path will be substituted if it matches `From`.
	From string
	// Path to which substitution is performed.
	To string
}

// SubstitutePathRules is a slice of source code path substitution rules.
type SubstitutePathRules []SubstitutePathRule

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Source code path substitution rules, applied to file paths recorded
	// in debug info indexes before they are shown to a client.
	SubstitutePath SubstitutePathRules `yaml:"substitute-path"`

	// DebugInfoDirectories is the list of directories searched for debug
	// info index files when none are given on the command line.
	DebugInfoDirectories []string `yaml:"debug-info-directories"`

	// MaxArrayValues is the maximum number of vector elements shown as
	// children of a variable.
	MaxArrayValues *int `yaml:"max-array-values,omitempty"`

	// ShowBytecode shows disassembly lines instead of source lines, both
	// in the lines command and in stack traces.
	ShowBytecode bool `yaml:"show-bytecode"`
}

// MaxArray returns the configured vector element limit or its default.
func (c *Config) MaxArray() int {
	if c == nil || c.MaxArrayValues == nil {
		return DefaultMaxArrayValues
	}
	return *c.MaxArrayValues
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Printf("Could not create config directory: %v.", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.", err)
		return &Config{}
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Printf("Error creating default config file: %v", err)
			return &Config{}
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Printf("Closing config file failed: %v.", err)
		}
	}()

	c, err := Read(f)
	if err != nil {
		fmt.Printf("Unable to decode config file: %v.", err)
		return &Config{}
	}
	return c
}

// Read decodes a configuration from r.
func Read(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(f io.Writer) error {
	_, err := io.WriteString(f,
		`# Configuration file for movetrace.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Define sources path substitution rules. Can be used to rewrite a source path stored
# in a debug info index, if the sources were moved to a different place
# after the package was built.
substitute-path:
  # - {from: path, to: path}

# Directories searched for debug info index files (*.json) when
# --debug-info is not passed on the command line.
debug-info-directories: []

# Maximum number of vector elements shown as children of a variable.
# max-array-values: 64

# Report disassembly lines instead of source lines in the lines command.
# show-bytecode: true
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	if configPath := os.Getenv("MOVETRACE_CONFIG_DIR"); configPath != "" {
		return path.Join(configPath, file), nil
	}

	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file), nil
}

// Substitute applies the first matching rule to p. Rules match whole path
// components only, so "/a/b" does not match "/a/bc".
func (rules SubstitutePathRules) Substitute(p string) string {
	for _, r := range rules {
		from := filepath.Clean(r.From)
		if p == from {
			return r.To
		}
		if strings.HasPrefix(p, from+string(filepath.Separator)) {
			return filepath.Join(r.To, strings.TrimPrefix(p, from))
		}
	}
	return p
}
