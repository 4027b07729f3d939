// Package config handles hasselc.toml compiler configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "hasselc.toml"

// Config is the full compiler configuration.
type Config struct {
	Output   Output   `toml:"output"`
	Frame    Frame    `toml:"frame"`
	ZeroPage ZeroPage `toml:"zeropage"`
	Optimize Optimize `toml:"optimize"`

	// Path is the file the configuration was read from (set at load time).
	Path string `toml:"-"`
}

// Output controls program placement.
type Output struct {
	Origin  uint16 `toml:"origin"`
	Entry   string `toml:"entry"`
	Vectors bool   `toml:"vectors"`
}

// Frame configures the software frame pointer.
type Frame struct {
	Pointer uint8 `toml:"pointer"`
	Base    uint8 `toml:"base"`
	Init    bool  `toml:"init"`
}

// ZeroPage holds the two-byte scratch areas the generator uses.
type ZeroPage struct {
	Ret     uint8 `toml:"ret"`
	Work    uint8 `toml:"work"`
	Operand uint8 `toml:"operand"`
	Pointer uint8 `toml:"pointer"`
}

// Optimize toggles optional passes.
type Optimize struct {
	DeadFunctions bool `toml:"dead_functions"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Output:   Output{Origin: 0x0200, Entry: "main", Vectors: true},
		Frame:    Frame{Pointer: 0x00, Base: 0x20, Init: true},
		ZeroPage: ZeroPage{Ret: 0x02, Work: 0x04, Operand: 0x06, Pointer: 0x08},
	}
}

// Decode parses TOML text over the defaults, so omitted keys keep their
// default values.
func Decode(text string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	cfg, err := Decode(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// FindAndLoad walks up from startDir to find a hasselc.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

type area struct {
	name string
	lo   int
	hi   int
}

// Validate checks that the scratch areas and the frame pointer are
// distinct and lie below the frame area.
func (c *Config) Validate() error {
	areas := []area{
		{"frame.pointer", int(c.Frame.Pointer), int(c.Frame.Pointer) + 1},
		{"zeropage.ret", int(c.ZeroPage.Ret), int(c.ZeroPage.Ret) + 2},
		{"zeropage.work", int(c.ZeroPage.Work), int(c.ZeroPage.Work) + 2},
		{"zeropage.operand", int(c.ZeroPage.Operand), int(c.ZeroPage.Operand) + 2},
		{"zeropage.pointer", int(c.ZeroPage.Pointer), int(c.ZeroPage.Pointer) + 2},
	}
	for i, a := range areas {
		if a.hi > 0x100 {
			return fmt.Errorf("%s at $%02X does not fit in page zero", a.name, a.lo)
		}
		if a.hi > int(c.Frame.Base) {
			return fmt.Errorf("%s at $%02X overlaps the frame area starting at $%02X", a.name, a.lo, c.Frame.Base)
		}
		for _, b := range areas[:i] {
			if a.lo < b.hi && b.lo < a.hi {
				return fmt.Errorf("%s at $%02X overlaps %s at $%02X", a.name, a.lo, b.name, b.lo)
			}
		}
	}
	return nil
}
