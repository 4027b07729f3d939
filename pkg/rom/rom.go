// Package rom stores a compiled program as a self-describing build artifact:
// the memory image plus the labels, source map and warnings needed to load,
// run and debug it. Artifacts are encoded as canonical CBOR so identical
// builds produce identical files.
package rom

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"hasselc/pkg/compiler"
	"hasselc/pkg/config"
	"hasselc/pkg/cpu"
)

// Version is bumped whenever the artifact layout changes.
const Version = 1

// ErrCorrupt is returned when an artifact's image does not match its hash.
var ErrCorrupt = errors.New("rom: image hash mismatch")

// Artifact is one build result.
type Artifact struct {
	Version   int               `cbor:"1,keyasint"`
	Name      string            `cbor:"2,keyasint"`
	Origin    uint16            `cbor:"3,keyasint"`
	Entry     string            `cbor:"4,keyasint,omitempty"`
	Image     []byte            `cbor:"5,keyasint"` // memory image starting at address 0
	Hash      [32]byte          `cbor:"6,keyasint"`
	Labels    map[string]uint16 `cbor:"7,keyasint,omitempty"`
	SourceMap map[uint16]string `cbor:"8,keyasint,omitempty"` // address -> unit:row:col
	Warnings  []string          `cbor:"9,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("rom: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// New builds an artifact from a compilation. describe renders source tags
// for the warning list; Compiler.Describe fits.
func New(name string, cfg *config.Config, out *compiler.Output, describe func(compiler.SourceTag) string) *Artifact {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &Artifact{
		Version:   Version,
		Name:      name,
		Origin:    cfg.Output.Origin,
		Image:     out.Image,
		Hash:      sha256.Sum256(out.Image),
		Labels:    out.Labels,
		SourceMap: out.SourceMap,
	}
	if out.Program != nil && out.Program.Origin != nil {
		a.Origin = *out.Program.Origin
	}
	if _, ok := out.Labels[cfg.Output.Entry]; ok {
		a.Entry = cfg.Output.Entry
	}
	for _, w := range out.Warnings {
		a.Warnings = append(a.Warnings, fmt.Sprintf("%s: %s: %s", describe(w.Tag), w.Kind, w.Message))
	}
	return a
}

// Marshal serializes the artifact to canonical CBOR.
func (a *Artifact) Marshal() ([]byte, error) {
	return encMode.Marshal(a)
}

// Unmarshal deserializes an artifact and verifies its image hash.
func Unmarshal(data []byte) (*Artifact, error) {
	var a Artifact
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("rom: unmarshal artifact: %w", err)
	}
	if a.Version != Version {
		return nil, fmt.Errorf("rom: unsupported artifact version %d", a.Version)
	}
	if sha256.Sum256(a.Image) != a.Hash {
		return nil, ErrCorrupt
	}
	return &a, nil
}

// Write stores the artifact at path.
func (a *Artifact) Write(path string) error {
	data, err := a.Marshal()
	if err != nil {
		return fmt.Errorf("rom: marshal artifact: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Read loads an artifact written by Write.
func Read(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Boot loads the image into c and resets it through the reset vector. When
// the image carries no vector, execution starts at the origin.
func (a *Artifact) Boot(c *cpu.CPU) {
	c.Load(a.Image)
	c.Reset()
	if c.PC == 0 {
		c.PC = a.Origin
	}
}

// Where returns the source position of the instruction at addr, if known.
func (a *Artifact) Where(addr uint16) (string, bool) {
	s, ok := a.SourceMap[addr]
	return s, ok
}
