package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

func TestReadSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.hsl")
	be.Err(t, os.WriteFile(path, []byte("org 0x0200;\n"), 0o644), nil)

	src, err := ReadSource(path)
	be.Err(t, err, nil)
	be.Equal(t, src.Name, "main.hsl")
	be.Equal(t, src.Dir, dir)
	be.Equal(t, src.Text, "org 0x0200;\n")

	_, err = ReadSource(filepath.Join(dir, "missing.hsl"))
	be.True(t, err != nil)
}

func TestOutputPath(t *testing.T) {
	be.Equal(t, OutputPath("prog.hsl", ".rom"), "prog.rom")
	be.Equal(t, OutputPath("dir/prog", ".s"), "dir/prog.s")
}
