package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// SourceExt is the extension of source units.
const SourceExt = ".hsl"

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// SourceFile is a source unit read from disk.
type SourceFile struct {
	Name string // file name as shown in diagnostics
	Path string // absolute path
	Dir  string
	Text string
}

// ReadSource loads a unit and resolves where it lives.
func ReadSource(relPath string) (*SourceFile, error) {
	fullPath, dir, err := GetPathInfo(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}
	return &SourceFile{
		Name: filepath.Base(fullPath),
		Path: fullPath,
		Dir:  dir,
		Text: string(data),
	}, nil
}

// OutputPath derives a sibling path with ext in place of the source
// extension: prog.hsl -> prog.rom.
func OutputPath(src, ext string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ext
}
