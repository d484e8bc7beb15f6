package utils

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// RuntimeFileResolver locates runtime files such as the product
// config and the layers template. Relative paths are tried against
// each search directory in turn, then the working directory and the
// directory of the executable.
type RuntimeFileResolver struct {
	DataDirs   []string
	fileLookup map[string]string
	lock       sync.Mutex
}

// NewRuntimeFileResolver takes a colon separated list of search
// directories.
func NewRuntimeFileResolver(searchPath string) *RuntimeFileResolver {
	resolver := &RuntimeFileResolver{
		fileLookup: make(map[string]string),
	}

	for _, dataDir := range strings.Split(searchPath, ":") {
		dataDir = strings.TrimSpace(dataDir)
		if len(dataDir) == 0 {
			continue
		}
		resolver.DataDirs = append(resolver.DataDirs, dataDir)
	}

	cwd, err := os.Getwd()
	if err == nil {
		resolver.DataDirs = append(resolver.DataDirs, cwd)
	} else {
		log.Printf("Failed to get CWD: %v", err)
	}

	resolver.DataDirs = append(resolver.DataDirs, filepath.Dir(os.Args[0]))
	return resolver
}

func (r *RuntimeFileResolver) Resolve(filePath string) (string, error) {
	if filepath.IsAbs(filePath) {
		return filePath, checkFile(filePath)
	}

	for _, dataDir := range r.DataDirs {
		p := filepath.Clean(filepath.Join(dataDir, filePath))
		if checkFile(p) == nil {
			return p, nil
		}
	}
	return filePath, fmt.Errorf("Failed to resolve %v in %v", filePath, r.DataDirs)
}

// Lookup is Resolve with the results remembered.
func (r *RuntimeFileResolver) Lookup(filePath string) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if p, found := r.fileLookup[filePath]; found {
		return p, nil
	}

	p, err := r.Resolve(filePath)
	if err != nil {
		return "", err
	}
	r.fileLookup[filePath] = p
	return p, nil
}

// ResolveTemplateDir returns the directory holding the layers
// template.
func (r *RuntimeFileResolver) ResolveTemplateDir(templateDir string) (string, error) {
	p, err := r.Lookup(filepath.Join(templateDir, LayersTemplate))
	if err != nil {
		return "", err
	}
	return filepath.Dir(p), nil
}

func checkFile(filePath string) error {
	_, err := os.Stat(filePath)
	return err
}
