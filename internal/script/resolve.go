package script

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Resolved holds the result of resolving a configured script path.
type Resolved struct {
	Name string
	Path string
	// Source is "workdir", "absolute" or "path".
	Source string
}

// Resolve resolves a configured script to an executable path.
//
//   - /abs/path       → used as-is
//   - dir/name, name  → filepath.Join(workDir, name) when it exists there
//   - name            → looked up in PATH otherwise (e.g. python3)
func Resolve(name, workDir string) (*Resolved, error) {
	if name == "" {
		return nil, fmt.Errorf("script path is empty")
	}

	if filepath.IsAbs(name) {
		if err := checkExecutable(name); err != nil {
			return nil, err
		}
		return &Resolved{Name: name, Path: name, Source: "absolute"}, nil
	}

	local := filepath.Join(workDir, name)
	if _, err := os.Stat(local); err == nil {
		if err := checkExecutable(local); err != nil {
			return nil, err
		}
		return &Resolved{Name: name, Path: local, Source: "workdir"}, nil
	}

	if strings.ContainsRune(name, filepath.Separator) {
		return nil, fmt.Errorf("script not found: %s", local)
	}

	found, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("script not found in %s or PATH: %s", workDir, name)
	}
	return &Resolved{Name: name, Path: found, Source: "path"}, nil
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("script not found: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("script is a directory: %s", path)
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("script is not executable: %s", path)
	}
	return nil
}

// RequireBinaries checks that every named binary is available in PATH.
func RequireBinaries(names []string) error {
	var missing []string
	for _, n := range names {
		if _, err := exec.LookPath(n); err != nil {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required binaries not found in PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}
