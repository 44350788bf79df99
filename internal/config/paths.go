package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// projectConfigNames are looked up in the working directory.
var projectConfigNames = []string{"tasklane.toml", ".tasklane.toml"}

// UserConfigPath is where `tasklane setup` writes the user config.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tasklane", "tasklane.toml"), nil
}

// userConfigPaths lists the user config locations, preferred first:
// ~/.tasklane, then the OS config dir.
func userConfigPaths() []string {
	var paths []string
	if p, err := UserConfigPath(); err == nil {
		paths = append(paths, p)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "tasklane", "tasklane.toml"))
	}
	return paths
}

// firstExisting returns the first path that exists, or "".
func firstExisting(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// expandPath expands $VAR references and a leading ~ in p. On Windows it
// also accepts a ~\ prefix and %VAR% references; unknown %VAR% stay as-is.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if runtime.GOOS == "windows" {
		p = expandPercentVars(p)
	}

	rest, ok := strings.CutPrefix(p, "~")
	if !ok {
		return p
	}
	sep := rest == "" || strings.HasPrefix(rest, "/") || (runtime.GOOS == "windows" && strings.HasPrefix(rest, `\`))
	if !sep {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if rest == "" {
		return home
	}
	return filepath.Join(home, rest[1:])
}

func expandPercentVars(p string) string {
	parts := strings.Split(p, "%")
	if len(parts) < 3 {
		return p
	}
	var b strings.Builder
	b.WriteString(parts[0])
	i := 1
	for ; i < len(parts)-1; i++ {
		key := parts[i]
		if val, ok := os.LookupEnv(key); ok && key != "" {
			b.WriteString(val)
			b.WriteString(parts[i+1])
			i++
			continue
		}
		b.WriteString("%")
		b.WriteString(key)
	}
	for ; i < len(parts); i++ {
		b.WriteString("%")
		b.WriteString(parts[i])
	}
	return b.String()
}
