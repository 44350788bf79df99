// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. User config file (~/.tasklane/tasklane.toml or OS-specific config directory)
// 3. Project config file (tasklane.toml or .tasklane.toml in the working directory)
// 4. Environment variables (TASKLANE_*, plus OPENAI_API_KEY)
// 5. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
//
// User-level config locations:
// - ~/.tasklane/tasklane.toml (preferred)
// - Windows: %APPDATA%\tasklane\tasklane.toml
// - macOS: ~/Library/Application Support/tasklane/tasklane.toml
// - Linux/BSD: $XDG_CONFIG_HOME/tasklane/tasklane.toml or ~/.config/tasklane/tasklane.toml
//
// Project-level config locations (overrides user config):
// - ./tasklane.toml (preferred)
// - ./.tasklane.toml
package config
