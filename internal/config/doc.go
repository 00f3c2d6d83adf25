// Package config provides configuration for the wfdlink tools.
//
// It has two halves with different lifecycles:
//
// # Fixed settings
//
// Settings consolidates the tuning constants of the connect and
// address-resolution flow (retry budgets, delays, subnet, scan bounds) into a
// single immutable value created at process start via DefaultSettings. These
// are compile-time decisions, not runtime knobs; tests build their own
// Settings values to shrink delays and ranges.
//
// # User registry
//
// A YAML-based configuration file stores user-defined metadata for known
// peers (nicknames, last resolved IP, last connect time) and application
// preferences (P2P interface name, wpa_cli path). The file lives in the
// platform-appropriate location:
//   - Linux: $XDG_CONFIG_HOME/wfdlink/config.yaml or $HOME/.config/wfdlink/config.yaml
//   - macOS: $HOME/.config/wfdlink/config.yaml
//   - Windows: %LOCALAPPDATA%\wfdlink\config.yaml
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.UpdatePeerLastConnected("aa:bb:cc:dd:ee:ff", "192.168.49.12")
//
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// Saves are atomic (write to a temp file, then rename) so a crash cannot
// leave a truncated config behind.
package config
