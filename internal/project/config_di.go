package project

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// DIConfig captures the project surge.toml [di] table, tuning
// internal/di's definite-initialization checker.
type DIConfig struct {
	// MaxDiagnosticsPerFunction caps how many DI diagnostics one function
	// may report before the checker stops reporting new ones (each still
	// contributes to HadError). Zero means use internal/di's own default.
	MaxDiagnosticsPerFunction int `toml:"max_diagnostics_per_function"`
	// DisableConditionalDestroy rejects ambiguous initialization with a
	// diagnostic instead of inserting a runtime liveness-bitmap check.
	DisableConditionalDestroy bool `toml:"disable_conditional_destroy"`
	// WarnOnPartialStoreIntoLet downgrades what would otherwise be silent
	// acceptance of a partial store into a let-bound aggregate element
	// into a warning, surfaced once the store completes every element.
	WarnOnPartialStoreIntoLet bool `toml:"warn_on_partial_store_into_let"`
}

// DefaultDIConfig returns the configuration internal/di uses when a
// project's surge.toml carries no [di] table at all.
func DefaultDIConfig() DIConfig {
	return DIConfig{
		MaxDiagnosticsPerFunction: 64,
		DisableConditionalDestroy: false,
		WarnOnPartialStoreIntoLet: false,
	}
}

type projectDI struct {
	DI DIConfig `toml:"di"`
}

// LoadDIConfig parses the [di] section from a project surge.toml, falling
// back to DefaultDIConfig for any field the table omits.
func LoadDIConfig(path string) (DIConfig, error) {
	cfg := projectDI{DI: DefaultDIConfig()}
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return DIConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	return cfg.DI, nil
}
