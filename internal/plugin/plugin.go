// Package plugin provides the shared registration and lookup machinery for
// the pipeline's three host-controlled plugin kinds (searcher, builder,
// generator). Each kind defines its own invocation signature in its own
// package (internal/search, internal/build, internal/generate); this
// package only knows about identity and versioning.
package plugin

import "fmt"

// Plugin is the shared identity every searcher, builder, and generator
// descriptor carries, independent of its invocation signature.
type Plugin interface {
	// Metadata returns the plugin's identity (name, version, type).
	Metadata() PluginMetadata
}

// PluginMetadata describes a plugin's identity.
type PluginMetadata struct {
	// Name is the identifier a job file names this plugin by.
	Name string

	// Version is the producer version recorded in manifest results.
	Version string

	// Type identifies which of the three plugin kinds this is.
	Type PluginType

	// Description provides a human-readable summary of the plugin's purpose.
	Description string
}

// String returns a human-readable representation of the plugin metadata.
func (m PluginMetadata) String() string {
	return fmt.Sprintf("%s@%s (%s)", m.Name, m.Version, m.Type)
}

// Validate checks if the plugin metadata is well-formed.
func (m PluginMetadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("plugin version is required")
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid plugin type: %s", m.Type)
	}
	return nil
}
