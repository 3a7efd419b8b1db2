package plugin

import "fmt"

// PluginType identifies which of the pipeline's three plugin kinds a
// descriptor belongs to.
type PluginType string

const (
	// PluginTypeSearcher discovers child items from a parent item's content.
	PluginTypeSearcher PluginType = "searcher"

	// PluginTypeBuilder transforms one matched item into an output file.
	PluginTypeBuilder PluginType = "builder"

	// PluginTypeGenerator aggregates the builder-phase result snapshot into new output files.
	PluginTypeGenerator PluginType = "generator"
)

// IsValid returns true if the plugin type is one of the three recognized kinds.
func (t PluginType) IsValid() bool {
	switch t {
	case PluginTypeSearcher, PluginTypeBuilder, PluginTypeGenerator:
		return true
	default:
		return false
	}
}

// String returns the string representation of the plugin type.
func (t PluginType) String() string {
	return string(t)
}

// PluginError represents an error that occurred within a plugin invocation.
type PluginError struct {
	// PluginName identifies which plugin failed.
	PluginName string

	// Operation describes what the plugin was doing when it failed.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s failed during %s: %v", e.PluginName, e.Operation, e.Err)
}

// Unwrap returns the underlying error for error inspection.
func (e *PluginError) Unwrap() error {
	return e.Err
}

// NewPluginError creates a new plugin error.
func NewPluginError(pluginName, operation string, err error) *PluginError {
	return &PluginError{PluginName: pluginName, Operation: operation, Err: err}
}
