package models

import "time"

// PluginType tells whether a connector ships with the binary or is downloaded.
type PluginType string

const (
	PluginTypeBuiltin  PluginType = "builtin"
	PluginTypeExternal PluginType = "external"
)

// Plugin describes a connector available for installation.
type Plugin struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Type           PluginType `json:"type"`
	ArtifactURL    string     `json:"artifact_url,omitempty"`
	DefaultInstall bool       `json:"default_install"`
}

// PluginStatus is the installation state of a plugin for one organization.
type PluginStatus string

const (
	PluginStatusNotInstalled PluginStatus = "NOT_INSTALLED"
	PluginStatusInstalling   PluginStatus = "INSTALLING"
	PluginStatusInstalled    PluginStatus = "INSTALLED"
	PluginStatusFailed       PluginStatus = "FAILED"
)

// OrganizationPlugin is the installation record keyed by (OrganizationID, PluginID).
type OrganizationPlugin struct {
	OrganizationID string       `json:"organization_id"`
	PluginID       string       `json:"plugin_id"`
	Status         PluginStatus `json:"status"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Organization carries the plugin list returned by install and uninstall.
type Organization struct {
	ID      string                `json:"id"`
	Name    string                `json:"name,omitempty"`
	Plugins []*OrganizationPlugin `json:"plugins"`
}
