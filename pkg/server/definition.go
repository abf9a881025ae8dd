package server

import (
	"fmt"
	"strings"

	"github.com/vango-dev/statesync/pkg/urlcodec"
	"github.com/vango-dev/statesync/pkg/value"
)

// Definition registers one state consumer with the host.
type Definition struct {
	// Name identifies the consumer in routes.
	Name string

	// Namespace prefixes its URL parameters. Default: Name.
	Namespace string

	// StorageKey is the base storage key; sessions append the client id.
	// Default: Name.
	StorageKey string

	// Path is the page path shareable URLs point at.
	Path string

	// Title is shown in the command palette. Default: Name.
	Title string

	// Template is the default state and shape oracle.
	Template *value.Object
}

func (d Definition) normalize() (Definition, error) {
	if d.Name == "" {
		return d, fmt.Errorf("server: definition has no name")
	}
	if d.Template == nil {
		return d, fmt.Errorf("server: definition %q has no template", d.Name)
	}
	if d.Namespace == "" {
		d.Namespace = d.Name
	}
	if strings.Contains(d.Namespace, urlcodec.Separator) {
		return d, fmt.Errorf("server: namespace %q contains %q", d.Namespace, urlcodec.Separator)
	}
	if d.StorageKey == "" {
		d.StorageKey = d.Name
	}
	if d.Path == "" {
		d.Path = "/"
	}
	if d.Title == "" {
		d.Title = d.Name
	}
	d.Template = d.Template.Clone()
	return d, nil
}

// clientKey scopes the storage key to one client.
func (d Definition) clientKey(clientID string) string {
	return d.StorageKey + ":" + clientID
}
