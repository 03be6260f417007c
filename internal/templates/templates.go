// Package templates holds the literal configuration content the
// provision pipeline writes: the deployment.toml database sections and
// the connection URLs formed from an engine profile.
package templates

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/dakshina99/apimdbctl/internal/config"
)

// Section keys of the two database blocks in deployment.toml.
const (
	PrimarySectionKey = "database.apim_db"
	SharedSectionKey  = "database.shared_db"
)

// SectionKeys lists every database section the mutation replaces.
func SectionKeys() []string {
	return []string{PrimarySectionKey, SharedSectionKey}
}

// SectionKeyFor maps a target role to its deployment.toml section.
func SectionKeyFor(role string) string {
	if role == config.RolePrimary {
		return PrimarySectionKey
	}
	return SharedSectionKey
}

const dbSectionTemplate = `[{{.Section}}]
type = "{{.Type}}"
url = "{{.URL}}"
username = "{{.Username}}"
password = "{{.Password}}"
driver = "{{.Driver}}"
validationQuery = "{{.ValidationQuery}}"
pool_options.maxActive = 50
pool_options.maxWait = 60000

`

var sectionTmpl = template.Must(template.New("db-section").Parse(dbSectionTemplate))

// ServiceURL renders the profile's connection-URL template for a target.
func ServiceURL(profile config.EngineProfile, target config.Target) (string, error) {
	tmpl, err := template.New("url").Parse(profile.URLTemplate)
	if err != nil {
		return "", fmt.Errorf("parse url template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, target); err != nil {
		return "", fmt.Errorf("render url for %s: %w", target.Database, err)
	}
	return buf.String(), nil
}

// DatabaseSections renders the replacement database blocks for every
// target, in target order, each terminated by a blank line.
func DatabaseSections(profile config.EngineProfile, targets []config.Target) ([]byte, error) {
	var buf bytes.Buffer
	for _, target := range targets {
		url, err := ServiceURL(profile, target)
		if err != nil {
			return nil, err
		}
		data := struct {
			Section         string
			Type            string
			URL             string
			Username        string
			Password        string
			Driver          string
			ValidationQuery string
		}{
			Section:         SectionKeyFor(target.Role),
			Type:            profile.Type,
			URL:             url,
			Username:        target.Username,
			Password:        target.Password,
			Driver:          profile.Driver,
			ValidationQuery: profile.ValidationQuery,
		}
		if err := sectionTmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("render section for %s: %w", target.Database, err)
		}
	}
	return buf.Bytes(), nil
}
