package workspace

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

var schema = gojsonschema.NewStringLoader(schemaJSON)

// FileExtensions lists the extensions recognized as workspace files
var FileExtensions = []string{".yaml", ".yml", ".json"}

type Workspace struct {
	Path            string                            `yaml:"-"`
	Environments    []*model.Environment              `yaml:"environments"`
	Authentications []*model.AuthenticationCredential `yaml:"authentications"`
	Collections     []*model.Collection               `yaml:"collections"`
	Schedules       []*model.ScheduledTest            `yaml:"schedules"`
}

// ValidationErrors collects every problem found in a workspace document
type ValidationErrors []string

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return "workspace is invalid: " + e[0]
	}
	return fmt.Sprintf("workspace is invalid (%d errors):\n  - %s", len(e), strings.Join(e, "\n  - "))
}

// IsWorkspaceFile reports whether path has a workspace file extension
func IsWorkspaceFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range FileExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads, validates and decodes the workspace at path
func Load(path string) (*Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workspace: %w", err)
	}

	ws, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ws.Path = path
	return ws, nil
}

// Parse validates and decodes a workspace document
func Parse(data []byte) (*Workspace, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	ws := &Workspace{}
	if err := yaml.Unmarshal(data, ws); err != nil {
		return nil, fmt.Errorf("decoding workspace: %w", err)
	}

	if errs := ws.check(); len(errs) > 0 {
		return nil, errs
	}
	return ws, nil
}

// Validate checks a document against the workspace schema
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing workspace: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validating workspace: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make(ValidationErrors, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs
}

// check enforces the cross references the schema cannot express
func (w *Workspace) check() ValidationErrors {
	var errs ValidationErrors

	envs := make(map[string]bool)
	for _, e := range w.Environments {
		if envs[e.ID] {
			errs = append(errs, fmt.Sprintf("duplicate environment id %q", e.ID))
		}
		envs[e.ID] = true
	}

	auths := make(map[string]bool)
	for _, a := range w.Authentications {
		if auths[a.ID] {
			errs = append(errs, fmt.Sprintf("duplicate authentication id %q", a.ID))
		}
		auths[a.ID] = true
	}

	collections := make(map[string]bool)
	apis := make(map[string]bool)
	for _, c := range w.Collections {
		if collections[c.ID] {
			errs = append(errs, fmt.Sprintf("duplicate collection id %q", c.ID))
		}
		collections[c.ID] = true
		for _, api := range c.APIs {
			if apis[api.ID] {
				errs = append(errs, fmt.Sprintf("duplicate api id %q in collection %q", api.ID, c.ID))
			}
			apis[api.ID] = true
		}
	}

	schedules := make(map[string]bool)
	for _, s := range w.Schedules {
		if schedules[s.ID] {
			errs = append(errs, fmt.Sprintf("duplicate schedule id %q", s.ID))
		}
		schedules[s.ID] = true

		if !envs[s.EnvironmentID] {
			errs = append(errs, fmt.Sprintf("schedule %q references unknown environment %q", s.ID, s.EnvironmentID))
		}
		if s.AuthenticationID != "" && !auths[s.AuthenticationID] {
			errs = append(errs, fmt.Sprintf("schedule %q references unknown authentication %q", s.ID, s.AuthenticationID))
		}
		for _, id := range s.CollectionIDs {
			if !collections[id] {
				errs = append(errs, fmt.Sprintf("schedule %q references unknown collection %q", s.ID, id))
			}
		}
	}

	return errs
}

// Environment returns the environment with the given id or name
func (w *Workspace) Environment(idOrName string) *model.Environment {
	for _, e := range w.Environments {
		if e.ID == idOrName || e.Name == idOrName {
			return e
		}
	}
	return nil
}

func (w *Workspace) Collection(id string) *model.Collection {
	for _, c := range w.Collections {
		if c.ID == id {
			return c
		}
	}
	return nil
}
