package patches

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/steveyegge/modhook/internal/canon"
	"github.com/steveyegge/modhook/internal/filters"
	"gopkg.in/yaml.v3"
)

// Plugin is a named set of patches and lazy finds.
type Plugin struct {
	Name    string
	Path    string
	Patches []*Patch
	Finds   []Find
}

// Find is a named lazy lookup declared by a plugin.
type Find struct {
	Name   string
	Filter filters.Filter
}

// LoadOptions controls how plugin files are prepared.
type LoadOptions struct {
	// Canonicalizer expands templates. Nil means canon.Default.
	Canonicalizer *canon.Canonicalizer
	// SelfPathFormat renders the $self path. Empty means DefaultSelfPathFormat.
	SelfPathFormat string
}

func (o LoadOptions) canonicalizer() *canon.Canonicalizer {
	if o.Canonicalizer == nil {
		return canon.Default
	}
	return o.Canonicalizer
}

// PluginConfig is the YAML structure of a plugin file.
type PluginConfig struct {
	Name     string        `yaml:"name"`
	SelfPath string        `yaml:"self_path,omitempty"`
	Patches  []PatchConfig `yaml:"patches,omitempty"`
	Finds    []FindConfig  `yaml:"finds,omitempty"`
}

// PatchConfig is one patch in a plugin file.
type PatchConfig struct {
	Find        TemplateConfig      `yaml:"find"`
	Replacement []ReplacementConfig `yaml:"replacement"`
	All         bool                `yaml:"all,omitempty"`
	NoWarn      bool                `yaml:"no_warn,omitempty"`
	Group       bool                `yaml:"group,omitempty"`
}

// ReplacementConfig is one match/replace pair in a plugin file.
type ReplacementConfig struct {
	Match   TemplateConfig `yaml:"match"`
	Replace string         `yaml:"replace"`
}

// FindConfig declares a lazy find. By is one of code, pattern, props,
// component or mangled.
type FindConfig struct {
	Name  string                `yaml:"name,omitempty"`
	By    string                `yaml:"by"`
	Args  []string              `yaml:"args,omitempty"`
	Flags string                `yaml:"flags,omitempty"`
	Code  []string              `yaml:"code,omitempty"`
	Map   map[string]FindConfig `yaml:"map,omitempty"`
}

// TemplateConfig holds a template written either as a plain scalar or as a
// mapping with regex and flags keys.
type TemplateConfig struct {
	Template canon.Template
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TemplateConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		t.Template = canon.Literal(s)
		return nil
	case yaml.MappingNode:
		var re struct {
			Regex string `yaml:"regex"`
			Flags string `yaml:"flags"`
		}
		if err := node.Decode(&re); err != nil {
			return err
		}
		if re.Regex == "" {
			return fmt.Errorf("line %d: regex template needs a regex key", node.Line)
		}
		t.Template = canon.Regex{Source: re.Regex, Flags: re.Flags}
		return nil
	default:
		return fmt.Errorf("line %d: template must be a string or a {regex, flags} mapping", node.Line)
	}
}

type regexTemplateYAML struct {
	Regex string `yaml:"regex"`
	Flags string `yaml:"flags,omitempty"`
}

// MarshalYAML implements yaml.Marshaler. Literals are written as plain
// scalars, regexes as a {regex, flags} mapping.
func (t TemplateConfig) MarshalYAML() (interface{}, error) {
	switch v := t.Template.(type) {
	case canon.Literal:
		return string(v), nil
	case canon.Regex:
		return regexTemplateYAML{Regex: v.Source, Flags: v.Flags}, nil
	case *canon.Pattern:
		if v.IsLiteral() {
			return v.Template(), nil
		}
		return regexTemplateYAML{Regex: v.Template(), Flags: v.Flags()}, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported template type %T", t.Template)
}

// WritePlugin validates config and writes it to dir as <name>.yaml. An
// existing file is never overwritten. Returns the written path.
func WritePlugin(dir string, config *PluginConfig) (string, error) {
	if err := validatePluginConfig(config); err != nil {
		return "", fmt.Errorf("invalid plugin: %w", err)
	}
	if strings.ContainsAny(config.Name, `/\`) || strings.HasPrefix(config.Name, ".") {
		return "", fmt.Errorf("plugin name %q cannot be used as a file name", config.Name)
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("marshaling plugin: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating plugin directory: %w", err)
	}
	path := filepath.Join(dir, config.Name+".yaml")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("creating plugin file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// ParsePlugin decodes and prepares a plugin from YAML bytes.
func ParsePlugin(data []byte, opts LoadOptions) (*Plugin, error) {
	var config PluginConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if err := validatePluginConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid plugin: %w", err)
	}
	return buildPlugin(&config, opts)
}

// LoadPlugin loads a plugin definition from a YAML file.
func LoadPlugin(path string, opts LoadOptions) (*Plugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading YAML file: %w", err)
	}
	p, err := ParsePlugin(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Path = path
	return p, nil
}

// LoadPluginsFromDir loads every .yaml and .yml file in dir. A missing
// directory yields no plugins. Files that fail to load are skipped and their
// errors joined into the returned error.
func LoadPluginsFromDir(dir string, opts LoadOptions) ([]*Plugin, error) {
	var plugins []*Plugin

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return plugins, nil
		}
		return nil, err
	}

	var errs []error
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) != ".yaml" && filepath.Ext(name) != ".yml" {
			continue
		}

		path := filepath.Join(dir, name)
		plugin, err := LoadPlugin(path, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := seen[plugin.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: plugin %q already registered by %s", path, plugin.Name, prev))
			continue
		}
		seen[plugin.Name] = path
		plugins = append(plugins, plugin)
	}

	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name < plugins[j].Name })
	return plugins, errors.Join(errs...)
}

func validatePluginConfig(config *PluginConfig) error {
	if config.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	for i, p := range config.Patches {
		if p.Find.Template == nil {
			return fmt.Errorf("patch %d: find is required", i)
		}
		if len(p.Replacement) == 0 {
			return fmt.Errorf("patch %d: at least one replacement is required", i)
		}
		for j, r := range p.Replacement {
			if r.Match.Template == nil {
				return fmt.Errorf("patch %d: replacement %d: match is required", i, j)
			}
		}
	}
	names := make(map[string]bool)
	for i, f := range config.Finds {
		if f.Name == "" {
			return fmt.Errorf("find %d: name is required", i)
		}
		if names[f.Name] {
			return fmt.Errorf("find %q declared twice", f.Name)
		}
		names[f.Name] = true
	}
	return nil
}

func buildPlugin(config *PluginConfig, opts LoadOptions) (*Plugin, error) {
	c := opts.canonicalizer()
	selfPath := config.SelfPath
	if selfPath == "" {
		selfPath = SelfPath(opts.SelfPathFormat, config.Name)
	}

	plugin := &Plugin{Name: config.Name}
	for _, pc := range config.Patches {
		patch := &Patch{
			Plugin: config.Name,
			Find:   canon.ValueOf(pc.Find.Template),
			All:    pc.All,
			NoWarn: pc.NoWarn,
			Group:  pc.Group,
		}
		for _, rc := range pc.Replacement {
			patch.Replacements = append(patch.Replacements, Replacement{
				Match:   canon.ValueOf(rc.Match.Template),
				Replace: canon.ValueOf(canon.Text(rc.Replace)),
			})
		}
		if err := Canonicalize(patch, selfPath, c); err != nil {
			return nil, err
		}
		plugin.Patches = append(plugin.Patches, patch)
	}

	for _, fc := range config.Finds {
		f, err := BuildFilter(fc, c)
		if err != nil {
			return nil, fmt.Errorf("find %q: %w", fc.Name, err)
		}
		plugin.Finds = append(plugin.Finds, Find{Name: fc.Name, Filter: filters.Named(fc.Name, f)})
	}
	return plugin, nil
}

// BuildFilter turns a find declaration into a filter.
func BuildFilter(fc FindConfig, c *canon.Canonicalizer) (filters.Filter, error) {
	var f filters.Filter
	switch fc.By {
	case "code":
		f = filters.ByCodeWith(c, fc.Args...)
	case "props":
		f = filters.ByProps(fc.Args...)
	case "component":
		f = filters.ComponentByCodeWith(c, fc.Args...)
	case "pattern":
		if len(fc.Args) != 1 {
			return f, fmt.Errorf("pattern finds take exactly one regex argument")
		}
		f = filters.ByPatternWith(c, canon.Regex{Source: fc.Args[0], Flags: fc.Flags})
	case "mangled":
		mappers := make(map[string]filters.Filter, len(fc.Map))
		for name, sub := range fc.Map {
			m, err := BuildFilter(sub, c)
			if err != nil {
				return f, fmt.Errorf("map %s: %w", name, err)
			}
			mappers[name] = m
		}
		f = filters.MapMangled(filters.ByCodeWith(c, fc.Code...), mappers)
	default:
		return f, fmt.Errorf("unknown find kind %q", fc.By)
	}
	return f, f.Err()
}
