// Package stackcfg holds the project configuration read from gqlstack.yaml.
// The types are plain data with yaml tags; Validate and the conversion
// helpers turn them into the values the builders take.
package stackcfg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/acksell/gqlstack"
	"github.com/acksell/gqlstack/stack/table"
)

// FileName is the configuration file searched for by Find.
const FileName = "gqlstack.yaml"

// Config is the root of gqlstack.yaml.
type Config struct {
	Stack       string         `yaml:"stack"`
	Description string         `yaml:"description,omitempty"`
	UserPool    UserPool       `yaml:"userPool"`
	API         API            `yaml:"api"`
	Resolvers   string         `yaml:"resolvers"`
	Function    Function       `yaml:"function"`
	Table       Table          `yaml:"table"`
	Cache       Cache          `yaml:"cache"`
	Firewall    Firewall       `yaml:"firewall"`
	Logs        Logs           `yaml:"logs"`
	DataSources []DataSource   `yaml:"dataSources"`
	Fields      []Field        `yaml:"fields"`
	Output      Output         `yaml:"output"`
	History     HistoryOptions `yaml:"history"`

	// Dir is the directory relative paths are resolved against. It is the
	// directory of the loaded file.
	Dir string `yaml:"-"`
}

type UserPool struct {
	Name string `yaml:"name"`
}

type API struct {
	Name                  string   `yaml:"name"`
	Schema                string   `yaml:"schema"`
	DefaultAuth           string   `yaml:"defaultAuth"`
	AdditionalAuth        []string `yaml:"additionalAuth,omitempty"`
	FieldLogLevel         string   `yaml:"fieldLogLevel"`
	ExcludeVerboseContent bool     `yaml:"excludeVerboseContent"`
	XRay                  *bool    `yaml:"xray,omitempty"`
}

type Function struct {
	Code    string `yaml:"code"`
	Runtime string `yaml:"runtime"`
	Handler string `yaml:"handler"`
	// Timeout in seconds.
	Timeout    int `yaml:"timeout"`
	MemorySize int `yaml:"memorySize,omitempty"`
}

type Table struct {
	Name          string     `yaml:"name,omitempty"`
	PartitionKey  KeyDef     `yaml:"partitionKey"`
	SortKey       *KeyDef    `yaml:"sortKey,omitempty"`
	TimeToLiveKey string     `yaml:"ttlKey,omitempty"`
	GSIs          []GSI      `yaml:"gsis,omitempty"`
	Retain        *bool      `yaml:"retain,omitempty"`
	Throughput    Throughput `yaml:"throughput,omitempty"`
}

type KeyDef struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // "S", "N", or "B"
}

type GSI struct {
	Name         string  `yaml:"name"`
	PartitionKey KeyDef  `yaml:"partitionKey"`
	SortKey      *KeyDef `yaml:"sortKey,omitempty"`
}

type Throughput struct {
	Read  int64 `yaml:"read"`
	Write int64 `yaml:"write"`
}

type Cache struct {
	Behavior string `yaml:"behavior"`
	TTL      int    `yaml:"ttl"`
	Type     string `yaml:"type"`
}

type Firewall struct {
	// Disabled drops the web ACL. It is required when the API has no key.
	Disabled bool `yaml:"disabled"`
	// AllowedIPs is the default of the allowedIPs deploy parameter.
	AllowedIPs []string `yaml:"allowedIPs"`
}

type Logs struct {
	RetentionDays int `yaml:"retentionDays"`
}

// DataSourceKind values accepted in dataSources[].kind.
const (
	KindTable    = "dynamodb"
	KindFunction = "lambda"
)

type DataSource struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// LogicalID is the template id of the data source, e.g. TodosDataSource.
func (d DataSource) LogicalID() string {
	r := []rune(d.Name)
	if len(r) > 0 {
		r[0] = unicode.ToUpper(r[0])
	}
	return string(r) + "DataSource"
}

type Field struct {
	Type       string   `yaml:"type"`
	Field      string   `yaml:"field"`
	DataSource string   `yaml:"dataSource,omitempty"`
	Caching    *Caching `yaml:"caching,omitempty"`
	Request    *string  `yaml:"request,omitempty"`
	Response   *string  `yaml:"response,omitempty"`
}

type Caching struct {
	TTL  int      `yaml:"ttl"`
	Keys []string `yaml:"keys,omitempty"`
}

type Output struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

type HistoryOptions struct {
	// Dir is the badger directory of the synthesis history.
	Dir string `yaml:"dir"`
}

// Default returns the configuration of the reference todo project.
func Default() Config {
	return Config{
		Stack:       "AppsyncReferenceStack",
		Description: "AppSync GraphQL API with Cognito, DynamoDB, Lambda, caching, alarms and WAF",
		UserPool:    UserPool{Name: "Main"},
		API: API{
			Name:           "GraphQLAPI",
			Schema:         "appsync/schema.graphql",
			DefaultAuth:    "API_KEY",
			AdditionalAuth: []string{"AMAZON_COGNITO_USER_POOLS"},
			FieldLogLevel:  "ALL",
		},
		Resolvers: "appsync/resolvers",
		Function: Function{
			Code:    "lambda/index.js",
			Runtime: "nodejs20.x",
			Handler: "index.handler",
			Timeout: 10,
		},
		Table: Table{PartitionKey: KeyDef{Name: "id", Kind: "S"}},
		Cache: Cache{Behavior: "PER_RESOLVER_CACHING", TTL: 60, Type: "LARGE"},
		Logs:  Logs{RetentionDays: 731},
		DataSources: []DataSource{
			{Name: "todos", Kind: KindTable},
			{Name: "lambda", Kind: KindFunction},
		},
		Fields: []Field{
			{Type: "Query", Field: "getTodo", DataSource: "todos"},
			{Type: "Mutation", Field: "createTodo", DataSource: "todos"},
			{Type: "Query", Field: "listTodos", DataSource: "lambda"},
		},
		Output:  Output{Path: "cdk.out/template.json", Format: "json"},
		History: HistoryOptions{Dir: ".gqlstack/history"},
		Dir:     ".",
	}
}

// XRayEnabled defaults to true.
func (a API) XRayEnabled() bool {
	return a.XRay == nil || *a.XRay
}

// RetainTable defaults to true.
func (t Table) RetainTable() bool {
	return t.Retain == nil || *t.Retain
}

// Load reads the file at path on top of Default. Lists in the file replace
// the default lists.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	cfg.DataSources = nil
	cfg.Fields = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// ErrNotFound is returned by Find when no configuration file exists between
// the start directory and the filesystem root.
var ErrNotFound = errors.New(FileName + " not found")

// Find searches for gqlstack.yaml starting at dir and walking up to the
// filesystem root.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// Path resolves p against the configuration directory.
func (c Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

func (c Config) Validate() error {
	if c.Stack == "" {
		return gqlstack.ConfigError{Field: "stack", Reason: "must not be empty"}
	}
	if c.UserPool.Name == "" {
		return gqlstack.ConfigError{Field: "userPool.name", Reason: "must not be empty"}
	}
	if c.API.Schema == "" {
		return gqlstack.ConfigError{Field: "api.schema", Reason: "must not be empty"}
	}
	switch c.API.FieldLogLevel {
	case "NONE", "ERROR", "ALL":
	default:
		return gqlstack.ConfigError{Field: "api.fieldLogLevel", Reason: fmt.Sprintf("got %q want NONE, ERROR or ALL", c.API.FieldLogLevel)}
	}
	if c.Function.Code == "" || c.Function.Runtime == "" || c.Function.Handler == "" {
		return gqlstack.ConfigError{Field: "function", Reason: "code, runtime and handler are required"}
	}
	if c.Function.Timeout < 1 || c.Function.Timeout > 900 {
		return gqlstack.ConfigError{Field: "function.timeout", Reason: fmt.Sprintf("%d is outside 1..900", c.Function.Timeout)}
	}
	if _, err := c.TableDefinition(); err != nil {
		return err
	}
	if c.Logs.RetentionDays < 0 {
		return gqlstack.ConfigError{Field: "logs.retentionDays", Reason: "must not be negative"}
	}
	if _, err := c.Bindings(); err != nil {
		return err
	}
	return nil
}

// TableDefinition converts the table section.
func (c Config) TableDefinition() (table.TableDefinition, error) {
	keys, err := primaryKey(c.Table.PartitionKey, c.Table.SortKey)
	if err != nil {
		return table.TableDefinition{}, err
	}
	def := table.TableDefinition{
		Name:           c.Table.Name,
		KeyDefinitions: keys,
		TimeToLiveKey:  c.Table.TimeToLiveKey,
	}
	for _, g := range c.Table.GSIs {
		gk, err := primaryKey(g.PartitionKey, g.SortKey)
		if err != nil {
			return table.TableDefinition{}, err
		}
		def.GSIs = append(def.GSIs, table.GSIDefinition{Name: g.Name, KeyDefinitions: gk})
	}
	if err := def.Validate(); err != nil {
		return table.TableDefinition{}, err
	}
	return def, nil
}

func primaryKey(pk KeyDef, sk *KeyDef) (table.PrimaryKeyDefinition, error) {
	kind, err := table.ParseKeyKind(pk.Kind)
	if err != nil {
		return table.PrimaryKeyDefinition{}, err
	}
	def := table.PrimaryKeyDefinition{PartitionKey: table.KeyDef{Name: pk.Name, Kind: kind}}
	if sk != nil {
		kind, err := table.ParseKeyKind(sk.Kind)
		if err != nil {
			return table.PrimaryKeyDefinition{}, err
		}
		def.SortKey = table.KeyDef{Name: sk.Name, Kind: kind}
	}
	return def, nil
}

// Sources returns the data sources keyed by name.
func (c Config) Sources() (map[string]gqlstack.DataSource, error) {
	out := make(map[string]gqlstack.DataSource, len(c.DataSources))
	ids := make(map[string]string)
	for i, d := range c.DataSources {
		field := fmt.Sprintf("dataSources[%d]", i)
		if strings.TrimSpace(d.Name) == "" {
			return nil, gqlstack.ConfigError{Field: field + ".name", Reason: "must not be empty"}
		}
		if _, ok := out[d.Name]; ok {
			return nil, gqlstack.ConfigError{Field: field + ".name", Reason: fmt.Sprintf("%q declared twice", d.Name)}
		}
		id := d.LogicalID()
		if other, ok := ids[id]; ok {
			return nil, gqlstack.ConfigError{Field: field + ".name", Reason: fmt.Sprintf("%q and %q map to the same logical id", other, d.Name)}
		}
		ids[id] = d.Name
		switch d.Kind {
		case KindTable:
			out[d.Name] = gqlstack.TemplateDriven{Name: d.Name, LogicalID: id}
		case KindFunction:
			out[d.Name] = gqlstack.DirectInvoke{Name: d.Name, LogicalID: id}
		default:
			return nil, gqlstack.ConfigError{Field: field + ".kind", Reason: fmt.Sprintf("got %q want %s or %s", d.Kind, KindTable, KindFunction)}
		}
	}
	return out, nil
}

// Bindings converts the fields section. Field order is kept.
func (c Config) Bindings() ([]gqlstack.FieldBinding, error) {
	sources, err := c.Sources()
	if err != nil {
		return nil, err
	}
	out := make([]gqlstack.FieldBinding, 0, len(c.Fields))
	for i, f := range c.Fields {
		typ, err := gqlstack.ParseOperationType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("fields[%d]: %w", i, err)
		}
		b := gqlstack.FieldBinding{
			Type:     typ,
			Field:    f.Field,
			Request:  f.Request,
			Response: f.Response,
		}
		if f.DataSource != "" {
			ds, ok := sources[f.DataSource]
			if !ok {
				return nil, gqlstack.ConfigError{
					Field:  fmt.Sprintf("fields[%d].dataSource", i),
					Reason: fmt.Sprintf("unknown data source %q", f.DataSource),
				}
			}
			b.DataSource = ds
		}
		if f.Caching != nil {
			b.Caching = &gqlstack.CachingPolicy{TTL: f.Caching.TTL, Keys: f.Caching.Keys}
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("fields[%d]: %w", i, err)
		}
		out = append(out, b)
	}
	if err := gqlstack.CheckUnique(out); err != nil {
		return nil, err
	}
	return out, nil
}
