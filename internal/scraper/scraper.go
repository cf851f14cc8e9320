package scraper

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
)

// Technical names the kind of table a profile extracts.
type Technical string

const (
	TechnicalHistory Technical = "history"
)

// Profile is the declarative description of one technical type: where its
// page lives, how to find its table, and how its columns map onto the
// output schema.
type Profile struct {
	Technical Technical `yaml:"technical"`
	// Path is the page segment after /quote/<TICKER>/.
	Path string `yaml:"path"`
	// Table selects candidate table elements in the rendered page.
	Table string `yaml:"table"`
	// Rows selects the data rows counted during pagination.
	Rows string `yaml:"rows"`
	// Required header keys used to pick one table among several candidates.
	Required []string `yaml:"required"`
	// Rename maps canonical header keys onto output columns.
	Rename map[string]string `yaml:"rename"`
	// Skip drops a row when the named column contains any of the markers.
	Skip map[string][]string `yaml:"skip"`
}

func HistoryProfile() Profile {
	return Profile{
		Technical: TechnicalHistory,
		Path:      "history",
		Table:     "table",
		Rows:      "table tbody tr",
		Required:  []string{history.ColumnDate, history.ColumnOpen},
		Rename: map[string]string{
			"adj close": history.ColumnPrice,
			"adj":       history.ColumnPrice,
		},
		Skip: map[string][]string{
			history.ColumnOpen: {"Dividend", "Split"},
		},
	}
}

func (p Profile) Validate() error {
	if p.Technical == "" {
		return fmt.Errorf("profile: technical type cannot be empty")
	}
	if p.Path == "" {
		return fmt.Errorf("profile %s: path cannot be empty", p.Technical)
	}
	if p.Table == "" || p.Rows == "" {
		return fmt.Errorf("profile %s: table and row selectors are required", p.Technical)
	}
	for from, to := range p.Rename {
		if !slices.Contains(history.Columns, to) {
			return fmt.Errorf("profile %s: rename %q targets unknown column %q", p.Technical, from, to)
		}
	}
	return nil
}

// Merge overlays the non-empty fields of o onto p.
func (p Profile) Merge(o Profile) Profile {
	if o.Path != "" {
		p.Path = o.Path
	}
	if o.Table != "" {
		p.Table = o.Table
	}
	if o.Rows != "" {
		p.Rows = o.Rows
	}
	if len(o.Required) > 0 {
		p.Required = o.Required
	}
	if len(o.Rename) > 0 {
		p.Rename = o.Rename
	}
	if len(o.Skip) > 0 {
		p.Skip = o.Skip
	}
	return p
}

type Registry struct {
	mu       sync.RWMutex
	profiles map[Technical]Profile
}

func NewRegistry() *Registry {
	return &Registry{
		profiles: make(map[Technical]Profile),
	}
}

// DefaultRegistry holds the built-in profiles.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(HistoryProfile())
	return r
}

func (r *Registry) Register(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Technical] = p
	return nil
}

// Override merges o into the registered profile of the same technical type.
func (r *Registry) Override(o Profile) error {
	r.mu.Lock()
	base, ok := r.profiles[o.Technical]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("profile not found for technical type: %s", o.Technical)
	}
	return r.Register(base.Merge(o))
}

func (r *Registry) Get(t Technical) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[t]
	if !ok {
		return Profile{}, fmt.Errorf("profile not found for technical type: %s", t)
	}
	return p, nil
}
