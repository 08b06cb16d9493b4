package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"zonesnap/pkg/feed"
	"zonesnap/pkg/occupancy"
	"zonesnap/pkg/zone"
)

// File is the YAML deployment configuration: the provider roster (with
// churn capability) and the zone schemes to aggregate under. Everything
// else is environment variables and constants.
type File struct {
	Timezone       string              `yaml:"timezone"`
	StartOfDayHour int                 `yaml:"start_of_day_hour"`
	Providers      []feed.ProviderSpec `yaml:"providers"`
	Schemes        []zone.SchemeSpec   `yaml:"schemes"`
}

// LoadFile reads and validates a YAML config file. An empty path returns
// the defaults.
func LoadFile(path string) (*File, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the Washington DC deployment the service grew up with:
// three GBFS providers and the res-9 hex scheme.
func Defaults() *File {
	return &File{
		Timezone:       DefaultTimezone,
		StartOfDayHour: DefaultStartOfDayHour,
		Providers: []feed.ProviderSpec{
			{
				Name:  occupancy.ProviderLime,
				URL:   "https://data.lime.bike/api/partners/v1/gbfs/washington_dc/free_bike_status.json",
				Churn: false,
			},
			{
				Name:  occupancy.ProviderVeo,
				URL:   "https://cluster-prod.veoride.com/api/shares/name/xdc/gbfs/free_bike_status",
				Churn: true,
			},
			{
				Name:  occupancy.ProviderHopp,
				URL:   "https://mds.bolt.eu/gbfs/2/23/free_bike_status",
				Churn: true,
			},
		},
		Schemes: []zone.SchemeSpec{
			{Name: "h3-9", Kind: zone.KindHex, Resolution: 9},
		},
	}
}

// Validate checks the roster and schemes. Provider names form a closed
// set; unknown names are configuration errors, not data.
func (f *File) Validate() error {
	if len(f.Providers) == 0 {
		return fmt.Errorf("config: at least one provider is required")
	}
	seen := make(map[occupancy.Provider]bool, len(f.Providers))
	for _, p := range f.Providers {
		if !occupancy.KnownProvider(p.Name) {
			return fmt.Errorf("config: unknown provider %q", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("config: duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
		if p.URL == "" {
			return fmt.Errorf("config: provider %s has no feed URL", p.Name)
		}
	}

	if len(f.Schemes) == 0 {
		return fmt.Errorf("config: at least one zone scheme is required")
	}
	schemeNames := make(map[string]bool, len(f.Schemes))
	for _, s := range f.Schemes {
		if s.Name == "" {
			return fmt.Errorf("config: zone scheme without a name")
		}
		if schemeNames[s.Name] {
			return fmt.Errorf("config: duplicate zone scheme %q", s.Name)
		}
		schemeNames[s.Name] = true
		switch s.Kind {
		case zone.KindHex:
		case zone.KindPolygon:
			if s.BoundaryFile == "" {
				return fmt.Errorf("config: polygon scheme %q has no boundary_file", s.Name)
			}
		default:
			return fmt.Errorf("config: scheme %q has unknown kind %q", s.Name, s.Kind)
		}
	}

	if f.StartOfDayHour < 0 || f.StartOfDayHour > 23 {
		return fmt.Errorf("config: start_of_day_hour must be 0-23, got %d", f.StartOfDayHour)
	}
	return nil
}
