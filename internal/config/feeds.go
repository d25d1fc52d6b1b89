package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FeedConfig describes one external calendar subscription.
type FeedConfig struct {
	// ID is the feed identifier, an address such as a calendar email.
	ID string `yaml:"id" json:"id"`
	// URL is an ICS endpoint. Empty means the Google Calendar API is queried by ID.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Format is "ics" (default) or "json" for URL feeds.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
}

// OwnerFeeds lists the feeds connected for one owner.
type OwnerFeeds struct {
	Owner      string       `yaml:"owner" json:"owner"`
	Primary    FeedConfig   `yaml:"primary" json:"primary"`
	Additional []FeedConfig `yaml:"additional" json:"additional"`
}

// All returns the primary feed followed by the additional ones.
func (o OwnerFeeds) All() []FeedConfig {
	out := make([]FeedConfig, 0, len(o.Additional)+1)
	if o.Primary.ID != "" {
		out = append(out, o.Primary)
	}
	return append(out, o.Additional...)
}

// FeedsFile is the YAML document at FEEDS_FILE.
type FeedsFile struct {
	Owners []OwnerFeeds `yaml:"owners" json:"owners"`
}

// Normalize trims identifiers and drops owners without a name.
func (f *FeedsFile) Normalize() {
	kept := f.Owners[:0]
	for _, o := range f.Owners {
		o.Owner = strings.TrimSpace(o.Owner)
		if o.Owner == "" {
			continue
		}
		o.Primary.ID = strings.TrimSpace(o.Primary.ID)
		for i := range o.Additional {
			o.Additional[i].ID = strings.TrimSpace(o.Additional[i].ID)
		}
		kept = append(kept, o)
	}
	f.Owners = kept
}

// ForOwner returns the feeds configured for owner.
func (f *FeedsFile) ForOwner(owner string) (OwnerFeeds, bool) {
	for _, o := range f.Owners {
		if strings.EqualFold(o.Owner, owner) {
			return o, true
		}
	}
	return OwnerFeeds{}, false
}

// LoadFeeds reads the feeds file. A missing file yields an empty set.
func LoadFeeds(path string) (*FeedsFile, error) {
	if path == "" {
		return nil, errors.New("feeds path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &FeedsFile{}, nil
		}
		return nil, err
	}
	var f FeedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	f.Normalize()
	return &f, nil
}

// OwnerNames lists every owner with connected feeds.
func (f *FeedsFile) OwnerNames() []string {
	out := make([]string, 0, len(f.Owners))
	for _, o := range f.Owners {
		out = append(out, o.Owner)
	}
	return out
}
