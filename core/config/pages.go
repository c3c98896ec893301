package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type pagesFile struct {
	Pages []PageConfig `yaml:"pages"`
}

// LoadPagesFile reads the Facebook page list from a YAML file:
//
//	pages:
//	  - id: "1234"
//	    name: "Smile Dental"
//	    access_token: "..."
func LoadPagesFile(path string) ([]PageConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pages file: %w", err)
	}

	var f pagesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing pages file: %w", err)
	}

	for i, p := range f.Pages {
		if p.ID == "" || p.AccessToken == "" {
			return nil, fmt.Errorf("pages file entry %d: id and access_token are required", i)
		}
	}
	return f.Pages, nil
}
