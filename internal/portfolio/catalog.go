// Package portfolio loads the projects and skills shown on the site.
package portfolio

import (
	"cmp"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultProficiency = 50

// Categories lists the accepted skill categories
var Categories = []string{
	"Frontend",
	"Backend",
	"Database",
	"DevOps",
	"Design",
	"Mobile",
	"Cloud",
	"Data Science",
	"Game Development",
	"Other",
}

// Project is one showcased project
type Project struct {
	Title        string    `yaml:"title" json:"title"`
	Description  string    `yaml:"description" json:"description"`
	Image        string    `yaml:"image" json:"image,omitempty"`
	URL          string    `yaml:"url" json:"url,omitempty"`
	GithubURL    string    `yaml:"github_url" json:"github_url,omitempty"`
	Technologies []string  `yaml:"technologies" json:"technologies"`
	CreatedAt    time.Time `yaml:"created_at" json:"created_at"`
}

// Skill is one entry of the skills grid
type Skill struct {
	Name        string `yaml:"name" json:"name"`
	Proficiency *int   `yaml:"proficiency" json:"proficiency"`
	Category    string `yaml:"category" json:"category"`
	Icon        string `yaml:"icon" json:"icon,omitempty"`
}

// Catalog is the loaded portfolio content, already in display order
type Catalog struct {
	Projects []Project `yaml:"projects" json:"projects"`
	Skills   []Skill   `yaml:"skills" json:"skills"`
}

// LoadCatalog reads and validates the content file at path
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read portfolio content: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes YAML content, applies defaults and sorts for display:
// projects newest first, skills by category then proficiency descending.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse portfolio content: %w", err)
	}

	for i := range c.Projects {
		p := &c.Projects[i]
		if strings.TrimSpace(p.Title) == "" {
			return nil, fmt.Errorf("project %d: title is required", i)
		}
		if len(p.Title) > 200 {
			return nil, fmt.Errorf("project %q: title is too long", p.Title)
		}
		for _, link := range []string{p.URL, p.GithubURL} {
			if link != "" && !isHTTPURL(link) {
				return nil, fmt.Errorf("project %q: invalid url %q", p.Title, link)
			}
		}
	}

	for i := range c.Skills {
		s := &c.Skills[i]
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("skill %d: name is required", i)
		}
		if s.Proficiency == nil {
			p := defaultProficiency
			s.Proficiency = &p
		}
		if *s.Proficiency < 0 || *s.Proficiency > 100 {
			return nil, fmt.Errorf("skill %q: proficiency must be between 0 and 100", s.Name)
		}
		if !slices.Contains(Categories, s.Category) {
			return nil, fmt.Errorf("skill %q: unknown category %q", s.Name, s.Category)
		}
	}

	slices.SortStableFunc(c.Projects, func(a, b Project) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	slices.SortStableFunc(c.Skills, func(a, b Skill) int {
		return cmp.Or(
			cmp.Compare(a.Category, b.Category),
			cmp.Compare(*b.Proficiency, *a.Proficiency),
		)
	})

	return &c, nil
}

func isHTTPURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
