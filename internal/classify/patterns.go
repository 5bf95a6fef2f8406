package classify

import (
	_ "embed"
	"regexp"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/evdata-cli/internal/model"
)

//go:embed patterns.yaml
var defaultPatterns []byte

// OCRRule decides how a group sets Classification.NeedsOCR.
type OCRRule string

const (
	// OCRNumeric requests OCR only when the title has no headline number.
	OCRNumeric OCRRule = "numeric"
	// OCRAlways requests OCR unconditionally (multi-row tables, spec sheets).
	OCRAlways OCRRule = "always"
	// OCRNever never requests OCR.
	OCRNever OCRRule = "never"
)

// Post-filters that refine a matched group.
const (
	postScope  = "scope"
	postMaker  = "maker"
	postRegion = "region"
)

// Group is one category in the ordered pattern table.
type Group struct {
	Name        string
	ArticleType model.ArticleType
	Table       model.Table
	OCR         OCRRule
	PromptKind  model.PromptKind
	Confidence  float64
	Post        string

	patterns []*regexp.Regexp
}

// Match reports whether any of the group's patterns matches the normalized title.
func (g *Group) Match(title string) bool {
	for _, re := range g.patterns {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// PatternTable is an immutable, ordered list of compiled pattern groups.
type PatternTable struct {
	groups []Group
}

type rawTable struct {
	Groups []rawGroup `yaml:"groups"`
}

type rawGroup struct {
	Name        string   `yaml:"name"`
	ArticleType string   `yaml:"article_type"`
	Table       string   `yaml:"table"`
	OCR         string   `yaml:"ocr"`
	PromptKind  string   `yaml:"prompt_kind"`
	Confidence  float64  `yaml:"confidence"`
	Post        string   `yaml:"post"`
	Patterns    []string `yaml:"patterns"`
}

// DefaultPatterns compiles the embedded pattern table.
func DefaultPatterns() (*PatternTable, error) {
	return LoadPatterns(defaultPatterns)
}

// LoadPatterns parses and compiles a YAML pattern table.
func LoadPatterns(data []byte) (*PatternTable, error) {
	var raw rawTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "classify: parse patterns")
	}
	if len(raw.Groups) == 0 {
		return nil, eris.New("classify: pattern table has no groups")
	}

	pt := &PatternTable{groups: make([]Group, 0, len(raw.Groups))}
	names := make(map[string]bool, len(raw.Groups))
	for _, rg := range raw.Groups {
		g, err := compileGroup(rg)
		if err != nil {
			return nil, err
		}
		if names[g.Name] {
			return nil, eris.Errorf("classify: duplicate group %q", g.Name)
		}
		names[g.Name] = true
		pt.groups = append(pt.groups, g)
	}
	return pt, nil
}

func compileGroup(rg rawGroup) (Group, error) {
	if rg.Name == "" {
		return Group{}, eris.New("classify: group without name")
	}
	table, err := model.ParseTable(rg.Table)
	if err != nil {
		return Group{}, eris.Wrapf(err, "classify: group %s", rg.Name)
	}

	g := Group{
		Name:        rg.Name,
		ArticleType: model.ArticleType(rg.ArticleType),
		Table:       table,
		OCR:         OCRRule(rg.OCR),
		PromptKind:  model.PromptKind(rg.PromptKind),
		Confidence:  rg.Confidence,
		Post:        rg.Post,
	}

	switch g.OCR {
	case OCRNumeric, OCRAlways, OCRNever:
	case "":
		g.OCR = OCRNumeric
	default:
		return Group{}, eris.Errorf("classify: group %s: unknown ocr rule %q", rg.Name, rg.OCR)
	}
	switch g.PromptKind {
	case model.PromptRankings, model.PromptTrend, model.PromptSpecs,
		model.PromptChart, model.PromptMetrics, model.PromptGeneral, model.PromptNone:
	default:
		return Group{}, eris.Errorf("classify: group %s: unknown prompt kind %q", rg.Name, rg.PromptKind)
	}
	switch g.Post {
	case "", postScope, postMaker, postRegion:
	default:
		return Group{}, eris.Errorf("classify: group %s: unknown post filter %q", rg.Name, rg.Post)
	}
	if g.Confidence <= 0 || g.Confidence > 1 {
		return Group{}, eris.Errorf("classify: group %s: confidence %v out of range", rg.Name, rg.Confidence)
	}
	if len(rg.Patterns) == 0 {
		return Group{}, eris.Errorf("classify: group %s has no patterns", rg.Name)
	}

	for _, p := range rg.Patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return Group{}, eris.Wrapf(err, "classify: group %s: compile %q", rg.Name, p)
		}
		g.patterns = append(g.patterns, re)
	}
	return g, nil
}

// Groups returns the group names in evaluation order.
func (pt *PatternTable) Groups() []string {
	out := make([]string, len(pt.groups))
	for i := range pt.groups {
		out[i] = pt.groups[i].Name
	}
	return out
}
