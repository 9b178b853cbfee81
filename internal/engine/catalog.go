package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/SmartXchain/piedmont-sub000/internal/domain"
	"github.com/SmartXchain/piedmont-sub000/internal/events"
)

// Catalog is the YAML document holding methods, routings and resources.
type Catalog struct {
	Methods   []CatalogMethod   `yaml:"methods" validate:"dive"`
	Routings  []CatalogRouting  `yaml:"routings" validate:"dive"`
	Resources []CatalogResource `yaml:"resources" validate:"dive"`
}

type CatalogMethod struct {
	ID    string `yaml:"id" validate:"required"`
	Title string `yaml:"title" validate:"required"`
	Tank  string `yaml:"tank"`
	Touch Bounds `yaml:"touch"`
	Run   Bounds `yaml:"run"`
}

// Bounds is a min/max pair of minutes; either side may be omitted.
type Bounds struct {
	Min Minutes `yaml:"min"`
	Max Minutes `yaml:"max"`
}

// Minutes decodes a YAML number into a nullable decimal.
type Minutes struct {
	decimal.NullDecimal
}

func (m *Minutes) UnmarshalYAML(n *yaml.Node) error {
	if n.Tag == "!!null" || strings.TrimSpace(n.Value) == "" {
		m.NullDecimal = decimal.NullDecimal{}
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(n.Value))
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number of minutes", n.Line, n.Value)
	}
	m.NullDecimal = decimal.NewNullDecimal(d)
	return nil
}

type CatalogRouting struct {
	ID          string        `yaml:"id" validate:"required"`
	Name        string        `yaml:"name" validate:"required"`
	Description string        `yaml:"description"`
	Steps       []CatalogStep `yaml:"steps" validate:"dive"`
}

type CatalogStep struct {
	Step   int    `yaml:"step" validate:"gt=0"`
	Title  string `yaml:"title"`
	Method string `yaml:"method"`
}

type CatalogResource struct {
	ID         string `yaml:"id" validate:"required"`
	Name       string `yaml:"name" validate:"required"`
	Type       string `yaml:"type" validate:"required,oneof=tank oven line operator cell"`
	Department string `yaml:"department"`
	Active     *bool  `yaml:"active"`
}

type CatalogSummary struct {
	Methods   int `json:"methods"`
	Routings  int `json:"routings"`
	Resources int `json:"resources"`
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, invalid("catalog", err.Error())
	}
	if err := checkStruct(c); err != nil {
		return c, err
	}
	for _, rt := range c.Routings {
		seen := map[int]bool{}
		for _, st := range rt.Steps {
			if seen[st.Step] {
				return c, invalid("steps", fmt.Sprintf("routing %s repeats step %d", rt.ID, st.Step))
			}
			seen[st.Step] = true
		}
	}
	return c, nil
}

// ImportCatalog upserts every entry of the document in one transaction.
// Routing steps must name a method from the document or already stored.
func (e Engine) ImportCatalog(ctx context.Context, data []byte, actorID string) (CatalogSummary, error) {
	c, err := ParseCatalog(data)
	if err != nil {
		return CatalogSummary{}, err
	}
	known := map[string]bool{}
	stored, err := e.Repo.ListMethods(ctx)
	if err != nil {
		return CatalogSummary{}, err
	}
	for _, m := range stored {
		known[m.ID] = true
	}
	for _, m := range c.Methods {
		known[m.ID] = true
	}
	for _, rt := range c.Routings {
		for _, st := range rt.Steps {
			if st.Method != "" && !known[st.Method] {
				return CatalogSummary{}, invalid("method", fmt.Sprintf("routing %s step %d references unknown method %s", rt.ID, st.Step, st.Method))
			}
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return CatalogSummary{}, err
	}
	defer tx.Rollback()
	for _, m := range c.Methods {
		if err := e.Repo.UpsertMethod(ctx, tx, domain.Method{
			ID:       m.ID,
			Title:    m.Title,
			Tank:     m.Tank,
			TouchMin: m.Touch.Min.NullDecimal,
			TouchMax: m.Touch.Max.NullDecimal,
			RunMin:   m.Run.Min.NullDecimal,
			RunMax:   m.Run.Max.NullDecimal,
		}); err != nil {
			return CatalogSummary{}, fmt.Errorf("method %s: %w", m.ID, err)
		}
	}
	for _, rt := range c.Routings {
		r := domain.Routing{ID: rt.ID, Name: rt.Name, Description: rt.Description}
		for _, st := range rt.Steps {
			r.Steps = append(r.Steps, domain.RoutingStep{
				RoutingID:  rt.ID,
				StepNumber: st.Step,
				Title:      st.Title,
				MethodID:   optionalString(st.Method),
			})
		}
		if err := e.Repo.UpsertRouting(ctx, tx, r); err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY") {
				return CatalogSummary{}, conflict("routing %s drops steps still used by scheduled operations", rt.ID)
			}
			return CatalogSummary{}, fmt.Errorf("routing %s: %w", rt.ID, err)
		}
	}
	for _, res := range c.Resources {
		active := true
		if res.Active != nil {
			active = *res.Active
		}
		if err := e.Repo.UpsertResource(ctx, tx, domain.Resource{
			ID:         res.ID,
			Name:       res.Name,
			Type:       domain.ResourceType(res.Type),
			Department: res.Department,
			Active:     active,
		}); err != nil {
			return CatalogSummary{}, fmt.Errorf("resource %s: %w", res.ID, err)
		}
	}
	sum := CatalogSummary{Methods: len(c.Methods), Routings: len(c.Routings), Resources: len(c.Resources)}
	if err := e.Events.Append(ctx, tx, events.CatalogImported, "catalog", "", actorID, events.EventPayload{
		"methods":   sum.Methods,
		"routings":  sum.Routings,
		"resources": sum.Resources,
	}); err != nil {
		return sum, err
	}
	if err := tx.Commit(); err != nil {
		return sum, err
	}
	e.log().Info("catalog imported", "methods", sum.Methods, "routings", sum.Routings, "resources", sum.Resources)
	return sum, nil
}
