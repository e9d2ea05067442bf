// Package layout picks the presentation of a proposal from its product group.
package layout

import (
	"sort"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/shopspring/decimal"
)

// Layout is the view model a client portal page renders
type Layout struct {
	Group    domain.ProductGroup `json:"group"`
	Title    string              `json:"title"`
	Sections []Section           `json:"sections"`
	Notes    []string            `json:"notes,omitempty"`
	Total    float64             `json:"total"`
}

// Section groups the lines under one heading
type Section struct {
	Title    string  `json:"title"`
	Lines    []Line  `json:"lines"`
	Subtotal float64 `json:"subtotal"`
}

// Line is a single rendered item
type Line struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Total       float64 `json:"total"`
}

// Renderer builds the layout of a proposal
type Renderer interface {
	Group() domain.ProductGroup
	Render(p *domain.Proposal) Layout
}

// sectionRenderer groups items by their solution label, falling back to a default heading
type sectionRenderer struct {
	group          domain.ProductGroup
	title          string
	defaultSection string
	notes          []string
	// sectionOrder lists headings that are always shown first, in this order
	sectionOrder []string
}

func (r sectionRenderer) Group() domain.ProductGroup {
	return r.group
}

func (r sectionRenderer) Render(p *domain.Proposal) Layout {
	items := make([]domain.ProposalItem, len(p.Items))
	copy(items, p.Items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })

	index := map[string]int{}
	var sections []Section
	sums := []decimal.Decimal{}
	for _, item := range items {
		heading := item.Solution
		if heading == "" {
			heading = r.defaultSection
		}
		i, ok := index[heading]
		if !ok {
			i = len(sections)
			index[heading] = i
			sections = append(sections, Section{Title: heading})
			sums = append(sums, decimal.Zero)
		}
		sections[i].Lines = append(sections[i].Lines, Line{
			Description: item.Description,
			Quantity:    item.Quantity.InexactFloat64(),
			UnitPrice:   item.UnitPrice.InexactFloat64(),
			Total:       item.Total.InexactFloat64(),
		})
		sums[i] = sums[i].Add(item.Total)
	}
	for i := range sections {
		sections[i].Subtotal = sums[i].InexactFloat64()
	}

	if len(r.sectionOrder) > 0 {
		rank := func(title string) int {
			for n, t := range r.sectionOrder {
				if t == title {
					return n
				}
			}
			return len(r.sectionOrder)
		}
		sort.SliceStable(sections, func(i, j int) bool { return rank(sections[i].Title) < rank(sections[j].Title) })
	}

	if sections == nil {
		sections = []Section{}
	}

	return Layout{
		Group:    r.group,
		Title:    r.title,
		Sections: sections,
		Notes:    r.notes,
		Total:    p.TotalValue.InexactFloat64(),
	}
}

var (
	genericRenderer = sectionRenderer{
		group:          domain.ProductGroupGeneric,
		title:          "Proposta Comercial",
		defaultSection: "Itens",
	}
	roofingRenderer = sectionRenderer{
		group:          domain.ProductGroupRoofing,
		title:          "Proposta de Cobertura",
		defaultSection: "Telhas",
		sectionOrder:   []string{"Telhas", "Cumeeiras", "Acessórios"},
		notes:          []string{"Quantidades calculadas por m² de telhado, com 5% de perda."},
	}
	structuralRenderer = sectionRenderer{
		group:          domain.ProductGroupStructural,
		title:          "Proposta de Materiais Estruturais",
		defaultSection: "Estrutura",
		sectionOrder:   []string{"Fundação", "Estrutura", "Alvenaria"},
		notes:          []string{"Aço e cimento sujeitos à disponibilidade de estoque na data do pedido."},
	}
	finishingRenderer = sectionRenderer{
		group:          domain.ProductGroupFinishing,
		title:          "Proposta de Acabamento",
		defaultSection: "Revestimentos",
		notes:          []string{"Tonalidades podem variar entre lotes de fabricação."},
	}
	plumbingRenderer = sectionRenderer{
		group:          domain.ProductGroupPlumbing,
		title:          "Proposta Hidráulica",
		defaultSection: "Tubos e Conexões",
		sectionOrder:   []string{"Água Fria", "Água Quente", "Esgoto"},
	}
)

// For returns the renderer of a product group. Missing or unknown groups get the generic renderer.
func For(group *domain.ProductGroup) Renderer {
	if group == nil {
		return genericRenderer
	}
	switch *group {
	case domain.ProductGroupGeneric:
		return genericRenderer
	case domain.ProductGroupRoofing:
		return roofingRenderer
	case domain.ProductGroupStructural:
		return structuralRenderer
	case domain.ProductGroupFinishing:
		return finishingRenderer
	case domain.ProductGroupPlumbing:
		return plumbingRenderer
	}
	return genericRenderer
}

// Render is shorthand for For(p.ProductGroup).Render(p)
func Render(p *domain.Proposal) Layout {
	return For(p.ProductGroup).Render(p)
}
