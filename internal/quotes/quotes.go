// Package quotes provides the header quote shown next to the incident.
package quotes

import "math/rand"

// Quote is a short attributed saying.
type Quote struct {
	Excerpt string `json:"excerpt"`
	Author  string `json:"author"`
}

var builtin = []Quote{
	{Excerpt: "Hope is not a strategy.", Author: "Traditional SRE saying"},
	{Excerpt: "Everything fails, all the time.", Author: "Werner Vogels"},
	{Excerpt: "In preparing for battle I have always found that plans are useless, but planning is indispensable.", Author: "Dwight D. Eisenhower"},
	{Excerpt: "Keep calm and carry on.", Author: "British Ministry of Information"},
	{Excerpt: "The first rule of any technology used in a business is that automation applied to an efficient operation will magnify the efficiency.", Author: "Bill Gates"},
	{Excerpt: "It is not the strongest of the species that survives, but the most adaptable.", Author: "Leon C. Megginson"},
	{Excerpt: "Slow is smooth, and smooth is fast.", Author: "Military proverb"},
}

// Provider returns quotes at random.
type Provider struct {
	quotes []Quote
	intn   func(n int) int
}

// NewProvider creates a provider over the given quotes, or the built-in
// list when none are supplied.
func NewProvider(quotes ...Quote) *Provider {
	if len(quotes) == 0 {
		quotes = builtin
	}
	return &Provider{
		quotes: append([]Quote(nil), quotes...),
		intn:   rand.Intn,
	}
}

// Random returns one quote.
func (p *Provider) Random() Quote {
	return p.quotes[p.intn(len(p.quotes))]
}
