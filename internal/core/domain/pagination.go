package domain

import (
	"errors"
	"strconv"
	"strings"
)

const DefaultPageSize = 10

// PageRequest est la fenêtre LIMIT/OFFSET résolue à partir du total et du
// numéro demandé. Elle ne renvoie jamais d'erreur : un numéro invalide
// retombe sur la page 1, un numéro hors limites sur la dernière page.
type PageRequest struct {
	Number   int
	Size     int
	Total    int
	NumPages int
}

// NewPageRequest résout le paramètre brut "page" (query string) contre le total d'items.
func NewPageRequest(total int, raw string, size int) PageRequest {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}

	// Une liste vide a quand même une page (vide)
	numPages := 1
	if total > 0 {
		numPages = (total + size - 1) / size
	}

	number, err := strconv.Atoi(strings.TrimSpace(raw))
	switch {
	case errors.Is(err, strconv.ErrRange):
		// Un entier trop grand reste un entier : hors limites, pas invalide
		number = numPages
	case err != nil:
		number = 1
	case number < 1 || number > numPages:
		number = numPages
	}

	return PageRequest{
		Number:   number,
		Size:     size,
		Total:    total,
		NumPages: numPages,
	}
}

func (r PageRequest) Offset() int {
	return (r.Number - 1) * r.Size
}

func (r PageRequest) Limit() int {
	return r.Size
}

// Page est le résultat paginé consommé par les templates.
type Page[T any] struct {
	Items    []T
	Number   int
	NumPages int
	Total    int
}

func NewPage[T any](items []T, req PageRequest) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:    items,
		Number:   req.Number,
		NumPages: req.NumPages,
		Total:    req.Total,
	}
}

func (p *Page[T]) Len() int { return len(p.Items) }
func (p *Page[T]) HasPrevious() bool { return p.Number > 1 }
func (p *Page[T]) HasNext() bool { return p.Number < p.NumPages }
func (p *Page[T]) HasOtherPages() bool { return p.HasPrevious() || p.HasNext() }
func (p *Page[T]) PreviousNumber() int { return p.Number - 1 }
func (p *Page[T]) NextNumber() int { return p.Number + 1 }
