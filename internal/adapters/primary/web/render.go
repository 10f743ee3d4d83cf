package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/ports"
)

// ViewData est le contexte passé aux templates. Chaque page n'utilise qu'une partie des champs.
type ViewData struct {
	Viewer   *domain.User
	Title    string
	LoginURL string

	// Champ caché et valeur du token anti-CSRF des formulaires POST
	CSRFField template.HTML
	CSRFToken string

	Page *ports.PostPage

	// group_list.html
	Group *domain.Group

	// profile.html
	Author    *domain.User
	Following bool

	// post_detail.html
	Post        *domain.Post
	Comments    []*domain.Comment
	CommentForm domain.CommentForm

	// create_post.html
	Form *PostFormView

	// Onglet actif de la navigation
	Index  bool
	Follow bool
}

// PostFormView garde la saisie de l'utilisateur pour le ré-affichage après erreur.
type PostFormView struct {
	Text    string
	GroupID int64
	Image   string
	Groups  []*domain.Group
	Errors  domain.FormErrors
	IsEdit  bool
	PostID  int64
}

// Renderer produit le HTML d'une page. Les tests peuvent le remplacer pour
// inspecter le contexte plutôt que le balisage.
type Renderer interface {
	Render(w io.Writer, name string, data *ViewData) error
}

//go:embed templates
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("2 January 2006")
	},
	"media": func(path string) string {
		return "/media/" + path
	},
	"linebreaks": func(s string) template.HTML {
		return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
	},
	"selected": func(a, b int64) bool {
		return a == b
	},
}

// TemplateRenderer rend les templates embarqués (base.html + includes + page).
type TemplateRenderer struct {
	pages map[string]*template.Template
}

func NewTemplateRenderer() (*TemplateRenderer, error) {
	names, err := fs.Glob(templateFS, "templates/*/*.html")
	if err != nil {
		return nil, err
	}

	r := &TemplateRenderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		if strings.HasPrefix(name, "templates/includes/") {
			continue
		}
		t, err := template.New("base.html").Funcs(templateFuncs).ParseFS(templateFS,
			"templates/base.html",
			"templates/includes/*.html",
			name,
		)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[strings.TrimPrefix(name, "templates/")] = t
	}
	return r, nil
}

func (r *TemplateRenderer) Render(w io.Writer, name string, data *ViewData) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	return t.ExecuteTemplate(w, "base.html", data)
}
