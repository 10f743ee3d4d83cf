package web

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"

	"github.com/arhipvp/hw05-final/internal/core/domain"
)

// --- LECTURE ---

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	page, err := s.posts.Index(r.Context(), r.URL.Query().Get("page"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "posts/index.html", &ViewData{
		Title: "Latest updates",
		Page:  page,
		Index: true,
	})
}

func (s *Server) groupPosts(w http.ResponseWriter, r *http.Request) {
	view, err := s.posts.GroupPosts(r.Context(), mux.Vars(r)["slug"], r.URL.Query().Get("page"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "posts/group_list.html", &ViewData{
		Title: view.Group.Title,
		Group: view.Group,
		Page:  view.Page,
	})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	viewer := ForContext(r.Context())
	view, err := s.posts.Profile(r.Context(), viewer, mux.Vars(r)["username"], r.URL.Query().Get("page"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "posts/profile.html", &ViewData{
		Title:     "Profile of " + view.Author.Username,
		Author:    view.Author,
		Page:      view.Page,
		Following: view.Following,
	})
}

func (s *Server) ownProfile(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, profileURL(ForContext(r.Context()).Username), http.StatusFound)
}

func (s *Server) postDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		s.notFound(w, r)
		return
	}

	view, err := s.posts.Detail(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "posts/post_detail.html", &ViewData{
		Title:       "Post " + view.Post.Excerpt(),
		Post:        view.Post,
		Comments:    view.Comments,
		CommentForm: view.Form,
	})
}

func (s *Server) followIndex(w http.ResponseWriter, r *http.Request) {
	page, err := s.follows.Feed(r.Context(), ForContext(r.Context()), r.URL.Query().Get("page"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "posts/follow.html", &ViewData{
		Title:  "Subscriptions",
		Page:   page,
		Follow: true,
	})
}

// --- ÉCRITURE ---

func (s *Server) postCreate(w http.ResponseWriter, r *http.Request) {
	viewer := ForContext(r.Context())

	if r.Method != http.MethodPost {
		s.renderPostForm(w, r, &PostFormView{})
		return
	}

	form, err := parsePostForm(w, r)
	if err != nil {
		s.badForm(w, r, err)
		return
	}

	_, err = s.posts.Create(r.Context(), viewer, form)
	var formErrs domain.FormErrors
	if errors.As(err, &formErrs) {
		view := formView(form)
		view.Errors = formErrs
		s.renderPostForm(w, r, view)
		return
	}
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	http.Redirect(w, r, profileURL(viewer.Username), http.StatusFound)
}

func (s *Server) postEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		s.notFound(w, r)
		return
	}
	viewer := ForContext(r.Context())

	// Un non-auteur est renvoyé sur le détail, sans lire ni appliquer le formulaire
	post, err := s.posts.GetForEdit(r.Context(), viewer, id)
	if errors.Is(err, domain.ErrForbidden) {
		http.Redirect(w, r, detailURL(id), http.StatusFound)
		return
	}
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if r.Method != http.MethodPost {
		view := &PostFormView{Text: post.Text, Image: post.Image, IsEdit: true, PostID: id}
		if post.GroupID != nil {
			view.GroupID = *post.GroupID
		}
		s.renderPostForm(w, r, view)
		return
	}

	form, err := parsePostForm(w, r)
	if err != nil {
		s.badForm(w, r, err)
		return
	}

	_, err = s.posts.Edit(r.Context(), viewer, id, form)
	var formErrs domain.FormErrors
	switch {
	case errors.As(err, &formErrs):
		view := formView(form)
		view.Errors = formErrs
		view.Image = post.Image
		view.IsEdit = true
		view.PostID = id
		s.renderPostForm(w, r, view)
	case errors.Is(err, domain.ErrForbidden):
		http.Redirect(w, r, detailURL(id), http.StatusFound)
	case err != nil:
		s.handleError(w, r, err)
	default:
		http.Redirect(w, r, detailURL(id), http.StatusFound)
	}
}

// addComment redirige toujours vers le détail ; un commentaire vide est ignoré.
// En GET le formulaire est vide : le post est résolu (404) puis rien n'est écrit.
func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		s.notFound(w, r)
		return
	}

	var form domain.CommentForm
	if r.Method == http.MethodPost {
		form.Text = r.PostFormValue("text")
	}
	_, err := s.comments.AddComment(r.Context(), ForContext(r.Context()), id, form)

	var formErrs domain.FormErrors
	if errors.As(err, &formErrs) {
		slog.Debug("Dropping invalid comment", "post_id", id, "errors", formErrs.Error())
	} else if err != nil {
		s.handleError(w, r, err)
		return
	}

	http.Redirect(w, r, detailURL(id), http.StatusFound)
}

func (s *Server) profileFollow(w http.ResponseWriter, r *http.Request) {
	if s.unsafeGet(w, r) {
		return
	}
	err := s.follows.Follow(r.Context(), ForContext(r.Context()), mux.Vars(r)["username"])
	switch {
	case domain.IsFollowNoop(err):
		http.Redirect(w, r, "/", http.StatusFound)
	case err != nil:
		s.handleError(w, r, err)
	default:
		http.Redirect(w, r, "/follow/", http.StatusFound)
	}
}

func (s *Server) profileUnfollow(w http.ResponseWriter, r *http.Request) {
	if s.unsafeGet(w, r) {
		return
	}
	if err := s.follows.Unfollow(r.Context(), ForContext(r.Context()), mux.Vars(r)["username"]); err != nil {
		s.handleError(w, r, err)
		return
	}
	http.Redirect(w, r, "/follow/", http.StatusFound)
}

// --- HELPERS ---

// unsafeGet : un lien GET ne modifie rien quand seul le cookie authentifie la requête
// (une balise <img> tierce suffirait). Le navigateur repasse par le formulaire POST du profil.
func (s *Server) unsafeGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet || !ambientCredentials(r) {
		return false
	}
	http.Redirect(w, r, profileURL(mux.Vars(r)["username"]), http.StatusFound)
	return true
}

func (s *Server) renderPostForm(w http.ResponseWriter, r *http.Request, view *PostFormView) {
	groups, err := s.posts.Groups(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	view.Groups = groups

	title := "New post"
	if view.IsEdit {
		title = "Edit post"
	}
	s.render(w, r, http.StatusOK, "posts/create_post.html", &ViewData{Title: title, Form: view})
}

func (s *Server) badForm(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		return
	}
	slog.Debug("Malformed form", "path", r.URL.Path, "error", err)
	http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
}

// render écrit la page d'un bloc : une erreur de template ne laisse pas de réponse tronquée.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data *ViewData) {
	data.Viewer = ForContext(r.Context())
	data.LoginURL = s.opts.LoginURL
	data.CSRFField = csrf.TemplateField(r)
	data.CSRFToken = csrf.Token(r)

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, name, data); err != nil {
		slog.Error("Template rendering failed", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// postID : la route garantit des chiffres, mais pas que la valeur tienne dans un int64.
func postID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func profileURL(username string) string {
	return "/profile/" + url.PathEscape(username) + "/"
}

func detailURL(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10) + "/"
}
