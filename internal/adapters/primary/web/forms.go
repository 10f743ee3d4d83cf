package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/arhipvp/hw05-final/internal/core/domain"
)

// Marge pour les champs texte autour de l'image
const maxFormSize = domain.MaxImageSize + 1<<20

// parsePostForm lit un formulaire de post (multipart ou urlencoded).
func parsePostForm(w http.ResponseWriter, r *http.Request) (domain.PostForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(maxFormSize)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return domain.PostForm{}, err
	}

	form := domain.PostForm{
		Text:       r.PostFormValue("text"),
		ClearImage: r.PostFormValue("image-clear") != "",
	}

	if raw := strings.TrimSpace(r.PostFormValue("group")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// 0 n'existe jamais : le service le signale comme choix invalide
			id = 0
		}
		form.GroupID = &id
	}

	upload, err := readUpload(r, "image")
	if err != nil {
		return domain.PostForm{}, err
	}
	form.Image = upload
	return form, nil
}

func readUpload(r *http.Request, field string) (*domain.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	// Un octet de plus que la limite suffit à détecter un fichier trop gros
	data, err := io.ReadAll(io.LimitReader(file, domain.MaxImageSize+1))
	if err != nil {
		return nil, err
	}
	return &domain.Upload{Filename: header.Filename, Data: data}, nil
}

func formView(form domain.PostForm) *PostFormView {
	v := &PostFormView{Text: form.Text}
	if form.GroupID != nil {
		v.GroupID = *form.GroupID
	}
	return v
}
