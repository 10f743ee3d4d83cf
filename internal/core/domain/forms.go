package domain

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sort"
	"strings"
)

const MaxImageSize = 5 << 20 // 5 MiB

const (
	MsgRequired      = "This field is required."
	MsgInvalidChoice = "Select a valid choice. That choice is not one of the available choices."
	MsgInvalidImage  = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	MsgImageTooLarge = "The uploaded image is too large."
)

// FormErrors associe un champ à ses messages d'erreur.
// Le type implémente error pour remonter proprement depuis les services.
type FormErrors map[string][]string

func (e FormErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e FormErrors) Has(field string) bool {
	return len(e[field]) > 0
}

func (e FormErrors) Empty() bool {
	return len(e) == 0
}

func (e FormErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e[f], " "))
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// Upload est un fichier reçu en multipart, déjà lu en mémoire.
type Upload struct {
	Filename string
	Data     []byte

	// Format est rempli par Validate ("png", "jpeg", "gif").
	Format string
}

// PostForm correspond aux champs éditables d'un post : text, group, image.
type PostForm struct {
	Text       string
	GroupID    *int64
	Image      *Upload
	ClearImage bool
}

// Validate vérifie les champs qui ne demandent pas d'accès au stockage.
// L'existence du groupe est vérifiée par le service.
func (f *PostForm) Validate() FormErrors {
	errs := FormErrors{}
	if strings.TrimSpace(f.Text) == "" {
		errs.Add("text", MsgRequired)
	}
	if f.Image != nil {
		if err := f.Image.validate(); err != "" {
			errs.Add("image", err)
		}
	}
	return errs
}

func (u *Upload) validate() string {
	if len(u.Data) > MaxImageSize {
		return MsgImageTooLarge
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(u.Data))
	if err != nil {
		return MsgInvalidImage
	}
	u.Format = format
	return ""
}

type CommentForm struct {
	Text string
}

func (f *CommentForm) Validate() FormErrors {
	errs := FormErrors{}
	if strings.TrimSpace(f.Text) == "" {
		errs.Add("text", MsgRequired)
	}
	return errs
}
