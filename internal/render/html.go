package render

import (
	"embed"
	"html/template"
	"io"

	"github.com/jusunglee/hankyu-go/internal/models"
	"github.com/jusunglee/hankyu-go/internal/query"
)

//go:embed templates/page.html
var templateFS embed.FS

// Page is everything the widget template needs
type Page struct {
	Locked      bool
	AuthMessage string

	Station     models.Station
	Time        string
	AutoRefresh bool

	Queried bool
	Cards   []Card
	Message string

	Variant models.Variant
	Updated string
}

// WithResult fills the result part of the page
func (p *Page) WithResult(res *query.Result) {
	p.Queried = true
	p.Cards = Cards(res.Departures)
	if res.Ended() {
		p.Message = MsgServiceEnded
	}
}

// WithError shows err inline in place of results
func (p *Page) WithError(err error) {
	p.Queried = true
	p.Cards = nil
	p.Message = MessageFor(err)
}

// Renderer executes the embedded page template
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("page.html").Funcs(template.FuncMap{
		"stationName": StationName,
	}).ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Page(w io.Writer, p Page) error {
	return r.tmpl.Execute(w, p)
}
