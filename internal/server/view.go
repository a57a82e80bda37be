package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"sort"

	"github.com/guidepostlabs/guidepost/internal/advice"
	"github.com/guidepostlabs/guidepost/internal/conversation"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// view renders the single page. Parsed once at construction; reused on
// every request.
type view struct {
	page *template.Template
}

func newView() *view {
	return &view{
		page: template.Must(template.ParseFS(templateFS, "templates/*.tmpl")),
	}
}

func (v *view) render(w http.ResponseWriter, data pageData) error {
	// Render to a buffer first so a template fault can still become a
	// clean error response.
	var buf bytes.Buffer
	if err := v.page.ExecuteTemplate(&buf, "index.html.tmpl", data); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// pageData is everything one render of the page needs. Exactly one panel
// is shown, keyed on Step.
type pageData struct {
	Step            conversation.Step
	Notice          conversation.Notice
	Conversation    string
	ClarifyQuestion string
	ClarifyResponse string
	Results         resultsData
}

// resultsData carries the three result sections. A section is rendered
// only when the reply contained its field; a non-conforming field falls
// back to its raw JSON text.
type resultsData struct {
	Interests    listSection
	Mapping      pairSection
	Explanations pairSection
}

type listSection struct {
	Present  bool
	Conforms bool
	Items    []string
	Raw      string
}

type pairSection struct {
	Present  bool
	Conforms bool
	Pairs    []pair
	Raw      string
}

type pair struct {
	Key   string
	Value string
}

func buildPage(sess *conversation.Session, notice conversation.Notice) pageData {
	data := pageData{
		Step:            sess.Step,
		Notice:          notice,
		Conversation:    sess.Conversation,
		ClarifyQuestion: sess.ClarifyQuestion,
		ClarifyResponse: sess.ClarifyResponse,
	}
	if sess.Results != nil {
		data.Results = buildResults(*sess.Results)
	}
	return data
}

func buildResults(res advice.Result) resultsData {
	var data resultsData

	if len(res.Interests) > 0 {
		data.Interests.Present = true
		if items, ok := res.InterestList(); ok {
			data.Interests.Conforms = true
			data.Interests.Items = items
		} else {
			data.Interests.Raw = string(res.Interests)
		}
	}

	data.Mapping = buildPairSection(res.Mapping, res.MappingPairs)
	data.Explanations = buildPairSection(res.Explanations, res.ExplanationPairs)
	return data
}

func buildPairSection(raw json.RawMessage, decode func() (map[string]string, bool)) pairSection {
	var sec pairSection
	if len(raw) == 0 {
		return sec
	}
	sec.Present = true
	if pairs, ok := decode(); ok {
		sec.Conforms = true
		sec.Pairs = sortedPairs(pairs)
	} else {
		sec.Raw = string(raw)
	}
	return sec
}

// sortedPairs orders map entries by key so renders are deterministic.
func sortedPairs(m map[string]string) []pair {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]pair, len(keys))
	for i, k := range keys {
		pairs[i] = pair{Key: k, Value: m[k]}
	}
	return pairs
}
