package httpapi

import (
	"html/template"
	"net/http"

	"ccaccess.org/internal/registration"
)

// The decision links open in the administrator's browser, so outcomes
// are rendered as small standalone HTML pages, not JSON.
var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 36em; margin: 4em auto; padding: 0 1em; color: #222; }
h1 { font-size: 1.4em; }
p { line-height: 1.5; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Body}}</p>
</body>
</html>
`))

type page struct {
	Title string
	Body  string
}

func renderPage(w http.ResponseWriter, code int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = pageTmpl.Execute(w, p)
}

func renderOutcome(w http.ResponseWriter, res registration.Result) {
	name := res.Registration.DisplayName()
	switch res.Outcome {
	case registration.OutcomeApproved:
		renderPage(w, http.StatusOK, page{
			Title: "Registration approved",
			Body:  "The account for " + name + " has been created and a welcome email was sent.",
		})
	case registration.OutcomeAlreadyExists:
		renderPage(w, http.StatusOK, page{
			Title: "Already registered",
			Body:  "An account for " + res.Registration.Email + " already exists. Nothing was changed.",
		})
	case registration.OutcomeDenied:
		renderPage(w, http.StatusOK, page{
			Title: "Registration denied",
			Body:  "The request from " + name + " was declined and the requester was notified.",
		})
	case registration.OutcomeAlreadyResolved:
		renderPage(w, http.StatusOK, page{
			Title: "Already decided",
			Body:  "This request has already been decided. Nothing was changed.",
		})
	default:
		renderPage(w, http.StatusOK, page{Title: "Done", Body: "The decision was recorded."})
	}
}

func renderFailure(w http.ResponseWriter, code int, title, body string) {
	renderPage(w, code, page{Title: title, Body: body})
}
