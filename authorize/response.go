package authorize

import (
	// Standard Library Imports
	"html/template"
	"net/http"
	"net/url"

	// External Imports
	"github.com/ory/fosite"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// formPostPage renders the auto-submitting form_post response. Parameters
// travel in the POST body, never in a URL.
var formPostPage = template.Must(template.New("form_post").Parse(`<!DOCTYPE html>
<html>
<head><title>Submit This Form</title></head>
<body onload="javascript:document.forms[0].submit()">
<form method="post" action="{{.RedirectURI}}">
{{- range $name, $values := .Params}}
{{- range $values}}
<input type="hidden" name="{{$name}}" value="{{.}}"/>
{{- end}}
{{- end}}
</form>
</body>
</html>
`))

// Response is the outcome of an authorization attempt, ready to be written
// to the user agent.
type Response struct {
	// Stage records how far the attempt got.
	Stage Stage

	// RedirectURI is the validated destination. Empty for direct errors.
	RedirectURI string
	// Mode is the response mode the parameters are delivered in.
	Mode string
	// Params carries the success or error parameters.
	Params url.Values

	// DirectError is set when no trustworthy redirect URI exists and the
	// error must be rendered directly to the user agent.
	DirectError *fosite.RFC6749Error
}

// Write delivers the response: a direct error page, a redirect carrying
// query or fragment parameters, or an auto-submitting form post.
func (response *Response) Write(w http.ResponseWriter, r *http.Request) error {
	if response.DirectError != nil {
		http.Error(w, response.DirectError.DescriptionField, response.DirectError.CodeField)
		return nil
	}

	switch response.Mode {
	case oidc.ResponseModeFormPost:
		w.Header().Set("Content-Type", "text/html;charset=UTF-8")
		return formPostPage.Execute(w, map[string]interface{}{
			"RedirectURI": response.RedirectURI,
			"Params":      response.Params,
		})

	case oidc.ResponseModeFragment:
		redirect, err := url.Parse(response.RedirectURI)
		if err != nil {
			return err
		}
		redirect.Fragment = ""
		location := redirect.String() + "#" + response.Params.Encode()
		http.Redirect(w, r, location, http.StatusSeeOther)
		return nil

	default:
		redirect, err := url.Parse(response.RedirectURI)
		if err != nil {
			return err
		}
		query := redirect.Query()
		for name, values := range response.Params {
			for _, value := range values {
				query.Set(name, value)
			}
		}
		redirect.RawQuery = query.Encode()
		http.Redirect(w, r, redirect.String(), http.StatusSeeOther)
		return nil
	}
}
