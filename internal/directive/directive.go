// Package directive extracts extra-network tags such as
// <lora:name:0.8:0@0,1@1:hr=0.5> from a prompt.
package directive

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/samcharles93/loractl/internal/weights"
)

// KindLora is the tag kind handled by the scheduling controller.
const KindLora = "lora"

var ErrMalformed = errors.New("directive: malformed tag")

var (
	tagPattern = regexp.MustCompile(`<(\w+):([^>]*)>`)
	namedKey   = regexp.MustCompile(`^[a-z_]+$`)
)

// Directive is one parsed tag. Positional[0] is always the tag name.
type Directive struct {
	Kind       string
	Name       string
	Positional []string
	Named      map[string]string
}

// Request converts the directive into the resolver's request type.
func (d Directive) Request() weights.Request {
	return weights.Request{
		Name:       d.Name,
		Positional: d.Positional,
		Named:      d.Named,
	}
}

// String renders the directive back into tag syntax. Named arguments are
// not guaranteed to keep their original order.
func (d Directive) String() string {
	parts := append([]string{d.Kind}, d.Positional...)
	for k, v := range d.Named {
		parts = append(parts, k+"="+v)
	}
	return "<" + strings.Join(parts, ":") + ">"
}

// Parse returns the prompt with every tag removed and the tags in the order
// they appear.
//
// Items are separated by ':'. An item of the form key=value is named when
// key is lowercase letters and underscores; any other item, including
// uppercase block specs like IN01-OUT11=0.5, stays positional.
func Parse(prompt string) (string, []Directive, error) {
	var (
		out  []Directive
		errs []error
	)
	clean := tagPattern.ReplaceAllStringFunc(prompt, func(tag string) string {
		m := tagPattern.FindStringSubmatch(tag)
		d, err := parseItems(m[1], m[2])
		if err != nil {
			errs = append(errs, fmt.Errorf("%w %q: %v", ErrMalformed, tag, err))
			return ""
		}
		out = append(out, d)
		return ""
	})
	clean = strings.Join(strings.Fields(clean), " ")
	return clean, out, errors.Join(errs...)
}

// Filter returns the directives of one kind.
func Filter(ds []Directive, kind string) []Directive {
	var out []Directive
	for _, d := range ds {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func parseItems(kind, body string) (Directive, error) {
	d := Directive{Kind: kind, Named: map[string]string{}}
	for _, item := range strings.Split(body, ":") {
		item = strings.TrimSpace(item)
		if key, value, ok := strings.Cut(item, "="); ok && namedKey.MatchString(key) {
			d.Named[key] = value
			continue
		}
		d.Positional = append(d.Positional, item)
	}
	if len(d.Positional) == 0 || d.Positional[0] == "" {
		return Directive{}, errors.New("missing name")
	}
	d.Name = d.Positional[0]
	return d, nil
}
