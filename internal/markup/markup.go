// Package markup parses and serializes the inline tag language embedded in entry
// descriptions: <link="URL" text="LABEL">, <image="PATH" text="LABEL"> and
// <sound="PATH" text="LABEL">.
package markup

import (
	"fmt"
	"regexp"
	"strings"
)

var tagRe = regexp.MustCompile(`<([A-Za-z]+)="([^"]*)" text="([^"]*)">`)

// Kind identifies the variant of a Segment.
type Kind int

// Segment kinds.
const (
	KindText Kind = iota
	KindLink
	KindImage
	KindSound
)

var kindNames = map[Kind]string{
	KindText:  "text",
	KindLink:  "link",
	KindImage: "image",
	KindSound: "sound",
}

var kindByTag = map[string]Kind{
	"link":  KindLink,
	"image": KindImage,
	"sound": KindSound,
}

// String returns the tag name of the kind ("text" for plain text).
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	s, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("markup: unknown kind %d", int(k))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	s := string(b)
	if s == "text" {
		*k = KindText
		return nil
	}
	kind, ok := kindByTag[s]
	if !ok {
		return fmt.Errorf("markup: unknown kind %q", s)
	}
	*k = kind
	return nil
}

// Segment is one typed piece of a parsed description.
//
// For KindText only Text is used. For links Text is the label and Target the
// URL; for images and sounds Target is the resource path.
type Segment struct {
	Kind   Kind   `json:"kind"`
	Text   string `json:"text"`
	Target string `json:"target,omitempty"`
}

// Text returns a plain text segment.
func Text(s string) Segment { return Segment{Kind: KindText, Text: s} }

// Link returns a link segment.
func Link(text, url string) Segment { return Segment{Kind: KindLink, Text: text, Target: url} }

// Image returns an image segment.
func Image(text, path string) Segment { return Segment{Kind: KindImage, Text: text, Target: path} }

// Sound returns a sound segment.
func Sound(text, path string) Segment { return Segment{Kind: KindSound, Text: text, Target: path} }

// Tag returns the literal form of s: the text itself for plain text, the tag
// otherwise.
func (s Segment) Tag() string {
	if s.Kind == KindText {
		return s.Text
	}
	return fmt.Sprintf(`<%s="%s" text="%s">`, s.Kind, s.Target, s.Text)
}

// Parse splits raw into segments. Recognised tags become typed segments, the
// text around them becomes plain text segments, and tags with an unknown kind
// are kept verbatim as plain text. Empty input yields no segments.
func Parse(raw string) []Segment {
	var out []Segment
	last := 0
	for _, m := range tagRe.FindAllStringSubmatchIndex(raw, -1) {
		if m[0] > last {
			out = append(out, Text(raw[last:m[0]]))
		}
		kind, ok := kindByTag[raw[m[2]:m[3]]]
		if ok {
			out = append(out, Segment{Kind: kind, Text: raw[m[6]:m[7]], Target: raw[m[4]:m[5]]})
		} else {
			out = append(out, Text(raw[m[0]:m[1]]))
		}
		last = m[1]
	}
	if last < len(raw) {
		out = append(out, Text(raw[last:]))
	}
	return out
}

// Serialize concatenates the literal form of every segment in order.
func Serialize(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Tag())
	}
	return b.String()
}

// Normalize returns the canonical segment list describing the same raw text.
func Normalize(segs []Segment) []Segment {
	return Parse(Serialize(segs))
}

// Canonical reports whether Parse(Serialize(segs)) reproduces segs exactly.
// Lists produced by Parse are always canonical.
func Canonical(segs []Segment) bool {
	return Equal(Normalize(segs), segs)
}

// Equal reports whether two segment lists are identical.
func Equal(a, b []Segment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PlainText renders segments for display, replacing tags with their labels.
func PlainText(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Resources returns the image and sound segments in order.
func Resources(segs []Segment) []Segment {
	var out []Segment
	for _, s := range segs {
		if s.Kind == KindImage || s.Kind == KindSound {
			out = append(out, s)
		}
	}
	return out
}
