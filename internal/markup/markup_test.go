package markup

import (
	"encoding/json"
	"testing"
)

func TestParse_LinkInText(t *testing.T) {
	got := Parse(`see <link="http://x" text="here"> now`)
	want := []Segment{Text("see "), Link("here", "http://x"), Text(" now")}
	if !Equal(got, want) {
		t.Errorf("Parse = %+v, want %+v", got, want)
	}
}

func TestParse_NoTags(t *testing.T) {
	got := Parse("just words")
	if len(got) != 1 || got[0] != Text("just words") {
		t.Errorf("Parse = %+v", got)
	}
}

func TestParse_Empty(t *testing.T) {
	if got := Parse(""); len(got) != 0 {
		t.Errorf("Parse(\"\") = %+v, want no segments", got)
	}
}

func TestParse_AdjacentTags(t *testing.T) {
	got := Parse(`<image="a.png" text="A"><sound="b.wav" text="B">`)
	want := []Segment{Image("A", "a.png"), Sound("B", "b.wav")}
	if !Equal(got, want) {
		t.Errorf("Parse = %+v, want %+v", got, want)
	}
}

func TestParse_UnknownKindDegradesToText(t *testing.T) {
	raw := `a <video="v.mp4" text="clip"> b`
	got := Parse(raw)
	want := []Segment{Text("a "), Text(`<video="v.mp4" text="clip">`), Text(" b")}
	if !Equal(got, want) {
		t.Errorf("Parse = %+v, want %+v", got, want)
	}
	if Serialize(got) != raw {
		t.Errorf("Serialize = %q, want %q", Serialize(got), raw)
	}
}

func TestParse_MalformedTagIsText(t *testing.T) {
	for _, raw := range []string{
		`<link="http://x">`,
		`<link=http://x text="y">`,
		`<link="http://x" text="unterminated>`,
		`<link="a"b" text="c">`,
	} {
		got := Parse(raw)
		if len(got) != 1 || got[0].Kind != KindText || got[0].Text != raw {
			t.Errorf("Parse(%q) = %+v, want single text segment", raw, got)
		}
	}
}

func TestParse_EmptyAttributes(t *testing.T) {
	got := Parse(`<link="" text="">`)
	if len(got) != 1 || got[0] != Link("", "") {
		t.Errorf("Parse = %+v", got)
	}
}

func TestParseSerializeIdempotent(t *testing.T) {
	raws := []string{
		"",
		"plain",
		`see <link="http://x" text="here"> now`,
		`<image="cat.png" text="cat">`,
		`<sound="s.ogg" text="moo"> and <link="u" text="l">tail`,
		`<bogus="1" text="2"><link="3" text="4">`,
		`colons: a:b \: c`,
		`<link="x" text="y"`,
	}
	for _, raw := range raws {
		first := Parse(raw)
		second := Parse(Serialize(first))
		if !Equal(first, second) {
			t.Errorf("raw %q: Parse(Serialize(Parse)) = %+v, want %+v", raw, second, first)
		}
		if Serialize(first) != raw {
			t.Errorf("raw %q: Serialize(Parse) = %q", raw, Serialize(first))
		}
	}
}

func TestSerializeParseInverse(t *testing.T) {
	segs := []Segment{
		Text("Press "),
		Link("docs", "https://example.com/a:b"),
		Text(" then listen "),
		Sound("chime", "sounds/chime.wav"),
		Image("diagram", "img/d.png"),
	}
	if !Canonical(segs) {
		t.Fatal("expected canonical segments")
	}
	if got := Parse(Serialize(segs)); !Equal(got, segs) {
		t.Errorf("Parse(Serialize) = %+v, want %+v", got, segs)
	}
}

func TestCanonical_AdjacentText(t *testing.T) {
	segs := []Segment{Text("a"), Text("b")}
	if Canonical(segs) {
		t.Error("adjacent text segments should not be canonical")
	}
	norm := Normalize(segs)
	if len(norm) != 1 || norm[0] != Text("ab") {
		t.Errorf("Normalize = %+v", norm)
	}
}

func TestPlainTextAndResources(t *testing.T) {
	segs := Parse(`hear <sound="s.wav" text="this"> and see <image="i.png" text="that">`)
	if got := PlainText(segs); got != "hear this and see that" {
		t.Errorf("PlainText = %q", got)
	}
	res := Resources(segs)
	if len(res) != 2 || res[0].Target != "s.wav" || res[1].Target != "i.png" {
		t.Errorf("Resources = %+v", res)
	}
}

func TestSegmentJSON(t *testing.T) {
	data, err := json.Marshal(Link("here", "http://x"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"kind":"link","text":"here","target":"http://x"}` {
		t.Errorf("json = %s", data)
	}
	var seg Segment
	if err := json.Unmarshal([]byte(`{"kind":"sound","text":"a","target":"b"}`), &seg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if seg != Sound("a", "b") {
		t.Errorf("seg = %+v", seg)
	}
	if err := json.Unmarshal([]byte(`{"kind":"video"}`), &seg); err == nil {
		t.Error("expected error for unknown kind")
	}
}
