package core

import (
	"context"
	"testing"

	"github.com/medassist/medassist/internal/lang"
	"github.com/medassist/medassist/internal/translate"
)

type stubTranslator struct {
	calls  int
	gotReq translate.Request
	out    string
}

func (s *stubTranslator) Translate(_ context.Context, req translate.Request) string {
	s.calls++
	s.gotReq = req
	if s.out != "" {
		return s.out
	}
	return req.Text
}

func TestNormalizeTrimsThenTranslates(t *testing.T) {
	tr := &stubTranslator{out: "胰岛素抵抗是二型糖尿病的核心机制"}
	n := NewNormalizer(tr, lang.Chinese, map[string]string{"insulin": "胰岛素"})

	got := n.Normalize(context.Background(), "  Insulin resistance is central to type 2 diabetes.  ")
	if got != tr.out {
		t.Fatalf("normalized = %q, want %q", got, tr.out)
	}
	if tr.calls != 1 {
		t.Fatalf("translator called %d times", tr.calls)
	}
	// cleanup runs before translate: the translator must see trimmed text
	if tr.gotReq.Text != "Insulin resistance is central to type 2 diabetes." {
		t.Fatalf("translator received %q", tr.gotReq.Text)
	}
	if tr.gotReq.TargetLang != lang.Chinese {
		t.Fatalf("target language = %q", tr.gotReq.TargetLang)
	}
	if tr.gotReq.Terms["insulin"] != "胰岛素" {
		t.Fatalf("glossary not forwarded: %v", tr.gotReq.Terms)
	}
}

func TestNormalizeSkipsTranslationWhenAlreadyTarget(t *testing.T) {
	tr := &stubTranslator{}
	n := NewNormalizer(tr, lang.Chinese, nil)

	got := n.Normalize(context.Background(), "糖尿病是一种慢性代谢疾病")
	if got != "糖尿病是一种慢性代谢疾病" {
		t.Fatalf("text changed: %q", got)
	}
	if tr.calls != 0 {
		t.Fatalf("translator invoked for already-target text")
	}
}

func TestStageNamesDeclareOrder(t *testing.T) {
	n := NewNormalizer(&stubTranslator{}, lang.Chinese, nil)
	names := n.StageNames()
	if len(names) != 2 || names[0] != "cleanup" || names[1] != "translate" {
		t.Fatalf("unexpected pipeline: %v", names)
	}
}
