package ai

import (
	"strings"
	"testing"

	"copyflow/internal/model"
)

func TestParseExtraction_JSONEmbeddedInProse(t *testing.T) {
	content := "以下是提取结果：\n```json\n{\"matched\": true, \"symbol\": \"xauusd\", \"side\": \"SELL\", \"order_type\": \"ZONE\", \"zone_low\": 5187.5, \"zone_high\": 5190, \"sl\": 5205, \"tps\": [{\"n\": 1, \"price\": 5170}]}\n```"

	extraction, err := parseExtraction(content)
	if err != nil {
		t.Fatalf("parseExtraction returned error: %v", err)
	}
	if !extraction.Matched {
		t.Fatal("expected matched extraction")
	}
	if err := extraction.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	parsed, ok := extraction.ToParsed()
	if !ok {
		t.Fatal("expected parsed signal")
	}
	if parsed.Symbol != "XAUUSD" {
		t.Errorf("expected uppercased symbol, got %s", parsed.Symbol)
	}
	if parsed.Side != model.SideSell || parsed.OrderType != model.OrderTypeZone {
		t.Errorf("unexpected side/order_type: %s/%s", parsed.Side, parsed.OrderType)
	}
	if parsed.ZoneLow == nil || *parsed.ZoneLow != 5187.5 {
		t.Errorf("unexpected zone_low: %v", parsed.ZoneLow)
	}
	if len(parsed.TPs) != 1 || parsed.TPs[0].N != 1 {
		t.Errorf("unexpected tps: %v", parsed.TPs)
	}
}

func TestParseExtraction_NoJSON(t *testing.T) {
	if _, err := parseExtraction("这不是JSON"); err == nil {
		t.Fatal("expected error when output has no JSON object")
	}
}

func TestValidate_RejectsIllegalFields(t *testing.T) {
	cases := []struct {
		name       string
		extraction Extraction
	}{
		{"empty symbol", Extraction{Matched: true, Side: "BUY", OrderType: "MARKET"}},
		{"bad side", Extraction{Matched: true, Symbol: "EURUSD", Side: "LONG", OrderType: "MARKET"}},
		{"bad order type", Extraction{Matched: true, Symbol: "EURUSD", Side: "BUY", OrderType: "OCO"}},
		{"bad tp number", Extraction{Matched: true, Symbol: "EURUSD", Side: "BUY", OrderType: "MARKET",
			TPs: []model.TakeProfit{{N: 0, Price: 1.1}}}},
	}

	for _, tc := range cases {
		if err := tc.extraction.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestValidate_UnmatchedNeedsNoFields(t *testing.T) {
	extraction := Extraction{Matched: false}
	if err := extraction.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if _, ok := extraction.ToParsed(); ok {
		t.Fatal("expected no parsed signal for unmatched extraction")
	}
}

func TestBuildPrompt_IncludesOriginalText(t *testing.T) {
	prompt, err := BuildPrompt("gold sell around 5190")
	if err != nil {
		t.Fatalf("BuildPrompt returned error: %v", err)
	}
	if prompt == "" {
		t.Fatal("expected non-empty prompt")
	}
	if !strings.Contains(prompt, "gold sell around 5190") {
		t.Error("expected prompt to embed the raw message")
	}
}
