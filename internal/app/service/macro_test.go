package service

import "testing"

func TestRenderMacros(t *testing.T) {
	template := "https://partner.example.com/pb?c={click_id}&p={payout}&s={status}&cur={currency}"
	rendered, unknown := RenderMacros(template, MacroValues{
		ClickID:  "click-1",
		Payout:   6,
		Status:   "approved",
		Currency: "USD",
	})

	want := "https://partner.example.com/pb?c=click-1&p=6.0&s=approved&cur=USD"
	if rendered != want {
		t.Fatalf("expected %s, got %s", want, rendered)
	}
	if len(unknown) != 0 {
		t.Fatalf("expected no unknown macros, got %v", unknown)
	}
}

func TestRenderMacros_UnknownTokensPassThrough(t *testing.T) {
	template := "https://partner.example.com/pb?c={click_id}&x={mystery_token}"
	rendered, unknown := RenderMacros(template, MacroValues{ClickID: "c1"})

	if rendered != "https://partner.example.com/pb?c=c1&x={mystery_token}" {
		t.Fatalf("unknown token must stay literal, got %s", rendered)
	}
	if len(unknown) != 1 || unknown[0] != "mystery_token" {
		t.Fatalf("expected unknown token report, got %v", unknown)
	}
}

func TestRenderMacros_UppercaseTokensReported(t *testing.T) {
	template := "https://partner.example.com/pb?c={CLICK_ID}&p={payout}"
	rendered, unknown := RenderMacros(template, MacroValues{ClickID: "c1", Payout: 6})

	if rendered != "https://partner.example.com/pb?c={CLICK_ID}&p=6.0" {
		t.Fatalf("uppercase token must stay literal, got %s", rendered)
	}
	if len(unknown) != 1 || unknown[0] != "CLICK_ID" {
		t.Fatalf("uppercase token must be reported as unknown, got %v", unknown)
	}
}

func TestRenderMacros_SubIDs(t *testing.T) {
	template := "https://p.example.com/pb?a={sub1}&b={sub2}&c={sub5}"
	rendered, _ := RenderMacros(template, MacroValues{Sub1: "s1", Sub2: "s2", Sub5: "s5"})

	if rendered != "https://p.example.com/pb?a=s1&b=s2&c=s5" {
		t.Fatalf("unexpected render: %s", rendered)
	}
}

func TestFormatPayout(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{6, "6.0"},
		{6.5, "6.5"},
		{0, "0.0"},
		{5.25, "5.25"},
	}
	for _, tc := range cases {
		if got := FormatPayout(tc.in); got != tc.want {
			t.Fatalf("FormatPayout(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
