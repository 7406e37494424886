package untis

import (
	"testing"
	"time"
)

// All date spellings the servers send normalize to the same 8 digits and
// the same calendar day.
func TestDateNormalizationRoundTrip(t *testing.T) {
	obj := decodeObject(t, `{"a": "20240115", "b": 20240115, "c": "2024-01-15"}`)
	want, err := ParseDate8("20240115")
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"a", "b", "c"} {
		date8, ok := NormalizedDateString(obj[key])
		if !ok || date8 != "20240115" {
			t.Errorf("%s: got %q (%v)", key, date8, ok)
			continue
		}
		day, err := ParseDate8(date8)
		if err != nil {
			t.Error(err)
			continue
		}
		if !day.Equal(want) {
			t.Errorf("%s: parsed %v, want %v", key, day, want)
		}
	}

	if _, ok := NormalizedDateString("123456789"); ok {
		t.Error("nine digits must not pass as a date")
	}
	if _, ok := NormalizedDateString(""); ok {
		t.Error("empty value must not pass as a date")
	}
}

func TestNormalizedTimeString(t *testing.T) {
	cases := map[string]string{
		"800":   "0800",
		"8:30":  "0830",
		"0945":  "0945",
		"9":     "0009",
		"12345": "",
	}
	for in, want := range cases {
		got, ok := NormalizedTimeString(in)
		if want == "" {
			if ok {
				t.Errorf("%q must be rejected", in)
			}
			continue
		}
		if !ok || got != want {
			t.Errorf("%q: want %q, got %q", in, want, got)
		}
	}
}

func TestInt64From(t *testing.T) {
	obj := decodeObject(t, `{"n": 9007199254740993, "s": " 42 ", "f": 3.9}`)
	if v, ok := Int64From(obj["n"]); !ok || v != 9007199254740993 {
		t.Errorf("large ids must survive: %d (%v)", v, ok)
	}
	if v, ok := Int64From(obj["s"]); !ok || v != 42 {
		t.Errorf("numeric strings: %d (%v)", v, ok)
	}
	if _, ok := Int64From("x1"); ok {
		t.Error("garbage must be rejected")
	}
}

func TestCombineDateTime(t *testing.T) {
	v, err := CombineDateTime("20240115", "0800")
	if err != nil {
		t.Fatal(err)
	}
	if v.Hour() != 8 || v.Day() != 15 {
		t.Errorf("combined wrong: %v", v)
	}
	if _, err := CombineDateTime("20241315", "0800"); err == nil {
		t.Error("month 13 must fail")
	}
}

func TestWeekRange(t *testing.T) {
	// a known wednesday
	now := time.Date(2024, 1, 17, 12, 0, 0, 0, time.Local)
	start, end := WeekRange(now, 0)
	if start.Weekday() != time.Monday || start.Day() != 15 {
		t.Errorf("week start: %v", start)
	}
	if end.Sub(start) != 6*24*time.Hour {
		t.Errorf("week end: %v", end)
	}
	next, _ := WeekRange(now, 1)
	if next.Day() != 22 {
		t.Errorf("next week start: %v", next)
	}
}

func TestBaseURLs(t *testing.T) {
	urls := BaseURLs("example.webuntis.com")
	if len(urls) != 2 || urls[0] != "https://example.webuntis.com/WebUntis" {
		t.Errorf("host only: %v", urls)
	}
	urls = BaseURLs("https://example.webuntis.com/WebUntis/")
	if len(urls) != 1 || urls[0] != "https://example.webuntis.com/WebUntis" {
		t.Errorf("full root: %v", urls)
	}
	urls = RPCURLs("example.webuntis.com", "my school")
	if urls[0] != "https://example.webuntis.com/WebUntis/jsonrpc.do?school=my+school" {
		t.Errorf("rpc url: %v", urls[0])
	}
}
